package stub

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client gone
}

// authError writes a GoTrue-shaped error.
func authError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{
		"code":       status,
		"error_code": code,
		"msg":        msg,
	})
}

// restError writes a PostgREST-shaped error.
func restError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{
		"code":    code,
		"details": nil,
		"hint":    nil,
		"message": msg,
	})
}
