package stub

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

var noteColumns = []string{"id", "user_id", "title", "content", "created_at"}

func knownColumn(name string) bool {
	for _, c := range noteColumns {
		if c == name {
			return true
		}
	}
	return false
}

// tableFor checks the {table} path var against the single served table.
func (s *Server) tableFor(w http.ResponseWriter, r *http.Request) bool {
	if table := mux.Vars(r)["table"]; table != s.opts.Table {
		restError(w, http.StatusNotFound, "42P01", fmt.Sprintf("relation \"public.%s\" does not exist", table))
		return false
	}
	return true
}

// restCaller resolves the caller for a PostgREST request.
func (s *Server) restCaller(w http.ResponseWriter, r *http.Request) (caller, bool) {
	c, err := s.authenticate(r)
	if err != nil {
		restError(w, http.StatusUnauthorized, "PGRST301", err.Error())
		return caller{}, false
	}
	return c, true
}

func (s *Server) rlsViolation(w http.ResponseWriter, status int) {
	restError(w, status, "42501",
		fmt.Sprintf("new row violates row-level security policy for table \"%s\"", s.opts.Table))
}

func parseColumns(raw string) ([]string, error) {
	if raw == "" || raw == "*" {
		return noteColumns, nil
	}
	var cols []string
	for _, c := range strings.Split(raw, ",") {
		c = strings.TrimSpace(c)
		if c == "*" {
			cols = append(cols, noteColumns...)
			continue
		}
		if !knownColumn(c) {
			return nil, fmt.Errorf("%s", c)
		}
		cols = append(cols, c)
	}
	return cols, nil
}

func parseOrder(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	var terms []string
	for _, term := range strings.Split(raw, ",") {
		col, dir, _ := strings.Cut(strings.TrimSpace(term), ".")
		if !knownColumn(col) {
			return "", fmt.Errorf("%s", col)
		}
		switch dir {
		case "", "asc":
			terms = append(terms, col+" ASC")
		case "desc":
			terms = append(terms, col+" DESC")
		default:
			return "", fmt.Errorf("%s", term)
		}
	}
	return " ORDER BY " + strings.Join(terms, ", "), nil
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if !s.tableFor(w, r) {
		return
	}
	c, ok := s.restCaller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	cols, err := parseColumns(q.Get("select"))
	if err != nil {
		restError(w, http.StatusBadRequest, "42703",
			fmt.Sprintf("column %s.%s does not exist", s.opts.Table, err.Error()))
		return
	}
	order, err := parseOrder(q.Get("order"))
	if err != nil {
		restError(w, http.StatusBadRequest, "PGRST100",
			fmt.Sprintf("failed to parse order (%s)", err.Error()))
		return
	}

	// Policy: using (auth.uid() = user_id). The anon role sees nothing.
	if c.anonymous() {
		writeJSON(w, http.StatusOK, []map[string]any{})
		return
	}

	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE user_id = ?%s",
		strings.Join(cols, ", "), s.opts.Table, order)
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(r.Context(), stmt, c.UserID.String())
	if err != nil {
		s.restInternal(w, "select", err)
		return
	}
	defer rows.Close()

	out := []map[string]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			s.restInternal(w, "scan", err)
			return
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = jsonValue(vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		s.restInternal(w, "rows", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func jsonValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

type insertRow struct {
	UserID  string
	Title   sql.NullString
	Content sql.NullString
}

// decodeRows accepts a single object or an array of objects.
func decodeRows(body []byte) ([]map[string]any, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var rows []map[string]any
		err := json.Unmarshal(body, &rows)
		return rows, err
	}
	var row map[string]any
	if err := json.Unmarshal(body, &row); err != nil {
		return nil, err
	}
	return []map[string]any{row}, nil
}

func nullableString(v any) (sql.NullString, bool) {
	switch t := v.(type) {
	case nil:
		return sql.NullString{}, true
	case string:
		return sql.NullString{String: t, Valid: true}, true
	default:
		return sql.NullString{}, false
	}
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	if !s.tableFor(w, r) {
		return
	}
	c, ok := s.restCaller(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r.Body); err != nil {
		restError(w, http.StatusBadRequest, "PGRST102", "Empty or invalid json")
		return
	}
	raw, err := decodeRows(buf.Bytes())
	if err != nil {
		restError(w, http.StatusBadRequest, "PGRST102", "Empty or invalid json")
		return
	}

	rows := make([]insertRow, 0, len(raw))
	for _, m := range raw {
		row := insertRow{UserID: c.UserID.String()}
		for key, v := range m {
			switch key {
			case "title", "content":
				ns, ok := nullableString(v)
				if !ok {
					restError(w, http.StatusBadRequest, "22P02",
						fmt.Sprintf("invalid input syntax for type text: %v", v))
					return
				}
				if key == "title" {
					row.Title = ns
				} else {
					row.Content = ns
				}
			case "user_id":
				id, _ := v.(string)
				row.UserID = id
			default:
				restError(w, http.StatusBadRequest, "PGRST204",
					fmt.Sprintf("Could not find the '%s' column of '%s' in the schema cache", key, s.opts.Table))
				return
			}
		}
		// Policy: with check (auth.uid() = user_id).
		if c.anonymous() {
			s.rlsViolation(w, http.StatusUnauthorized)
			return
		}
		if row.UserID != c.UserID.String() {
			s.rlsViolation(w, http.StatusForbidden)
			return
		}
		rows = append(rows, row)
	}

	created, err := s.insertNotes(r, rows)
	if err != nil {
		s.restInternal(w, "insert", err)
		return
	}
	s.logger.Info("notes inserted", "user_id", c.UserID, "count", len(created))

	if strings.Contains(r.Header.Get("Prefer"), "return=representation") {
		writeJSON(w, http.StatusCreated, created)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) insertNotes(r *http.Request, rows []insertRow) ([]map[string]any, error) {
	tx, err := s.db.BeginTx(r.Context(), nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	created := make([]map[string]any, 0, len(rows))
	stmt := fmt.Sprintf(`INSERT INTO %s (user_id, title, content, created_at) VALUES (?, ?, ?, ?)`, s.opts.Table)
	for _, row := range rows {
		at := s.now().UTC().Format(time.RFC3339Nano)
		res, err := tx.ExecContext(r.Context(), stmt, row.UserID, row.Title, row.Content, at)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		created = append(created, map[string]any{
			"id":         id,
			"user_id":    row.UserID,
			"title":      nullJSON(row.Title),
			"content":    nullJSON(row.Content),
			"created_at": at,
		})
	}
	return created, tx.Commit()
}

func nullJSON(ns sql.NullString) any {
	if !ns.Valid {
		return nil
	}
	return ns.String
}

func (s *Server) restInternal(w http.ResponseWriter, op string, err error) {
	s.logger.Error("stub: "+op, "error", err)
	restError(w, http.StatusInternalServerError, "XX000", "internal error")
}
