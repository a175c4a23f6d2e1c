package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/naveenspark/rlsnotes/pkg/domain"
)

const testAnonKey = "anon-key"

func signedToken(t *testing.T, sub uuid.UUID, email string, exp time.Time) string {
	t.Helper()
	claims := TokenClaims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.String(),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func TestSignInWithPassword(t *testing.T) {
	userID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" || r.URL.Query().Get("grant_type") != "password" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("apikey") != testAnonKey {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "No API key found in request"}) //nolint:errcheck
			return
		}
		var creds domain.Credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if creds.Password != "secret123" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
				"code":       400,
				"error_code": "invalid_credentials",
				"msg":        "Invalid login credentials",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"access_token":  "access-1",
			"token_type":    "bearer",
			"expires_in":    3600,
			"refresh_token": "refresh-1",
			"user":          domain.User{ID: userID, Email: creds.Email},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, testAnonKey)
	s, err := c.SignInWithPassword(context.Background(), domain.Credentials{Email: "user@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("SignInWithPassword() error: %v", err)
	}
	if s.AccessToken != "access-1" || s.RefreshToken != "refresh-1" {
		t.Errorf("tokens = %q/%q, want access-1/refresh-1", s.AccessToken, s.RefreshToken)
	}
	if s.User.ID != userID {
		t.Errorf("User.ID = %v, want %v", s.User.ID, userID)
	}
	if s.ExpiresAt.IsZero() {
		t.Error("ExpiresAt should be derived from expires_in")
	}

	_, err = c.SignInWithPassword(context.Background(), domain.Credentials{Email: "user@example.com", Password: "wrong"})
	if err == nil {
		t.Fatal("expected error for invalid credentials")
	}
	if got := Reason(err); got != "Invalid login credentials" {
		t.Errorf("Reason() = %q, want %q", got, "Invalid login credentials")
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != "invalid_credentials" {
		t.Errorf("expected HTTPError with code invalid_credentials, got %v", err)
	}
}

func TestSignUp_ConfirmationRequired(t *testing.T) {
	userID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/signup" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":    userID,
			"email": "user@example.com",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, testAnonKey)
	res, err := c.SignUp(context.Background(), domain.Credentials{Email: "user@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("SignUp() error: %v", err)
	}
	if !res.NeedsConfirmation() {
		t.Error("expected confirmation to be required when no session is returned")
	}
	if res.User == nil || res.User.ID != userID {
		t.Errorf("User = %+v, want id %v", res.User, userID)
	}
}

func TestSignUp_AutoConfirmReturnsSession(t *testing.T) {
	userID := uuid.New()
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signedToken(t, userID, "user@example.com", exp)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"access_token":  token,
			"token_type":    "bearer",
			"refresh_token": "r",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, testAnonKey)
	res, err := c.SignUp(context.Background(), domain.Credentials{Email: "user@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("SignUp() error: %v", err)
	}
	if res.NeedsConfirmation() {
		t.Fatal("expected a session when the backend returns tokens")
	}
	if res.Session.User.ID != userID {
		t.Errorf("user from claims = %v, want %v", res.Session.User.ID, userID)
	}
	if !res.Session.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v from exp claim", res.Session.ExpiresAt, exp)
	}
}

func TestListNotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/notes" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("select"); got != domain.DefaultNoteColumns {
			t.Errorf("select = %q, want %q", got, domain.DefaultNoteColumns)
		}
		if got := r.URL.Query().Get("order"); got != "id.desc" {
			t.Errorf("order = %q, want id.desc", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer user-token" {
			t.Errorf("Authorization = %q, want bearer user token", got)
		}
		json.NewEncoder(w).Encode([]map[string]any{ //nolint:errcheck
			{"id": 2, "user_id": uuid.Nil, "title": "b", "content": nil},
			{"id": 1, "user_id": uuid.Nil, "title": nil, "content": "a"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, testAnonKey).WithToken("user-token")
	notes, err := c.ListNotes(context.Background(), "notes", domain.DefaultNoteColumns)
	if err != nil {
		t.Fatalf("ListNotes() error: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("got %d notes, want 2", len(notes))
	}
	if notes[0].TitleOr("") != "b" || notes[0].Content != nil {
		t.Errorf("notes[0] = %+v, want title b and null content", notes[0])
	}
	if notes[1].Title != nil {
		t.Errorf("notes[1].Title = %v, want nil", notes[1].Title)
	}
}

func TestListNotes_AnonymousUsesAnonKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer "+testAnonKey {
			t.Errorf("Authorization = %q, want anon key bearer", got)
		}
		w.Write([]byte("[]")) //nolint:errcheck
	}))
	defer srv.Close()

	notes, err := New(srv.URL, testAnonKey).ListNotes(context.Background(), "notes", domain.DefaultNoteColumns)
	if err != nil {
		t.Fatalf("ListNotes() error: %v", err)
	}
	if notes == nil || len(notes) != 0 {
		t.Errorf("notes = %v, want empty non-nil slice", notes)
	}
}

func TestInsertNotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if got := r.Header.Get("Prefer"); got != "return=representation" {
			t.Errorf("Prefer = %q, want return=representation", got)
		}
		var rows []map[string]any
		if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, ok := rows[0]["user_id"]; ok {
			t.Error("insert payload must not carry user_id")
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]map[string]any{ //nolint:errcheck
			{"id": 7, "title": rows[0]["title"], "content": rows[0]["content"]},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, testAnonKey).WithToken("tok")
	created, err := c.InsertNotes(context.Background(), "notes", domain.NoteDraft{Title: "Groceries", Content: "milk, eggs"})
	if err != nil {
		t.Fatalf("InsertNotes() error: %v", err)
	}
	if len(created) != 1 || created[0].ID != 7 || created[0].TitleOr("") != "Groceries" {
		t.Errorf("created = %+v", created)
	}
}

func TestInsert_MinimalReturn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Prefer"); got != "return=minimal" {
			t.Errorf("Prefer = %q, want return=minimal", got)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := New(srv.URL, testAnonKey).Insert(context.Background(), "notes", []domain.NoteDraft{{Title: "t"}}, nil)
	if err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
}

func TestInsert_RLSViolation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"code":    "42501",
			"details": nil,
			"hint":    nil,
			"message": `new row violates row-level security policy for table "notes"`,
		})
	}))
	defer srv.Close()

	_, err := New(srv.URL, testAnonKey).InsertNotes(context.Background(), "notes", domain.NoteDraft{Title: "x"})
	if err == nil {
		t.Fatal("expected RLS error")
	}
	if !IsStatus(err, http.StatusForbidden) {
		t.Errorf("IsStatus(403) = false for %v", err)
	}
	if got := Reason(err); !strings.Contains(got, "row-level security") {
		t.Errorf("Reason() = %q, want RLS message", got)
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Code != "42501" {
		t.Errorf("Code = %q, want 42501", httpErr.Code)
	}
}

func TestHTTPError_PlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down")) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := New(srv.URL, testAnonKey).GetUser(context.Background())
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	if got := err.Error(); !strings.Contains(got, "HTTP 502") {
		t.Errorf("error = %q, want it to contain 'HTTP 502'", got)
	}
	if got := Reason(err); got != "upstream down" {
		t.Errorf("Reason() = %q, want %q", got, "upstream down")
	}
}

func TestSignOut_SendsAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/logout" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer access-1" {
			t.Errorf("Authorization = %q, want session bearer", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := New(srv.URL, testAnonKey).WithToken("access-1").SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut() error: %v", err)
	}
}

func TestDoRequest_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(5 * time.Second) // slow server
		w.Write([]byte("[]"))       //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, testAnonKey)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	_, err := c.ListNotes(ctx, "notes", "")
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestReason(t *testing.T) {
	if got := Reason(nil); got != "" {
		t.Errorf("Reason(nil) = %q, want empty", got)
	}
	if got := Reason(errors.New("dial tcp: refused")); got != "dial tcp: refused" {
		t.Errorf("Reason(plain) = %q", got)
	}
}
