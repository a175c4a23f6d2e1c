// Package stub is a local stand-in for a Supabase project: the subset of
// the auth and PostgREST APIs rlsnotes uses, with one notes table guarded
// by an owner-only row-level policy. It backs the tests and the
// devserver command; it is not a security boundary.
package stub

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/naveenspark/rlsnotes/internal/logging"
)

// Options configures a Server.
type Options struct {
	// AnonKey must be sent as the apikey header on every request.
	AnonKey string
	// JWTSecret signs access tokens (HS256).
	JWTSecret string
	// TokenTTL is the access-token lifetime. Default one hour.
	TokenTTL time.Duration
	// RequireConfirmation makes sign-up return no session and sign-in fail
	// until Confirm is called for the address.
	RequireConfirmation bool
	// Table is the RLS-guarded notes table. Default "notes".
	Table string
	// DSN is the sqlite data source. Default in-memory.
	DSN string
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	Logger     *slog.Logger
}

// Server is the stub backend.
type Server struct {
	opts     Options
	db       *sql.DB
	router   *mux.Router
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// New opens the database, creates the schema and builds the router.
func New(opts Options) (*Server, error) {
	if opts.AnonKey == "" {
		return nil, fmt.Errorf("stub.New: anon key is required")
	}
	if opts.JWTSecret == "" {
		opts.JWTSecret = "super-secret-jwt-token-with-at-least-32-characters-long"
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	if opts.Table == "" {
		opts.Table = "notes"
	}
	if !identRe.MatchString(opts.Table) {
		return nil, fmt.Errorf("stub.New: invalid table name %q", opts.Table)
	}
	if opts.DSN == "" {
		opts.DSN = ":memory:"
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	db, err := sql.Open("sqlite", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("stub.New: open db: %w", err)
	}
	// One connection keeps an in-memory database shared by every request.
	db.SetMaxOpenConns(1)

	s := &Server{
		opts:     opts,
		db:       db,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
	if err := s.migrate(); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler serving both APIs.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// AnonKey returns the key clients must present.
func (s *Server) AnonKey() string {
	return s.opts.AnonKey
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.Use(s.requireAPIKey)

	r.HandleFunc("/auth/v1/signup", s.handleSignUp).Methods(http.MethodPost)
	r.HandleFunc("/auth/v1/token", s.handleToken).Methods(http.MethodPost)
	r.HandleFunc("/auth/v1/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/auth/v1/user", s.handleUser).Methods(http.MethodGet)

	r.HandleFunc("/rest/v1/{table}", s.handleSelect).Methods(http.MethodGet)
	r.HandleFunc("/rest/v1/{table}", s.handleInsert).Methods(http.MethodPost)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}).Methods(http.MethodGet)
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("apikey")
		if key == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"message": "No API key found in request",
				"hint":    "No `apikey` request header or url param was found.",
			})
			return
		}
		if key != s.opts.AnonKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
