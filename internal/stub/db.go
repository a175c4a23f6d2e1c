package stub

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/naveenspark/rlsnotes/pkg/domain"
)

func (s *Server) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			confirmed_at TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			revoked INTEGER NOT NULL DEFAULT 0
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			title TEXT,
			content TEXT,
			created_at TEXT NOT NULL
		)`, s.opts.Table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("stub.migrate: %w", err)
		}
	}
	return nil
}

type userRow struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	ConfirmedAt  *time.Time
	CreatedAt    time.Time
}

func (u *userRow) domain() domain.User {
	return domain.User{
		ID:               u.ID,
		Email:            u.Email,
		Role:             "authenticated",
		EmailConfirmedAt: u.ConfirmedAt,
		CreatedAt:        u.CreatedAt,
	}
}

var errNoUser = errors.New("user not found")

func (s *Server) insertUser(u *userRow) error {
	var confirmed any
	if u.ConfirmedAt != nil {
		confirmed = u.ConfirmedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.Exec(
		`INSERT INTO users (id, email, password_hash, confirmed_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID.String(), u.Email, u.PasswordHash, confirmed, u.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *Server) userBy(column string, value string) (*userRow, error) {
	var (
		u           userRow
		id, created string
		confirmed   sql.NullString
	)
	row := s.db.QueryRow(
		`SELECT id, email, password_hash, confirmed_at, created_at FROM users WHERE `+column+` = ?`, value)
	if err := row.Scan(&id, &u.Email, &u.PasswordHash, &confirmed, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNoUser
		}
		return nil, err
	}
	var err error
	if u.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, created) //nolint:errcheck // written by insertUser
	if confirmed.Valid {
		t, perr := time.Parse(time.RFC3339Nano, confirmed.String)
		if perr == nil {
			u.ConfirmedAt = &t
		}
	}
	return &u, nil
}

func (s *Server) userByEmail(email string) (*userRow, error) {
	return s.userBy("email", email)
}

func (s *Server) userByID(id uuid.UUID) (*userRow, error) {
	return s.userBy("id", id.String())
}

// Confirm marks an address as confirmed, as clicking the emailed link would.
func (s *Server) Confirm(email string) error {
	res, err := s.db.Exec(`UPDATE users SET confirmed_at = ? WHERE email = ?`,
		s.now().UTC().Format(time.RFC3339Nano), email)
	if err != nil {
		return fmt.Errorf("stub.Confirm: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // sqlite always reports it
		return fmt.Errorf("stub.Confirm: %w: %s", errNoUser, email)
	}
	return nil
}

func (s *Server) storeRefreshToken(token string, userID uuid.UUID) error {
	_, err := s.db.Exec(`INSERT INTO refresh_tokens (token, user_id) VALUES (?, ?)`, token, userID.String())
	return err
}

// consumeRefreshToken revokes token and returns its owner. Tokens are single use.
func (s *Server) consumeRefreshToken(token string) (uuid.UUID, error) {
	var id string
	err := s.db.QueryRow(`SELECT user_id FROM refresh_tokens WHERE token = ? AND revoked = 0`, token).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, errNoUser
	}
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := s.db.Exec(`UPDATE refresh_tokens SET revoked = 1 WHERE token = ?`, token); err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(id)
}

func (s *Server) revokeRefreshTokens(userID uuid.UUID) error {
	_, err := s.db.Exec(`UPDATE refresh_tokens SET revoked = 1 WHERE user_id = ?`, userID.String())
	return err
}
