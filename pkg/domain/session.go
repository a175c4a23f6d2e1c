package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity attached to a session.
type User struct {
	ID               uuid.UUID  `json:"id"`
	Email            string     `json:"email"`
	Role             string     `json:"role,omitempty"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Session is the authenticated identity for the current interaction.
// A nil *Session means unauthenticated.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// UserID returns the session's user id, or uuid.Nil for a nil session.
func (s *Session) UserID() uuid.UUID {
	if s == nil {
		return uuid.Nil
	}
	return s.User.ID
}

// ExpiresWithin reports whether the access token expires within d of now.
// A zero ExpiresAt never expires.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(d).Before(s.ExpiresAt)
}
