package client

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/naveenspark/rlsnotes/pkg/domain"
)

// TokenClaims are the access-token claims the client reads. The signature
// is not checked here: the backend verifies every token it receives.
type TokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// ParseAccessToken decodes the claims of a Supabase access token.
func ParseAccessToken(token string) (*TokenClaims, error) {
	var claims TokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	return &claims, nil
}

// Expiry returns the exp claim, or the zero time when absent.
func (c *TokenClaims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// User builds the identity named by the sub and email claims.
func (c *TokenClaims) User() domain.User {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		id = uuid.Nil
	}
	return domain.User{ID: id, Email: c.Email, Role: c.Role}
}
