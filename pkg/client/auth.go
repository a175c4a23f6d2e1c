package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/naveenspark/rlsnotes/pkg/domain"
)

// tokenResponse is the session payload returned by the token endpoint.
type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         *domain.User `json:"user"`
}

func (t *tokenResponse) session(now time.Time) *domain.Session {
	if t.AccessToken == "" {
		return nil
	}
	s := &domain.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
	}
	claims, claimsErr := ParseAccessToken(t.AccessToken)
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0)
	case t.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	case claimsErr == nil:
		s.ExpiresAt = claims.Expiry()
	}
	if t.User != nil {
		s.User = *t.User
	} else if claimsErr == nil {
		s.User = claims.User()
	}
	return s
}

// signUpResponse is either a session (confirmation off) or the bare user
// object (confirmation on).
type signUpResponse struct {
	tokenResponse
	ID               uuid.UUID  `json:"id"`
	Email            string     `json:"email"`
	Role             string     `json:"role"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

func (r *signUpResponse) bareUser() *domain.User {
	if r.ID == uuid.Nil && r.Email == "" {
		return nil
	}
	return &domain.User{
		ID:               r.ID,
		Email:            r.Email,
		Role:             r.Role,
		EmailConfirmedAt: r.EmailConfirmedAt,
		CreatedAt:        r.CreatedAt,
	}
}

// SignUp registers a new account. The result carries a session only when
// the backend does not require email confirmation.
func (c *Client) SignUp(ctx context.Context, creds domain.Credentials) (*domain.SignUpResult, error) {
	var resp signUpResponse
	if err := c.post(ctx, "/auth/v1/signup", creds, &resp); err != nil {
		return nil, fmt.Errorf("client.SignUp: %w", err)
	}
	result := &domain.SignUpResult{Session: resp.session(time.Now())}
	if result.Session != nil {
		u := result.Session.User
		result.User = &u
	} else {
		result.User = resp.bareUser()
	}
	return result, nil
}

// SignInWithPassword verifies credentials and returns a new session.
func (c *Client) SignInWithPassword(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	var resp tokenResponse
	if err := c.post(ctx, "/auth/v1/token?grant_type=password", creds, &resp); err != nil {
		return nil, fmt.Errorf("client.SignInWithPassword: %w", err)
	}
	s := resp.session(time.Now())
	if s == nil {
		return nil, fmt.Errorf("client.SignInWithPassword: response carried no access token")
	}
	return s, nil
}

// RefreshSession exchanges a refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error) {
	body := map[string]string{"refresh_token": refreshToken}
	var resp tokenResponse
	if err := c.post(ctx, "/auth/v1/token?grant_type=refresh_token", body, &resp); err != nil {
		return nil, fmt.Errorf("client.RefreshSession: %w", err)
	}
	s := resp.session(time.Now())
	if s == nil {
		return nil, fmt.Errorf("client.RefreshSession: response carried no access token")
	}
	return s, nil
}

// SignOut revokes the session bound to the client's token.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, nil); err != nil {
		return fmt.Errorf("client.SignOut: %w", err)
	}
	return nil
}

// GetUser returns the user behind the client's token.
func (c *Client) GetUser(ctx context.Context) (*domain.User, error) {
	var u domain.User
	if err := c.get(ctx, "/auth/v1/user", &u); err != nil {
		return nil, fmt.Errorf("client.GetUser: %w", err)
	}
	return &u, nil
}
