package stub

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// caller is the identity a request runs as. A nil UserID is the anon role.
type caller struct {
	UserID uuid.UUID
	Email  string
}

func (c caller) anonymous() bool {
	return c.UserID == uuid.Nil
}

type sessionResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         any    `json:"user"`
}

func (s *Server) issueSession(u *userRow) (*sessionResponse, error) {
	now := s.now()
	exp := now.Add(s.opts.TokenTTL)
	claims := accessClaims{
		Email: u.Email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			Audience:  jwt.ClaimStrings{"authenticated"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.opts.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := s.storeRefreshToken(refresh, u.ID); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &sessionResponse{
		AccessToken:  access,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.opts.TokenTTL.Seconds()),
		ExpiresAt:    exp.Unix(),
		RefreshToken: refresh,
		User:         u.domain(),
	}, nil
}

var errBadToken = errors.New("invalid JWT")

// authenticate resolves the bearer token. The anon key (or no token) maps
// to the anon role; anything else must be a valid access token.
func (s *Server) authenticate(r *http.Request) (caller, error) {
	h := r.Header.Get("Authorization")
	tok, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || tok == "" || tok == s.opts.AnonKey {
		return caller{}, nil
	}
	var claims accessClaims
	_, err := jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (any, error) {
		return []byte(s.opts.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return caller{}, fmt.Errorf("%w: %v", errBadToken, err)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return caller{}, fmt.Errorf("%w: bad sub claim", errBadToken)
	}
	return caller{UserID: id, Email: claims.Email}, nil
}
