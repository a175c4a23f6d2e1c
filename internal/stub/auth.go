package stub

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type passwordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		authError(w, http.StatusBadRequest, "bad_json", "Could not parse request body as JSON")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validate.Struct(req); err != nil {
		s.signUpValidationError(w, err)
		return
	}

	if _, err := s.userByEmail(req.Email); err == nil {
		authError(w, http.StatusUnprocessableEntity, "user_already_exists", "User already registered")
		return
	} else if !errors.Is(err, errNoUser) {
		s.internalError(w, "lookup user", err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.opts.BcryptCost)
	if err != nil {
		s.internalError(w, "hash password", err)
		return
	}
	now := s.now().UTC()
	u := &userRow{
		ID:           uuid.New(),
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
	}
	if !s.opts.RequireConfirmation {
		u.ConfirmedAt = &now
	}
	if err := s.insertUser(u); err != nil {
		s.internalError(w, "insert user", err)
		return
	}
	s.logger.Info("user signed up", "user_id", u.ID, "confirmed", u.ConfirmedAt != nil)

	// With confirmation on, GoTrue answers with the bare user and no session.
	if s.opts.RequireConfirmation {
		writeJSON(w, http.StatusOK, u.domain())
		return
	}
	sess, err := s.issueSession(u)
	if err != nil {
		s.internalError(w, "issue session", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) signUpValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Field() == "Password" && fe.Tag() == "min" {
				authError(w, http.StatusUnprocessableEntity, "weak_password", "Password should be at least 6 characters.")
				return
			}
			if fe.Field() == "Password" {
				authError(w, http.StatusUnprocessableEntity, "validation_failed", "Signup requires a valid password")
				return
			}
		}
	}
	authError(w, http.StatusBadRequest, "validation_failed", "Unable to validate email address: invalid format")
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	switch grant := r.URL.Query().Get("grant_type"); grant {
	case "password":
		s.passwordGrant(w, r)
	case "refresh_token":
		s.refreshGrant(w, r)
	default:
		authError(w, http.StatusBadRequest, "validation_failed", "unsupported_grant_type")
	}
}

func (s *Server) passwordGrant(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		authError(w, http.StatusBadRequest, "bad_json", "Could not parse request body as JSON")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		authError(w, http.StatusBadRequest, "validation_failed", "missing email or phone")
		return
	}
	u, err := s.userByEmail(email)
	if errors.Is(err, errNoUser) {
		authError(w, http.StatusBadRequest, "invalid_credentials", "Invalid login credentials")
		return
	}
	if err != nil {
		s.internalError(w, "lookup user", err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		authError(w, http.StatusBadRequest, "invalid_credentials", "Invalid login credentials")
		return
	}
	if u.ConfirmedAt == nil {
		authError(w, http.StatusBadRequest, "email_not_confirmed", "Email not confirmed")
		return
	}
	sess, err := s.issueSession(u)
	if err != nil {
		s.internalError(w, "issue session", err)
		return
	}
	s.logger.Info("user signed in", "user_id", u.ID)
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) refreshGrant(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		authError(w, http.StatusBadRequest, "bad_json", "Could not parse request body as JSON")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		authError(w, http.StatusBadRequest, "validation_failed", "refresh_token required")
		return
	}
	id, err := s.consumeRefreshToken(req.RefreshToken)
	if errors.Is(err, errNoUser) {
		authError(w, http.StatusBadRequest, "refresh_token_not_found", "Invalid Refresh Token: Refresh Token Not Found")
		return
	}
	if err != nil {
		s.internalError(w, "consume refresh token", err)
		return
	}
	u, err := s.userByID(id)
	if err != nil {
		authError(w, http.StatusBadRequest, "refresh_token_not_found", "Invalid Refresh Token: Refresh Token Not Found")
		return
	}
	sess, err := s.issueSession(u)
	if err != nil {
		s.internalError(w, "issue session", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// requireUser resolves the caller and rejects the anon role.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (caller, bool) {
	c, err := s.authenticate(r)
	if err != nil {
		authError(w, http.StatusForbidden, "bad_jwt", err.Error())
		return caller{}, false
	}
	if c.anonymous() {
		authError(w, http.StatusUnauthorized, "no_authorization", "This endpoint requires a Bearer token")
		return caller{}, false
	}
	return c, true
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	c, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	if err := s.revokeRefreshTokens(c.UserID); err != nil {
		s.internalError(w, "revoke refresh tokens", err)
		return
	}
	s.logger.Info("user signed out", "user_id", c.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	c, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	u, err := s.userByID(c.UserID)
	if errors.Is(err, errNoUser) {
		authError(w, http.StatusNotFound, "user_not_found", "User from sub claim in JWT does not exist")
		return
	}
	if err != nil {
		s.internalError(w, "lookup user", err)
		return
	}
	writeJSON(w, http.StatusOK, u.domain())
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("stub: "+op, "error", err)
	authError(w, http.StatusInternalServerError, "unexpected_failure", "Internal server error")
}
