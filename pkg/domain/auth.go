package domain

// AuthEventKind names an auth-state change.
type AuthEventKind string

const (
	AuthInitialSession AuthEventKind = "INITIAL_SESSION"
	AuthSignedIn       AuthEventKind = "SIGNED_IN"
	AuthSignedOut      AuthEventKind = "SIGNED_OUT"
	AuthTokenRefreshed AuthEventKind = "TOKEN_REFRESHED"
	AuthUserUpdated    AuthEventKind = "USER_UPDATED"
)

// AuthEvent is one notification from the auth-state stream.
// Session is nil when the event leaves the caller unauthenticated.
type AuthEvent struct {
	Kind    AuthEventKind
	Session *Session
}

// Credentials are the email/password pair used to sign up or sign in.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpResult reports what the backend did with a registration.
// Session is nil when email confirmation is required before sign-in.
type SignUpResult struct {
	User    *User
	Session *Session
}

// NeedsConfirmation reports whether the account still has to be confirmed
// before a sign-in can succeed.
func (r *SignUpResult) NeedsConfirmation() bool {
	return r == nil || r.Session == nil
}
