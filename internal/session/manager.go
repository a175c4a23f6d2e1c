// Package session tracks the signed-in identity: it restores and persists
// the session, refreshes expiring tokens and notifies subscribers of every
// auth-state change.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/naveenspark/rlsnotes/internal/logging"
	"github.com/naveenspark/rlsnotes/pkg/client"
	"github.com/naveenspark/rlsnotes/pkg/domain"
)

// DefaultRefreshMargin is how long before expiry an access token is renewed.
const DefaultRefreshMargin = 60 * time.Second

// Manager owns the current session.
type Manager struct {
	client        *client.Client
	store         *Store
	logger        *slog.Logger
	now           func() time.Time
	refreshMargin time.Duration

	refreshMu sync.Mutex

	mu      sync.Mutex
	session *domain.Session
	loaded  bool
	subs    map[*Subscription]struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for auth events and failures.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRefreshMargin overrides DefaultRefreshMargin.
func WithRefreshMargin(d time.Duration) Option {
	return func(m *Manager) { m.refreshMargin = d }
}

// NewManager creates a Manager. store may be nil to keep sessions in memory only.
func NewManager(c *client.Client, store *Store, opts ...Option) *Manager {
	if store == nil {
		store = NewStore("")
	}
	m := &Manager{
		client:        c,
		store:         store,
		logger:        logging.Discard(),
		now:           time.Now,
		refreshMargin: DefaultRefreshMargin,
		subs:          make(map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetSession returns the current session, restoring it from the store on
// first use and refreshing it when the access token is about to expire.
// A nil session with a nil error means unauthenticated.
func (m *Manager) GetSession(ctx context.Context) (*domain.Session, error) {
	s := m.current()
	if s == nil {
		return nil, nil
	}
	if s.ExpiresWithin(m.now(), m.refreshMargin) {
		return m.refresh(ctx, s)
	}
	return s, nil
}

// current returns the in-memory session, loading the stored one on first use.
func (m *Manager) current() *domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		stored, err := m.store.Load()
		if err != nil {
			m.logger.Warn("stored session unreadable, starting signed out", "error", err)
			stored = nil
		}
		m.session = stored
		m.loaded = true
	}
	return m.session
}

// refresh renews stale. Concurrent callers share one refresh: whoever
// arrives second sees the replaced session and returns it.
func (m *Manager) refresh(ctx context.Context, stale *domain.Session) (*domain.Session, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	m.mu.Lock()
	current := m.session
	m.mu.Unlock()
	if current != stale {
		return current, nil
	}

	fresh, err := m.client.RefreshSession(ctx, stale.RefreshToken)
	if err != nil {
		if rejected(err) && m.swap(stale, nil, domain.AuthSignedOut) {
			m.logger.Warn("refresh token rejected, signing out", "error", err)
		}
		return nil, fmt.Errorf("session.GetSession: %w", err)
	}
	if fresh.User.ID == uuid.Nil {
		fresh.User = stale.User
	}
	if !m.swap(stale, fresh, domain.AuthTokenRefreshed) {
		// Signed out or signed in again while the refresh was in flight.
		m.logger.Info("discarding refreshed session, identity changed")
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.session, nil
	}
	return fresh, nil
}

// rejected reports whether the backend refused the credentials outright,
// as opposed to being unreachable.
func rejected(err error) bool {
	var httpErr *client.HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500
}

// replace swaps the current session, persists it and notifies subscribers.
// The store is written under m.mu so the file watcher never observes our
// own write before the in-memory session matches it.
func (m *Manager) replace(s *domain.Session, kind domain.AuthEventKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceLocked(s, kind)
}

func (m *Manager) replaceLocked(s *domain.Session, kind domain.AuthEventKind) {
	if err := m.store.Save(s); err != nil {
		m.logger.Error("persist session", "error", err)
	}
	m.session = s
	m.loaded = true
	m.broadcastLocked(domain.AuthEvent{Kind: kind, Session: s})
}

// swap replaces the session with s only while it is still old.
func (m *Manager) swap(old, s *domain.Session, kind domain.AuthEventKind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != old {
		return false
	}
	m.replaceLocked(s, kind)
	return true
}

// SignUp registers an account. When the backend returns a session right
// away (email confirmation off) the caller becomes signed in.
func (m *Manager) SignUp(ctx context.Context, email, password string) (*domain.SignUpResult, error) {
	creds := credentials(email, password)
	res, err := m.client.SignUp(ctx, creds)
	if err != nil {
		m.logger.Info("sign up failed", "email", creds.Email, "error", err)
		return nil, err
	}
	if res.Session != nil {
		m.replace(res.Session, domain.AuthSignedIn)
	}
	return res, nil
}

// SignIn verifies credentials. The new session is announced to
// subscribers as SIGNED_IN; callers should react to that event rather
// than to SignIn returning.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	creds := credentials(email, password)
	s, err := m.client.SignInWithPassword(ctx, creds)
	if err != nil {
		m.logger.Info("sign in failed", "email", creds.Email, "error", err)
		return err
	}
	m.replace(s, domain.AuthSignedIn)
	return nil
}

// SignOut ends the session. A session the backend no longer knows about
// is dropped locally without error.
func (m *Manager) SignOut(ctx context.Context) error {
	if s := m.current(); s != nil {
		err := m.client.WithToken(s.AccessToken).SignOut(ctx)
		if err != nil && !client.IsStatus(err, http.StatusUnauthorized) &&
			!client.IsStatus(err, http.StatusForbidden) &&
			!client.IsStatus(err, http.StatusNotFound) {
			m.logger.Warn("sign out failed", "error", err)
			return err
		}
	}
	m.replace(nil, domain.AuthSignedOut)
	return nil
}

// Client returns an API client acting as the current session, or as the
// anonymous role when signed out.
func (m *Manager) Client(ctx context.Context) (*client.Client, error) {
	s, err := m.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return m.client, nil
	}
	return m.client.WithToken(s.AccessToken), nil
}

// credentials only trims the email. Format and strength are judged by the
// backend so its reason reaches the user verbatim.
func credentials(email, password string) domain.Credentials {
	return domain.Credentials{Email: strings.TrimSpace(email), Password: password}
}
