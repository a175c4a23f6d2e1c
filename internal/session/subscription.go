package session

import (
	"sync"

	"github.com/naveenspark/rlsnotes/pkg/domain"
)

// subscriptionBuffer is how many undelivered events a subscriber may lag
// behind before new events are dropped for it.
const subscriptionBuffer = 16

// Subscription delivers auth-state changes until Unsubscribe is called.
type Subscription struct {
	m    *Manager
	ch   chan domain.AuthEvent
	once sync.Once
}

// Events returns the delivery channel. It is closed by Unsubscribe.
func (s *Subscription) Events() <-chan domain.AuthEvent {
	return s.ch
}

// Unsubscribe stops delivery and closes the channel. Safe to call more
// than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.m.mu.Lock()
		delete(s.m.subs, s)
		close(s.ch)
		s.m.mu.Unlock()
	})
}

// OnAuthStateChange registers a listener for auth-state changes.
func (m *Manager) OnAuthStateChange() *Subscription {
	sub := &Subscription{m: m, ch: make(chan domain.AuthEvent, subscriptionBuffer)}
	m.mu.Lock()
	m.subs[sub] = struct{}{}
	m.mu.Unlock()
	return sub
}

// Subscribers returns the number of live subscriptions.
func (m *Manager) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// broadcastLocked fans ev out to every subscriber. m.mu must be held, which
// also keeps Unsubscribe from closing a channel mid-send.
func (m *Manager) broadcastLocked(ev domain.AuthEvent) {
	m.logger.Info("auth state change", "kind", string(ev.Kind), "user_id", ev.Session.UserID().String())
	for sub := range m.subs {
		select {
		case sub.ch <- ev:
		default:
			m.logger.Warn("auth event dropped, subscriber not draining", "kind", string(ev.Kind))
		}
	}
}
