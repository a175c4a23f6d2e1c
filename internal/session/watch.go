package session

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/naveenspark/rlsnotes/pkg/domain"
)

// Watch follows the session file so that a sign-in or sign-out made by
// another rlsnotes process reaches this one's subscribers. It blocks until
// ctx is done.
func (m *Manager) Watch(ctx context.Context) error {
	path := m.store.Path()
	if path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("session.Watch: create watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck

	// Watch the directory: Save replaces the file by rename.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("session.Watch: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				m.syncFromStore()
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Error("session watcher", "error", werr)
		}
	}
}

// syncFromStore adopts whatever session is on disk, announcing the change
// when it differs from the one held in memory.
func (m *Manager) syncFromStore() {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, err := m.store.Load()
	if err != nil {
		m.logger.Debug("session file not readable yet", "error", err)
		return
	}
	current := m.session
	m.loaded = true

	switch {
	case stored == nil && current == nil:
		return
	case stored == nil:
		m.session = nil
		m.broadcastLocked(domain.AuthEvent{Kind: domain.AuthSignedOut})
	case current == nil || current.User.ID != stored.User.ID:
		m.session = stored
		m.broadcastLocked(domain.AuthEvent{Kind: domain.AuthSignedIn, Session: stored})
	case current.AccessToken != stored.AccessToken:
		m.session = stored
		m.broadcastLocked(domain.AuthEvent{Kind: domain.AuthTokenRefreshed, Session: stored})
	}
}
