package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/naveenspark/rlsnotes/pkg/domain"
)

// Store persists the current session as a JSON file. An empty path keeps
// nothing on disk.
type Store struct {
	path string
}

// NewStore creates a store backed by path.
func NewStore(path string) *Store {
	if path != "" {
		path = filepath.Clean(path)
	}
	return &Store{path: path}
}

// Path returns the session file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored session, or nil when none is stored.
func (s *Store) Load() (*domain.Session, error) {
	if s.path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session.Load: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("session.Load: decode %s: %w", s.path, err)
	}
	if sess.AccessToken == "" {
		return nil, nil
	}
	return &sess, nil
}

// Save writes sess atomically with owner-only permissions.
func (s *Store) Save(sess *domain.Session) error {
	if s.path == "" {
		return nil
	}
	if sess == nil {
		return s.Clear()
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("session.Save: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("session.Save: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("session.Save: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("session.Save: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("session.Save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session.Save: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("session.Save: %w", err)
	}
	return nil
}

// Clear removes the stored session. Clearing an absent session is not an error.
func (s *Store) Clear() error {
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session.Clear: %w", err)
	}
	return nil
}
