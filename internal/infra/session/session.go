package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Session carries the credentials and identity of the signed-in user. It is
// passed explicitly to everything that calls the backend; there is no
// ambient global lookup.
type Session struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Email    string `json:"email"`
}

// Valid reports whether the session can authenticate requests.
func (s Session) Valid() bool {
	return strings.TrimSpace(s.Token) != "" && strings.TrimSpace(s.UserID) != ""
}

// ErrNoSession is returned when no credentials are stored.
var ErrNoSession = errors.New("session: not signed in")

// Store persists the session as a JSON file. Load, Save and Clear are the
// only operations; Clear removes the file entirely so a 401 leaves nothing
// behind.
type Store struct {
	mu     sync.Mutex
	path   string
	cached *Session
}

// NewStore returns a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the stored session, caching it for later Current calls.
func (s *Store) Load() (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		return *s.cached, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("session: read %s: %w", s.path, err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("session: decode %s: %w", s.path, err)
	}
	if !sess.Valid() {
		return Session{}, ErrNoSession
	}
	s.cached = &sess
	return sess, nil
}

// Save writes the session to disk with owner-only permissions.
func (s *Store) Save(sess Session) error {
	if !sess.Valid() {
		return errors.New("session: token and user id are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("session: create %s: %w", dir, err)
		}
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("session: write %s: %w", s.path, err)
	}
	s.cached = &sess
	return nil
}

// Clear drops the cached session and deletes the file. Clearing an absent
// session is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: remove %s: %w", s.path, err)
	}
	return nil
}

// Current returns the cached session if one is loaded.
func (s *Store) Current() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == nil {
		return Session{}, false
	}
	return *s.cached, true
}
