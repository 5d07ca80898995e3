// Package session holds the client-side authentication session: the bearer
// token, the last-used email, and transient cross-command scratch state.
//
// The token is an opaque credential. Absence of a token means unauthenticated;
// nothing in this package validates token contents.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNoSession is returned by helpers that need a token when none is stored.
var ErrNoSession = errors.New("no active session")

// Store persists the session across commands. Implementations must be safe for
// concurrent use.
type Store interface {
	// Token returns the stored bearer token. ok is false when unauthenticated.
	Token() (token string, ok bool)

	// SetToken stores the bearer token, replacing any previous one.
	SetToken(token string) error

	// Email returns the last-used account email, if known.
	Email() (email string, ok bool)

	// SetEmail stores the last-used account email.
	SetEmail(email string) error

	// Clear removes the token and any derived cached values. Used on logout.
	Clear() error
}

// fileState is the on-disk shape of a persisted session.
type fileState struct {
	Token string `json:"token,omitempty"`
	Email string `json:"email,omitempty"`
}

// FileStore persists the session as a JSON file, surviving process restarts
// the way browser local storage survives page reloads.
type FileStore struct {
	mu    sync.Mutex
	path  string
	state fileState
}

// NewFileStore opens (or initialises) a session file at path. A missing file
// is an empty session, not an error; a corrupt file degrades to an empty
// session so a bad write never locks the user out.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	if err := json.Unmarshal(data, &s.state); err != nil {
		s.state = fileState{}
	}
	return s, nil
}

// Token returns the persisted bearer token.
func (s *FileStore) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Token, s.state.Token != ""
}

// SetToken stores and persists the bearer token.
func (s *FileStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Token = token
	return s.flushLocked()
}

// Email returns the persisted last-used email.
func (s *FileStore) Email() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Email, s.state.Email != ""
}

// SetEmail stores and persists the last-used email.
func (s *FileStore) SetEmail(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Email = email
	return s.flushLocked()
}

// Clear removes the token and email and persists the empty session.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = fileState{}
	return s.flushLocked()
}

func (s *FileStore) flushLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	return nil
}

// MemoryStore is an in-memory Store for tests and for session-scoped scratch
// state that must not outlive the process (the analogue of sessionStorage).
type MemoryStore struct {
	mu      sync.Mutex
	token   string
	email   string
	pending []byte
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Token returns the in-memory bearer token.
func (s *MemoryStore) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

// SetToken stores the bearer token.
func (s *MemoryStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

// Email returns the stored email.
func (s *MemoryStore) Email() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email, s.email != ""
}

// SetEmail stores the email.
func (s *MemoryStore) SetEmail(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.email = email
	return nil
}

// Clear empties the session including pending scratch state.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.email, s.pending = "", "", nil
	return nil
}

// SetPending stashes a payload (e.g. a project creation request captured
// before an auth redirect) until the next TakePending.
func (s *MemoryStore) SetPending(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append([]byte(nil), payload...)
}

// TakePending returns and clears the stashed payload.
func (s *MemoryStore) TakePending() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pending
	s.pending = nil
	return p, p != nil
}
