package client

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Session carries the signed-in identity and bearer token. It is passed
// explicitly to the board and API client instead of living in globals.
type Session struct {
	Token string `json:"token"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SignedIn reports whether the session holds a usable token.
func (s Session) SignedIn() bool {
	return s.Token != "" && s.Email != ""
}

// SessionStore persists a session across process restarts.
type SessionStore interface {
	Load() (Session, error)
	Save(Session) error
	Clear() error
}

// FileSessionStore keeps the session as a JSON file, the hydrate/clear
// lifecycle replacing ambient browser-local storage.
type FileSessionStore struct {
	Path string
}

// Load hydrates the persisted session; a missing file yields a zero session.
func (f FileSessionStore) Load() (Session, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Session{}, nil
		}
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Save persists the session, creating parent directories as needed.
func (f FileSessionStore) Save(s Session) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(f.Path, data, 0o600)
}

// Clear removes the persisted session on logout.
func (f FileSessionStore) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
