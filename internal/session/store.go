package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Dicklesworthstone/stride/internal/identity"
)

// FileName is the name of the session file inside the stride home.
const FileName = "session.json"

// ErrNoSession is returned by Load when nothing is persisted.
var ErrNoSession = errors.New("no stored session")

// Record is the persisted reference to the active session. It holds the
// handle and the client token, never the user's credentials.
type Record struct {
	SessionID   identity.SessionID `json:"session_id"`
	ClientToken string             `json:"client_token,omitempty"`
	UserID      string             `json:"user_id,omitempty"`
	ActivatedAt time.Time          `json:"activated_at"`
}

// Store persists the active session record.
type Store interface {
	Load() (*Record, error)
	Save(rec *Record) error
	Clear() error
}

// FileStore keeps the record in a JSON file readable only by the owner.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the session file path.
func (s *FileStore) Path() string { return s.path }

// Load reads the record. A missing file or a record without a session ID
// yields ErrNoSession.
func (s *FileStore) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse session file %s: %w", s.path, err)
	}
	if rec.SessionID.IsZero() {
		return nil, ErrNoSession
	}
	return &rec, nil
}

// Save writes rec atomically with 0600 permissions.
func (s *FileStore) Save(rec *Record) error {
	if rec == nil || rec.SessionID.IsZero() {
		return fmt.Errorf("save session: record has no session id")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	tmpPath := s.path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename session file: %w", err)
	}

	return nil
}

// Clear removes the session file. Clearing an absent file is not an error.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
