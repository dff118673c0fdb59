// Package session owns the process-wide authentication status: it restores
// the stored session at startup, commits newly activated sessions and keeps
// subscribers informed when the status changes.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/Dicklesworthstone/stride/internal/identity"
	"github.com/Dicklesworthstone/stride/internal/watcher"
)

// Remote is the part of the identity client the manager needs.
type Remote interface {
	Load(ctx context.Context) (*identity.ClientState, error)
	EndSession(ctx context.Context, id identity.SessionID) error
	Token() string
	SetToken(token string)
}

// Config configures a Manager.
type Config struct {
	Remote Remote
	Store  Store

	// WatchDir is the directory watched for changes made by other processes.
	// Defaults to the FileStore's directory.
	WatchDir string

	// Now is the clock used for ActivatedAt; defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Manager is the session context.
type Manager struct {
	remote   Remote
	store    Store
	watchDir string
	now      func() time.Time
	logger   *slog.Logger

	mu     sync.RWMutex
	snap   Snapshot
	subs   map[int]chan Snapshot
	nextID int
}

// NewManager returns a manager in the loading state.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	watchDir := cfg.WatchDir
	if watchDir == "" {
		if fs, ok := cfg.Store.(*FileStore); ok {
			watchDir = filepath.Dir(fs.Path())
		}
	}

	return &Manager{
		remote:   cfg.Remote,
		store:    cfg.Store,
		watchDir: watchDir,
		now:      now,
		logger:   logger,
		snap:     Snapshot{Status: StatusLoading},
		subs:     make(map[int]chan Snapshot),
	}
}

// Ready reports whether the initial load has finished.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.Ready
}

// Status returns the current status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.Status
}

// Snapshot returns the current snapshot.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Subscribe returns a channel receiving the latest snapshot after every
// change, and a function that cancels the subscription. A slow subscriber
// only ever sees the most recent snapshot.
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Init loads the identity client and restores the stored session.
//
// A stored session still known to the service is restored; one the service
// no longer knows is cleared. When the service cannot be reached the stored
// session is trusted and the snapshot is marked Offline. Init only returns
// an error when the service is unreachable and nothing is stored.
func (m *Manager) Init(ctx context.Context) error {
	rec, err := m.store.Load()
	if err != nil && !errors.Is(err, ErrNoSession) {
		m.logger.Warn("discarding unreadable session file", "error", err)
		_ = m.store.Clear()
		rec = nil
	}
	if rec != nil && rec.ClientToken != "" {
		m.remote.SetToken(rec.ClientToken)
	}

	state, loadErr := m.remote.Load(ctx)
	if loadErr != nil {
		if rec != nil {
			m.logger.Warn("identity service unreachable, trusting stored session",
				"session_id", rec.SessionID,
				"error", loadErr)
			m.set(Snapshot{Ready: true, Status: StatusSignedIn, SessionID: rec.SessionID, UserID: rec.UserID, Offline: true})
			return nil
		}
		m.set(Snapshot{Ready: true, Status: StatusSignedOut})
		return fmt.Errorf("init session: %w", loadErr)
	}

	if rec == nil {
		m.set(Snapshot{Ready: true, Status: StatusSignedOut})
		return nil
	}

	sess, ok := state.Find(rec.SessionID)
	if !ok {
		m.logger.Info("stored session no longer valid, clearing", "session_id", rec.SessionID)
		if err := m.store.Clear(); err != nil {
			m.logger.Warn("failed to clear session file", "error", err)
		}
		m.set(Snapshot{Ready: true, Status: StatusSignedOut})
		return nil
	}

	// Persist the rotated client token and refreshed user.
	rec.ClientToken = m.remote.Token()
	if sess.UserID != "" {
		rec.UserID = sess.UserID
	}
	if err := m.store.Save(rec); err != nil {
		m.logger.Warn("failed to refresh session file", "error", err)
	}

	m.logger.Debug("restored session", "session_id", rec.SessionID, "user_id", rec.UserID)
	m.set(Snapshot{Ready: true, Status: StatusSignedIn, SessionID: rec.SessionID, UserID: rec.UserID})
	return nil
}

// Commit persists sess as the active session and flips to signed-in.
func (m *Manager) Commit(sess identity.Session) error {
	if sess.ID.IsZero() {
		return fmt.Errorf("commit session: session id is empty")
	}

	rec := &Record{
		SessionID:   sess.ID,
		ClientToken: m.remote.Token(),
		UserID:      sess.UserID,
		ActivatedAt: m.now().UTC(),
	}
	if err := m.store.Save(rec); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}

	m.set(Snapshot{Ready: true, Status: StatusSignedIn, SessionID: sess.ID, UserID: sess.UserID})
	return nil
}

// SignOut ends the active session on the service (best effort) and clears
// the stored record.
func (m *Manager) SignOut(ctx context.Context) error {
	snap := m.Snapshot()
	if !snap.SessionID.IsZero() && m.remote != nil {
		if err := m.remote.EndSession(ctx, snap.SessionID); err != nil && !errors.Is(err, identity.ErrNotFound) {
			m.logger.Warn("failed to end session remotely", "session_id", snap.SessionID, "error", err)
		}
	}

	if err := m.store.Clear(); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}

	m.set(Snapshot{Ready: true, Status: StatusSignedOut})
	return nil
}

// Watch follows the session file and applies changes made by other
// processes until ctx is done.
func (m *Manager) Watch(ctx context.Context) error {
	if m.watchDir == "" {
		return fmt.Errorf("watch session: no directory to watch")
	}

	w, err := watcher.New(m.watchDir, FileName)
	if err != nil {
		return fmt.Errorf("watch session: %w", err)
	}
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-w.Events():
			if !ok {
				return nil
			}
			m.logger.Debug("session file changed", "event", evt.Type.String())
			m.reload()
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			m.logger.Warn("session watcher error", "error", err)
		}
	}
}

// reload re-reads the store and publishes if the active session changed.
func (m *Manager) reload() {
	if !m.Ready() {
		return
	}

	rec, err := m.store.Load()
	switch {
	case errors.Is(err, ErrNoSession):
		m.set(Snapshot{Ready: true, Status: StatusSignedOut})
	case err != nil:
		m.logger.Warn("failed to read session file", "error", err)
	default:
		if rec.ClientToken != "" && rec.ClientToken != m.remote.Token() {
			m.remote.SetToken(rec.ClientToken)
		}
		m.set(Snapshot{Ready: true, Status: StatusSignedIn, SessionID: rec.SessionID, UserID: rec.UserID})
	}
}

// set stores snap and notifies subscribers when it differs from the current
// snapshot.
func (m *Manager) set(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if snap == m.snap {
		return
	}
	m.snap = snap
	m.logger.Debug("session status changed", "status", snap.Status.String(), "ready", snap.Ready)

	for _, ch := range m.subs {
		select {
		case ch <- snap:
		default:
			// Replace the unread snapshot with the latest one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
