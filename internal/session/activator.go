package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Dicklesworthstone/stride/internal/identity"
)

// Activator makes a freshly issued session the process's active session.
type Activator struct {
	svc     identity.Service
	manager *Manager
	logger  *slog.Logger

	mu        sync.Mutex
	activated map[identity.SessionID]struct{}
}

// NewActivator returns an activator committing into manager.
func NewActivator(svc identity.Service, manager *Manager, logger *slog.Logger) *Activator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activator{
		svc:       svc,
		manager:   manager,
		logger:    logger,
		activated: make(map[identity.SessionID]struct{}),
	}
}

// Activate asks the service to make id active, then commits it locally.
// A handle that was already activated is not sent again.
func (a *Activator) Activate(ctx context.Context, id identity.SessionID) error {
	if id.IsZero() {
		return fmt.Errorf("activate session: session id is empty")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, done := a.activated[id]; done {
		a.logger.Debug("session already active", "session_id", id)
		return nil
	}

	sess, err := a.svc.SetActiveSession(ctx, id)
	if err != nil {
		return fmt.Errorf("activate session %s: %w", id, err)
	}
	if err := a.manager.Commit(*sess); err != nil {
		return fmt.Errorf("activate session %s: %w", id, err)
	}

	a.activated[id] = struct{}{}
	a.logger.Info("session activated", "session_id", id, "user_id", sess.UserID)
	return nil
}
