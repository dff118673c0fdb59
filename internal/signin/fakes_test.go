package signin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Dicklesworthstone/stride/internal/identity"
)

// callLog records the order of side effects across fakes.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

// fakeService answers sign-ins keyed by the submitted password.
type fakeService struct {
	loaded bool
	log    *callLog

	// block, when set, holds CreateSignIn until closed.
	block chan struct{}

	mu      sync.Mutex
	submits int
}

func (s *fakeService) Loaded() bool { return s.loaded }

func (s *fakeService) CreateSignIn(ctx context.Context, params identity.SignInParams) (*identity.SignInAttempt, error) {
	s.mu.Lock()
	s.submits++
	s.mu.Unlock()
	if s.log != nil {
		s.log.add("create:" + params.Identifier)
	}
	if s.block != nil {
		<-s.block
	}

	switch params.Password {
	case "correct":
		return &identity.SignInAttempt{ID: "sia_1", Status: identity.StatusComplete, CreatedSessionID: "sess_1"}, nil
	case "needs-2fa":
		return &identity.SignInAttempt{ID: "sia_2", Status: identity.StatusNeedsSecondFactor}, nil
	case "complete-no-session":
		return &identity.SignInAttempt{ID: "sia_3", Status: identity.StatusComplete}, nil
	default:
		return nil, errors.New("connection reset by peer")
	}
}

func (s *fakeService) SetActiveSession(ctx context.Context, id identity.SessionID) (*identity.Session, error) {
	return &identity.Session{ID: id}, nil
}

func (s *fakeService) submitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submits
}

const (
	timeoutShort = time.Second
	tick         = 5 * time.Millisecond
)

type fakeActivator struct {
	log        *callLog
	err        error
	onActivate func()

	mu  sync.Mutex
	ids []identity.SessionID
}

func (a *fakeActivator) Activate(ctx context.Context, id identity.SessionID) error {
	a.mu.Lock()
	a.ids = append(a.ids, id)
	a.mu.Unlock()
	if a.log != nil {
		a.log.add("activate:" + id.String())
	}
	if a.onActivate != nil {
		a.onActivate()
	}
	return a.err
}

func (a *fakeActivator) activated() []identity.SessionID {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]identity.SessionID, len(a.ids))
	copy(out, a.ids)
	return out
}

type fakeNavigator struct {
	log *callLog

	mu     sync.Mutex
	routes []string
}

func (n *fakeNavigator) Replace(route string) {
	n.mu.Lock()
	n.routes = append(n.routes, route)
	n.mu.Unlock()
	if n.log != nil {
		n.log.add("replace:" + route)
	}
}

func (n *fakeNavigator) replaced() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.routes))
	copy(out, n.routes)
	return out
}

type fakeProvider struct {
	result identity.OAuthResult
	err    error
	// wait, when set, makes the provider suspend until ctx is done.
	wait bool
}

func (p *fakeProvider) StartExternalFlow(ctx context.Context) (identity.OAuthResult, error) {
	if p.wait {
		<-ctx.Done()
		return identity.OAuthResult{}, ctx.Err()
	}
	return p.result, p.err
}

type recordingReporter struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *recordingReporter) Report(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recordingReporter) reported() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Outcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
