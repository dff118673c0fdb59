package tui

import (
	"context"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/stride/internal/identity"
	"github.com/Dicklesworthstone/stride/internal/nav"
	"github.com/Dicklesworthstone/stride/internal/session"
	"github.com/Dicklesworthstone/stride/internal/signin"
)

type fakeScreen struct {
	mu       sync.Mutex
	external bool
	outcome  signin.Outcome
	creds    []identity.Credentials
	observed []session.Snapshot
	router   Router
}

func (f *fakeScreen) SubmitCredentials(ctx context.Context, creds identity.Credentials) signin.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds = append(f.creds, creds)
	o := f.outcome
	o.Flow = signin.FlowCredential
	if o.SignedIn() && f.router != nil {
		f.router.Replace(nav.RouteMain)
	}
	return o
}

// StartExternal stays on the provider until ctx is cancelled.
func (f *fakeScreen) StartExternal(ctx context.Context) signin.Outcome {
	<-ctx.Done()
	return signin.Outcome{
		Flow: signin.FlowExternal,
		Kind: signin.KindCancelled,
		Err:  &signin.Error{Code: signin.CodeCancelled, Op: "external", Err: ctx.Err()},
	}
}

func (f *fakeScreen) Observe(snap session.Snapshot) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observed = append(f.observed, snap)
	if snap.SignedIn() && f.router != nil {
		f.router.Replace(nav.RouteMain)
		return true
	}
	return false
}

func (f *fakeScreen) HasExternal() bool { return f.external }

func (f *fakeScreen) submitted() []identity.Credentials {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]identity.Credentials(nil), f.creds...)
}

type fakeSession struct {
	snap     session.Snapshot
	ch       chan session.Snapshot
	once     sync.Once
	canceled bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{ch: make(chan session.Snapshot, 1)}
}

func (f *fakeSession) Snapshot() session.Snapshot { return f.snap }

func (f *fakeSession) Subscribe() (<-chan session.Snapshot, func()) {
	return f.ch, func() {
		f.once.Do(func() {
			f.canceled = true
			close(f.ch)
		})
	}
}

var (
	signedOut = session.Snapshot{Ready: true, Status: session.StatusSignedOut}
	signedIn  = session.Snapshot{Ready: true, Status: session.StatusSignedIn, SessionID: "sess_1", UserID: "user_1"}
)

func newTestApp(t *testing.T, screen *fakeScreen) (App, *nav.History, *fakeSession) {
	t.Helper()
	history := nav.NewHistory(nav.RouteLogin)
	screen.router = history
	sess := newFakeSession()

	app := NewApp(context.Background(), Config{
		Router:  history,
		Session: sess,
		Screen:  screen,
	})
	t.Cleanup(app.Close)
	return app, history, sess
}

func update(t *testing.T, m App, msg tea.Msg) (App, tea.Cmd) {
	t.Helper()
	model, cmd := m.Update(msg)
	updated, ok := model.(App)
	if !ok {
		t.Fatalf("Update returned %T, want App", model)
	}
	return updated, cmd
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// findOutcome runs cmd (expanding batches) and returns the first outcome.
func findOutcome(t *testing.T, cmd tea.Cmd) (outcomeMsg, bool) {
	t.Helper()
	if cmd == nil {
		return outcomeMsg{}, false
	}
	switch msg := cmd().(type) {
	case outcomeMsg:
		return msg, true
	case tea.BatchMsg:
		for _, c := range msg {
			if o, ok := findOutcome(t, c); ok {
				return o, true
			}
		}
	}
	return outcomeMsg{}, false
}
