package signin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Dicklesworthstone/stride/internal/identity"
)

// FlowConfig holds the collaborators shared by both flows.
type FlowConfig struct {
	Activator Activator
	Navigator Navigator
	MainRoute string
	Reporter  Reporter
	Logger    *slog.Logger

	// NewID generates outcome IDs; defaults to uuid.NewString.
	NewID func() string
	// Now defaults to time.Now.
	Now func() time.Time
}

func (c *FlowConfig) setDefaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.NewID == nil {
		c.NewID = uuid.NewString
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Reporter == nil {
		c.Reporter = LogReporter{Logger: c.Logger}
	}
}

// finish activates id, then navigates. It fills in the terminal fields of o.
// When another sign-in reached the main route first, id is left inactive and
// the outcome is a signed-in outcome without a session.
func (c *FlowConfig) finish(ctx context.Context, o *Outcome, id identity.SessionID, op string) {
	if err := c.Activator.Activate(ctx, id); err != nil {
		if errors.Is(err, errSuperseded) {
			c.Logger.Info("signed in elsewhere while the attempt completed, not activating",
				"outcome_id", o.ID,
				"created_session_id", id.String())
			o.Kind = KindSignedIn
			return
		}
		o.Kind = KindFailed
		o.Err = &Error{Code: CodeTransport, Op: op + ".activate", Err: err}
		return
	}
	o.Kind = KindSignedIn
	o.SessionID = id
	if c.Navigator != nil {
		c.Navigator.Replace(c.MainRoute)
	}
}

func (c *FlowConfig) report(o *Outcome) {
	o.Duration = c.Now().Sub(o.Started)
	c.Reporter.Report(*o)
}

// CredentialFlow signs in with an identifier and a secret.
type CredentialFlow struct {
	identity identity.Service
	cfg      FlowConfig

	loading atomic.Bool

	mu        sync.Mutex
	listeners []func(bool)
}

// NewCredentialFlow returns a flow submitting to svc.
func NewCredentialFlow(svc identity.Service, cfg FlowConfig) *CredentialFlow {
	cfg.setDefaults()
	return &CredentialFlow{identity: svc, cfg: cfg}
}

// Loading reports whether a submission is in flight.
func (f *CredentialFlow) Loading() bool {
	return f.loading.Load()
}

// OnLoadingChange registers fn to be called whenever Loading flips.
func (f *CredentialFlow) OnLoadingChange(fn func(loading bool)) {
	if fn == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

// Submit runs one credential sign-in. It never panics on service errors;
// every exit is described by the returned Outcome.
func (f *CredentialFlow) Submit(ctx context.Context, creds identity.Credentials) (o Outcome) {
	const op = "credential.submit"

	if f.identity == nil || !f.identity.Loaded() || f.cfg.Activator == nil {
		f.cfg.Logger.Debug("credential sign-in ignored, not ready")
		return skipped(FlowCredential, CodeNotReady, op, f.cfg.Now())
	}
	if !f.loading.CompareAndSwap(false, true) {
		f.cfg.Logger.Debug("credential sign-in ignored, already loading")
		return skipped(FlowCredential, CodeBusy, op, f.cfg.Now())
	}
	f.notify(true)
	defer func() {
		f.loading.Store(false)
		f.notify(false)
	}()

	o = Outcome{ID: f.cfg.NewID(), Flow: FlowCredential, Started: f.cfg.Now()}
	defer f.cfg.report(&o)

	attempt, err := f.identity.CreateSignIn(ctx, identity.PasswordParams(creds))
	if err != nil {
		o.Kind = KindFailed
		o.Err = &Error{Code: CodeTransport, Op: op, Err: err}
		return o
	}
	o.Attempt = attempt

	if !attempt.Status.Complete() {
		o.Kind = KindIncomplete
		o.Err = &Error{Code: CodeIncomplete, Op: op, Attempt: attempt}
		return o
	}
	if attempt.CreatedSessionID.IsZero() {
		o.Kind = KindFailed
		o.Err = &Error{Code: CodeTransport, Op: op, Err: fmt.Errorf("complete attempt %s carries no session", attempt.ID)}
		return o
	}

	f.cfg.finish(ctx, &o, attempt.CreatedSessionID, op)
	return o
}

func (f *CredentialFlow) notify(loading bool) {
	f.mu.Lock()
	listeners := make([]func(bool), len(f.listeners))
	copy(listeners, f.listeners)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(loading)
	}
}
