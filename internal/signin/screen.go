package signin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dicklesworthstone/stride/internal/identity"
	"github.com/Dicklesworthstone/stride/internal/session"
)

// State is the state of one sign-in screen instance.
type State int

const (
	// StateGatedLoading - waiting for the session context to become ready.
	StateGatedLoading State = iota
	// StateGatedSignedOut - ready, signed out, controls enabled.
	StateGatedSignedOut
	// StateSubmitting - a credential submission is in flight.
	StateSubmitting
	// StateRedirecting - suspended on the external provider.
	StateRedirecting
	// StateActivating - committing the issued session.
	StateActivating
	// StateNavigated - the screen has left for the main route.
	StateNavigated
)

func (s State) String() string {
	switch s {
	case StateGatedLoading:
		return "GATED_LOADING"
	case StateGatedSignedOut:
		return "GATED_SIGNED_OUT"
	case StateSubmitting:
		return "SUBMITTING"
	case StateRedirecting:
		return "REDIRECTING"
	case StateActivating:
		return "ACTIVATING"
	case StateNavigated:
		return "NAVIGATED"
	default:
		return "UNKNOWN"
	}
}

// ErrInvalidTransition is returned when the screen is asked to move along an
// edge the state machine does not have.
var ErrInvalidTransition = errors.New("invalid sign-in state transition")

// The gate may navigate from any non-terminal state, since another process
// can sign in while a flow is in flight.
var transitions = map[State][]State{
	StateGatedLoading:   {StateGatedSignedOut, StateNavigated},
	StateGatedSignedOut: {StateSubmitting, StateRedirecting, StateNavigated},
	StateSubmitting:     {StateActivating, StateGatedSignedOut, StateNavigated},
	StateRedirecting:    {StateActivating, StateGatedSignedOut, StateNavigated},
	StateActivating:     {StateNavigated, StateGatedSignedOut},
	StateNavigated:      nil,
}

// CanTransition reports whether from -> to is an edge of the machine.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ScreenConfig configures a Screen.
type ScreenConfig struct {
	Identity  identity.Service
	Provider  ExternalProvider
	Activator Activator
	Navigator Navigator
	MainRoute string
	Reporter  Reporter
	Logger    *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Screen is the state machine behind one sign-in screen. It gates entry on
// the session context, runs at most one flow at a time and navigates at most
// once.
type Screen struct {
	gate       *Gate
	credential *CredentialFlow
	external   *ExternalFlow
	logger     *slog.Logger
	now        func() time.Time

	mu           sync.RWMutex
	state        State
	stateEntered time.Time
	history      []State
}

// NewScreen wires both flows through the screen's gate and activation hook.
func NewScreen(cfg ScreenConfig) *Screen {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Screen{
		logger:       logger,
		now:          now,
		state:        StateGatedLoading,
		stateEntered: now(),
		history:      []State{StateGatedLoading},
	}
	s.gate = NewGate(cfg.Navigator, cfg.MainRoute)
	s.gate.onEnter = func(string) { s.forceNavigated() }

	var activator Activator
	if cfg.Activator != nil {
		activator = &screenActivator{screen: s, inner: cfg.Activator}
	}
	flowCfg := FlowConfig{
		Activator: activator,
		Navigator: s.gate,
		MainRoute: cfg.MainRoute,
		Reporter:  cfg.Reporter,
		Logger:    logger,
		Now:       now,
	}
	s.credential = NewCredentialFlow(cfg.Identity, flowCfg)
	if cfg.Provider != nil {
		s.external = NewExternalFlow(cfg.Provider, flowCfg)
	}
	return s
}

// State returns the current state.
func (s *Screen) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// TimeInState returns how long the screen has been in its current state.
func (s *Screen) TimeInState() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now().Sub(s.stateEntered)
}

// History returns every state entered so far, oldest first.
func (s *Screen) History() []State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]State, len(s.history))
	copy(out, s.history)
	return out
}

// Loading reports whether a credential submission is in flight.
func (s *Screen) Loading() bool {
	return s.credential.Loading()
}

// Busy reports whether any flow is in flight.
func (s *Screen) Busy() bool {
	switch s.State() {
	case StateSubmitting, StateRedirecting, StateActivating:
		return true
	default:
		return false
	}
}

// HasExternal reports whether an external provider is configured.
func (s *Screen) HasExternal() bool {
	return s.external != nil
}

// Credential exposes the credential flow, e.g. to follow its loading flag.
func (s *Screen) Credential() *CredentialFlow {
	return s.credential
}

// Navigated reports whether the screen already left for the main route.
func (s *Screen) Navigated() bool {
	return s.gate.Fired()
}

// Observe re-evaluates the gate against a session snapshot. It reports
// whether this call navigated.
func (s *Screen) Observe(snap session.Snapshot) bool {
	if !snap.Ready {
		return false
	}
	if snap.Status == session.StatusSignedIn {
		return s.gate.Evaluate(snap)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateGatedLoading {
		_ = s.transitionLocked(StateGatedSignedOut)
	}
	return false
}

// Sync evaluates the gate against the current state of sc.
func (s *Screen) Sync(sc SessionContext) bool {
	if sc == nil || !sc.Ready() {
		return false
	}
	return s.Observe(session.Snapshot{Ready: true, Status: sc.Status()})
}

// SubmitCredentials runs the credential flow if the screen is idle.
func (s *Screen) SubmitCredentials(ctx context.Context, creds identity.Credentials) Outcome {
	if o, ok := s.begin(FlowCredential, StateSubmitting); !ok {
		return o
	}
	o := s.credential.Submit(ctx, creds)
	s.settle(o)
	return o
}

// StartExternal runs the external flow if the screen is idle.
func (s *Screen) StartExternal(ctx context.Context) Outcome {
	if s.external == nil {
		return skipped(FlowExternal, CodeNotReady, "screen.external", s.now())
	}
	if o, ok := s.begin(FlowExternal, StateRedirecting); !ok {
		return o
	}
	o := s.external.Start(ctx)
	s.settle(o)
	return o
}

// begin moves from GatedSignedOut into a flow state.
func (s *Screen) begin(flow Flow, to State) (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateGatedSignedOut:
		if err := s.transitionLocked(to); err != nil {
			return Outcome{Flow: flow, Kind: KindSkipped, Err: &Error{Code: CodeNotReady, Op: "screen.begin", Err: err}, Started: s.now()}, false
		}
		return Outcome{}, true
	case StateSubmitting, StateRedirecting, StateActivating:
		return skipped(flow, CodeBusy, "screen.begin", s.now()), false
	default:
		return skipped(flow, CodeNotReady, "screen.begin", s.now()), false
	}
}

// settle returns the screen to GatedSignedOut unless the flow (or the gate)
// already navigated.
func (s *Screen) settle(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateNavigated {
		return
	}
	if err := s.transitionLocked(StateGatedSignedOut); err != nil {
		s.logger.Warn("sign-in screen did not settle", "kind", o.Kind.String(), "error", err)
	}
}

func (s *Screen) enterActivating() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateNavigated {
		return errSuperseded
	}
	return s.transitionLocked(StateActivating)
}

func (s *Screen) forceNavigated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateNavigated {
		_ = s.transitionLocked(StateNavigated)
	}
}

// transitionLocked moves to next. Callers hold s.mu.
func (s *Screen) transitionLocked(next State) error {
	if !CanTransition(s.state, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, next)
	}
	s.logger.Debug("sign-in state",
		"from", s.state.String(),
		"to", next.String(),
		"after", s.now().Sub(s.stateEntered))
	s.state = next
	s.stateEntered = s.now()
	s.history = append(s.history, next)
	return nil
}

// screenActivator moves the screen into Activating before committing.
type screenActivator struct {
	screen *Screen
	inner  Activator
}

func (a *screenActivator) Activate(ctx context.Context, id identity.SessionID) error {
	if err := a.screen.enterActivating(); err != nil {
		return err
	}
	return a.inner.Activate(ctx, id)
}
