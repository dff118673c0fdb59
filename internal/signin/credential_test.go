package signin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dicklesworthstone/stride/internal/identity"
)

type credentialHarness struct {
	log       *callLog
	svc       *fakeService
	activator *fakeActivator
	nav       *fakeNavigator
	reporter  *recordingReporter
	flow      *CredentialFlow
}

func newCredentialHarness() *credentialHarness {
	log := &callLog{}
	h := &credentialHarness{
		log:       log,
		svc:       &fakeService{loaded: true, log: log},
		activator: &fakeActivator{log: log},
		nav:       &fakeNavigator{log: log},
		reporter:  &recordingReporter{},
	}
	h.flow = NewCredentialFlow(h.svc, FlowConfig{
		Activator: h.activator,
		Navigator: h.nav,
		MainRoute: "/main",
		Reporter:  h.reporter,
		Logger:    discardLogger(),
	})
	return h
}

func creds(secret string) identity.Credentials {
	return identity.Credentials{Identifier: "user@test.com", Secret: secret}
}

func TestCredentialFlow_CompleteActivatesThenNavigates(t *testing.T) {
	h := newCredentialHarness()

	o := h.flow.Submit(context.Background(), creds("correct"))

	assert.Equal(t, KindSignedIn, o.Kind)
	assert.NoError(t, o.Err)
	assert.Equal(t, identity.SessionID("sess_1"), o.SessionID)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, []string{"create:user@test.com", "activate:sess_1", "replace:/main"}, h.log.list())
	assert.False(t, h.flow.Loading())
	require.Len(t, h.reporter.reported(), 1)
	assert.Equal(t, o.ID, h.reporter.reported()[0].ID)
}

func TestCredentialFlow_IncompleteIsNotFailure(t *testing.T) {
	h := newCredentialHarness()

	o := h.flow.Submit(context.Background(), creds("needs-2fa"))

	assert.Equal(t, KindIncomplete, o.Kind)
	assert.True(t, errors.Is(o.Err, ErrIncomplete))
	assert.False(t, errors.Is(o.Err, ErrTransport))
	require.NotNil(t, o.Attempt)
	assert.Equal(t, identity.StatusNeedsSecondFactor, o.Attempt.Status)
	assert.Empty(t, h.activator.activated())
	assert.Empty(t, h.nav.replaced())
	assert.False(t, h.flow.Loading())
	assert.False(t, o.Silent(), "incomplete attempts are reported for diagnosis")
}

func TestCredentialFlow_TransportErrorCapturedOnce(t *testing.T) {
	h := newCredentialHarness()

	o := h.flow.Submit(context.Background(), creds("boom"))

	assert.Equal(t, KindFailed, o.Kind)
	assert.True(t, errors.Is(o.Err, ErrTransport))
	assert.Equal(t, CodeTransport, o.Code())
	assert.ErrorContains(t, o.Err, "connection reset")
	assert.False(t, h.flow.Loading())
	assert.Empty(t, h.nav.replaced())
	assert.Len(t, h.reporter.reported(), 1, "error captured exactly once")
}

func TestCredentialFlow_CompleteWithoutSessionFails(t *testing.T) {
	h := newCredentialHarness()

	o := h.flow.Submit(context.Background(), creds("complete-no-session"))

	assert.Equal(t, KindFailed, o.Kind)
	assert.Empty(t, h.activator.activated())
	assert.Empty(t, h.nav.replaced())
}

func TestCredentialFlow_ActivationFailureDoesNotNavigate(t *testing.T) {
	h := newCredentialHarness()
	h.activator.err = errors.New("touch failed")

	o := h.flow.Submit(context.Background(), creds("correct"))

	assert.Equal(t, KindFailed, o.Kind)
	assert.True(t, errors.Is(o.Err, ErrTransport))
	assert.Equal(t, []identity.SessionID{"sess_1"}, h.activator.activated())
	assert.Empty(t, h.nav.replaced())
	assert.False(t, h.flow.Loading())
}

func TestCredentialFlow_NotReady(t *testing.T) {
	t.Run("service not loaded", func(t *testing.T) {
		h := newCredentialHarness()
		h.svc.loaded = false

		o := h.flow.Submit(context.Background(), creds("correct"))
		assert.Equal(t, KindSkipped, o.Kind)
		assert.True(t, errors.Is(o.Err, ErrNotReady))
		assert.True(t, o.Silent())
		assert.Equal(t, 0, h.svc.submitCount())
		assert.Empty(t, h.reporter.reported())
	})

	t.Run("no activator", func(t *testing.T) {
		svc := &fakeService{loaded: true}
		flow := NewCredentialFlow(svc, FlowConfig{Logger: discardLogger()})

		o := flow.Submit(context.Background(), creds("correct"))
		assert.True(t, errors.Is(o.Err, ErrNotReady))
		assert.Equal(t, 0, svc.submitCount())
	})

	t.Run("no service", func(t *testing.T) {
		flow := NewCredentialFlow(nil, FlowConfig{Activator: &fakeActivator{}, Logger: discardLogger()})
		o := flow.Submit(context.Background(), creds("correct"))
		assert.True(t, errors.Is(o.Err, ErrNotReady))
	})
}

func TestCredentialFlow_ReentrancyRejectedWhileLoading(t *testing.T) {
	h := newCredentialHarness()
	h.svc.block = make(chan struct{})

	var transitions []bool
	var mu sync.Mutex
	h.flow.OnLoadingChange(func(loading bool) {
		mu.Lock()
		transitions = append(transitions, loading)
		mu.Unlock()
	})

	first := make(chan Outcome, 1)
	go func() { first <- h.flow.Submit(context.Background(), creds("correct")) }()

	require.Eventually(t, h.flow.Loading, time.Second, 5*time.Millisecond)

	second := h.flow.Submit(context.Background(), creds("correct"))
	assert.Equal(t, KindSkipped, second.Kind)
	assert.True(t, errors.Is(second.Err, ErrBusy))
	assert.True(t, second.Silent())

	close(h.svc.block)
	o := <-first

	assert.Equal(t, KindSignedIn, o.Kind)
	assert.Equal(t, 1, h.svc.submitCount(), "no second attempt while loading")
	assert.Equal(t, []identity.SessionID{"sess_1"}, h.activator.activated())
	assert.Equal(t, []string{"/main"}, h.nav.replaced())
	assert.False(t, h.flow.Loading())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, transitions)
}

func TestCredentialFlow_LoadingClearedOnEveryExit(t *testing.T) {
	for _, secret := range []string{"correct", "needs-2fa", "boom", "complete-no-session"} {
		t.Run(secret, func(t *testing.T) {
			h := newCredentialHarness()
			var seen []bool
			h.flow.OnLoadingChange(func(loading bool) { seen = append(seen, loading) })

			h.flow.Submit(context.Background(), creds(secret))

			assert.False(t, h.flow.Loading())
			assert.Equal(t, []bool{true, false}, seen)
		})
	}
}

func TestCredentialFlow_DurationRecorded(t *testing.T) {
	h := newCredentialHarness()
	start := time.Unix(1700000000, 0)
	calls := 0
	h.flow.cfg.Now = func() time.Time {
		calls++
		return start.Add(time.Duration(calls-1) * 250 * time.Millisecond)
	}

	o := h.flow.Submit(context.Background(), creds("correct"))
	assert.Equal(t, 250*time.Millisecond, o.Duration)
	assert.Equal(t, 250*time.Millisecond, h.reporter.reported()[0].Duration)
}

func TestCredentialFlow_SkippedUsesClock(t *testing.T) {
	at := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	svc := &fakeService{loaded: false}
	flow := NewCredentialFlow(svc, FlowConfig{
		Activator: &fakeActivator{},
		Logger:    discardLogger(),
		Now:       func() time.Time { return at },
	})

	o := flow.Submit(context.Background(), creds("correct"))
	assert.Equal(t, KindSkipped, o.Kind)
	assert.Equal(t, at, o.Started)
}
