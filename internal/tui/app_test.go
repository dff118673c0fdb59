package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dicklesworthstone/stride/internal/identity"
	"github.com/Dicklesworthstone/stride/internal/nav"
	"github.com/Dicklesworthstone/stride/internal/signin"
)

func TestNewApp(t *testing.T) {
	app, _, _ := newTestApp(t, &fakeScreen{})

	assert.Equal(t, nav.RouteLogin, app.Route())
	assert.NotNil(t, app.Init())
	assert.Equal(t, nav.RouteRegister, app.cfg.RegisterRoute)
	assert.Equal(t, nav.RouteMain, app.cfg.MainRoute)
}

func TestApp_WindowSize(t *testing.T) {
	app, _, _ := newTestApp(t, &fakeScreen{})

	app, _ = update(t, app, tea.WindowSizeMsg{Width: 100, Height: 40})
	assert.Equal(t, 100, app.width)
	assert.Equal(t, 40, app.height)
}

func TestApp_GatedWhileLoading(t *testing.T) {
	screen := &fakeScreen{}
	app, _, _ := newTestApp(t, screen)

	assert.Contains(t, app.View(), "Loading...")

	app, _ = update(t, app, keyRunes("user@test.com"))
	app, _ = update(t, app, tea.KeyMsg{Type: tea.KeyTab})
	app, cmd := update(t, app, tea.KeyMsg{Type: tea.KeyEnter})

	assert.False(t, app.login.Loading())
	_, ran := findOutcome(t, cmd)
	assert.False(t, ran, "no submission before the session context is ready")
	assert.Empty(t, screen.submitted())
}

func TestApp_SnapshotIsObserved(t *testing.T) {
	screen := &fakeScreen{}
	app, _, _ := newTestApp(t, screen)

	app, cmd := update(t, app, snapshotMsg{snap: signedOut})
	assert.NotNil(t, cmd, "app keeps listening for snapshots")
	require.Len(t, screen.observed, 1)
	assert.Contains(t, app.View(), "Sign in to your account")
	assert.Contains(t, app.View(), "Forgot Password?")
	assert.Contains(t, app.View(), "Sign Up")
}

func TestApp_SignedInSnapshotNavigatesToMain(t *testing.T) {
	app, history, _ := newTestApp(t, &fakeScreen{})

	app, _ = update(t, app, snapshotMsg{snap: signedIn})

	assert.Equal(t, nav.RouteMain, history.Current())
	assert.Equal(t, nav.RouteMain, app.Route())
	view := app.View()
	assert.Contains(t, view, "You're signed in.")
	assert.Contains(t, view, "sess_1")
}

func TestApp_SubmitCredentials(t *testing.T) {
	screen := &fakeScreen{outcome: signin.Outcome{Kind: signin.KindSignedIn, SessionID: "sess_1"}}
	app, history, _ := newTestApp(t, screen)
	app, _ = update(t, app, snapshotMsg{snap: signedOut})

	app, _ = update(t, app, keyRunes("user@test.com"))
	app, _ = update(t, app, tea.KeyMsg{Type: tea.KeyTab})
	app, _ = update(t, app, keyRunes("correct-horse"))
	app, cmd := update(t, app, tea.KeyMsg{Type: tea.KeyEnter})

	assert.True(t, app.login.Loading())
	assert.Contains(t, app.View(), labelSigningIn)

	// Controls are disabled while loading.
	app, second := update(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	_, ran := findOutcome(t, second)
	assert.False(t, ran, "second enter must not submit again")

	msg, ok := findOutcome(t, cmd)
	require.True(t, ok)
	require.Equal(t, []identity.Credentials{{Identifier: "user@test.com", Secret: "correct-horse"}}, screen.submitted())

	app, _ = update(t, app, msg)
	assert.False(t, app.login.Loading())
	assert.Equal(t, nav.RouteMain, history.Current())
	assert.Equal(t, nav.RouteMain, app.Route())
}

func TestApp_EnterOnEmailMovesToPassword(t *testing.T) {
	screen := &fakeScreen{}
	app, _, _ := newTestApp(t, screen)
	app, _ = update(t, app, snapshotMsg{snap: signedOut})

	app, _ = update(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, focusPassword, app.login.focus)
	assert.False(t, app.login.Loading())
}

func TestApp_FailedOutcomeShowsError(t *testing.T) {
	app, _, _ := newTestApp(t, &fakeScreen{})
	app, _ = update(t, app, snapshotMsg{snap: signedOut})
	app.login.password.SetValue("wrong")
	app.login.loading = true

	app, _ = update(t, app, outcomeMsg{outcome: signin.Outcome{
		Flow: signin.FlowCredential,
		Kind: signin.KindFailed,
		Err: &signin.Error{Code: signin.CodeTransport, Op: "submit", Err: &identity.APIError{
			Status:      422,
			Code:        "form_password_incorrect",
			LongMessage: "Password is incorrect. Try again, or use another method.",
		}},
	}})

	assert.False(t, app.login.Loading())
	assert.Empty(t, app.login.password.Value(), "password is cleared after a failure")
	assert.Contains(t, app.View(), "Password is incorrect.")
	assert.Contains(t, app.View(), labelSignIn)
}

func TestApp_IncompleteOutcomeShowsHint(t *testing.T) {
	app, _, _ := newTestApp(t, &fakeScreen{})
	app, _ = update(t, app, snapshotMsg{snap: signedOut})
	app.login.loading = true

	app, _ = update(t, app, outcomeMsg{outcome: signin.Outcome{
		Flow:    signin.FlowCredential,
		Kind:    signin.KindIncomplete,
		Attempt: &identity.SignInAttempt{Status: identity.StatusNeedsSecondFactor},
		Err:     &signin.Error{Code: signin.CodeIncomplete},
	}})

	assert.False(t, app.login.Loading())
	assert.Equal(t, hintIncomplete, app.login.hint)
	assert.Empty(t, app.login.errMsg)
}

func TestApp_SilentOutcomeShowsNothing(t *testing.T) {
	app, _, _ := newTestApp(t, &fakeScreen{})
	app, _ = update(t, app, snapshotMsg{snap: signedOut})

	app, _ = update(t, app, outcomeMsg{outcome: signin.Outcome{
		Flow: signin.FlowExternal,
		Kind: signin.KindCancelled,
		Err:  &signin.Error{Code: signin.CodeCancelled},
	}})
	assert.Empty(t, app.login.errMsg)
}

func TestApp_RegisterAndBack(t *testing.T) {
	app, history, _ := newTestApp(t, &fakeScreen{})
	app, _ = update(t, app, snapshotMsg{snap: signedOut})

	app, _ = update(t, app, tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.Equal(t, nav.RouteRegister, app.Route())
	assert.Equal(t, 2, history.Depth(), "sign up is pushed, not replaced")
	assert.Contains(t, app.View(), "Create your stride account")

	app, _ = update(t, app, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, nav.RouteLogin, app.Route())
	assert.Equal(t, 1, history.Depth())
}

func TestApp_ForgotPasswordIsInert(t *testing.T) {
	app, history, _ := newTestApp(t, &fakeScreen{})
	app, _ = update(t, app, snapshotMsg{snap: signedOut})

	app, cmd := update(t, app, tea.KeyMsg{Type: tea.KeyCtrlF})
	assert.Nil(t, cmd)
	assert.Equal(t, nav.RouteLogin, history.Current())
	assert.Equal(t, hintForgot, app.login.hint)
}

func TestApp_GoogleHiddenWithoutProvider(t *testing.T) {
	app, _, _ := newTestApp(t, &fakeScreen{})
	app, _ = update(t, app, snapshotMsg{snap: signedOut})

	assert.NotContains(t, app.View(), labelGoogle)
	app, cmd := update(t, app, tea.KeyMsg{Type: tea.KeyCtrlG})
	assert.Nil(t, cmd)
	assert.False(t, app.login.Redirecting())
}

func TestApp_GoogleFlowCancelledWithEsc(t *testing.T) {
	app, _, _ := newTestApp(t, &fakeScreen{external: true})
	app, _ = update(t, app, snapshotMsg{snap: signedOut})
	assert.Contains(t, app.View(), labelGoogle)

	app, cmd := update(t, app, tea.KeyMsg{Type: tea.KeyCtrlG})
	require.NotNil(t, cmd)
	assert.True(t, app.login.Redirecting())
	assert.Contains(t, app.View(), "Waiting for Google")

	result := make(chan outcomeMsg, 1)
	go func() {
		msg, _ := findOutcome(t, cmd)
		result <- msg
	}()

	app, _ = update(t, app, tea.KeyMsg{Type: tea.KeyEsc})

	select {
	case msg := <-result:
		assert.Equal(t, signin.KindCancelled, msg.outcome.Kind)
		app, _ = update(t, app, msg)
		assert.False(t, app.login.Redirecting())
		assert.Empty(t, app.login.errMsg)
	case <-time.After(2 * time.Second):
		t.Fatal("external flow did not return after esc")
	}
}

func TestApp_StartErrorShowsHint(t *testing.T) {
	app, _, _ := newTestApp(t, &fakeScreen{})

	app, _ = update(t, app, startedMsg{err: errors.New("dial tcp: connection refused")})
	assert.Equal(t, hintUnreachable, app.login.hint)
}

func TestApp_QuitCancelsSubscription(t *testing.T) {
	app, _, sess := newTestApp(t, &fakeScreen{})

	_, cmd := update(t, app, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, sess.canceled)
	assert.Error(t, app.ctx.Err(), "flows are cancelled on quit")
}

func TestApp_StatusBarTruncatesToWidth(t *testing.T) {
	app, _, _ := newTestApp(t, &fakeScreen{external: true})
	app, _ = update(t, app, snapshotMsg{snap: signedOut})
	app, _ = update(t, app, tea.WindowSizeMsg{Width: 30, Height: 40})

	view := app.View()
	lines := strings.Split(view, "\n")
	status := lines[len(lines)-1]
	assert.LessOrEqual(t, ansi.StringWidth(status), 30)
	assert.Contains(t, status, "…")
	for i, line := range lines {
		assert.LessOrEqual(t, ansi.StringWidth(line), 30, "line %d overflows", i)
	}
	assert.Equal(t, 40, len(lines), "view fills the terminal height")
}

func TestApp_ViewWithoutSizeKeepsStatusBarLast(t *testing.T) {
	app, _, _ := newTestApp(t, &fakeScreen{external: true})
	app, _ = update(t, app, snapshotMsg{snap: signedOut})

	lines := strings.Split(app.View(), "\n")
	assert.Contains(t, lines[len(lines)-1], "quit")
}

func TestOutcomeMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"long message wins", &identity.APIError{Message: "short", LongMessage: "long"}, "long"},
		{"message", &identity.APIError{Message: "short"}, "short"},
		{"plain error", errors.New("boom"), "Sign-in failed: boom"},
		{"no error", nil, "Sign-in failed."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := outcomeMessage(signin.Outcome{Kind: signin.KindFailed, Err: tt.err})
			if got != tt.want {
				t.Errorf("outcomeMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
