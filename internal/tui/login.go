package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/stride/internal/identity"
	"github.com/Dicklesworthstone/stride/internal/session"
	"github.com/Dicklesworthstone/stride/internal/signin"
)

const (
	labelSignIn    = "Sign In"
	labelSigningIn = "Signing In..."
	labelGoogle    = "Continue with Google"

	waitingGoogle = "Waiting for Google. Finish signing in in your browser (esc to cancel)."

	hintForgot      = "Password reset is not available in the terminal yet."
	hintIncomplete  = "Additional verification is required. Finish signing in on the web, then try again."
	hintUnreachable = "Could not reach the identity service. Check your connection and try again."
)

// SignInScreen is the sign-in state machine the login view drives.
type SignInScreen interface {
	SubmitCredentials(ctx context.Context, creds identity.Credentials) signin.Outcome
	StartExternal(ctx context.Context) signin.Outcome
	Observe(snap session.Snapshot) bool
	HasExternal() bool
}

// Router is the route stack the views move through.
type Router interface {
	Current() string
	Push(route string)
	Replace(route string)
	Back() bool
}

// focusField is the control that receives key input.
type focusField int

const (
	focusEmail focusField = iota
	focusPassword
	focusSubmit
	focusGoogle
)

// LoginModel is the sign-in view.
type LoginModel struct {
	ctx           context.Context
	screen        SignInScreen
	router        Router
	registerRoute string

	email    textinput.Model
	password textinput.Model
	focus    focusField
	busyInd  busyIndicator

	snap        session.Snapshot
	loading     bool
	redirecting bool
	cancelFlow  context.CancelFunc

	errMsg string
	hint   string

	keys   keyMap
	styles Styles
	width  int
}

// NewLoginModel returns the sign-in view for screen.
func NewLoginModel(ctx context.Context, screen SignInScreen, router Router, registerRoute string, styles Styles, theme ThemeOptions) LoginModel {
	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.Prompt = ""
	email.CharLimit = 254
	email.Width = 36
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = ""
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128
	password.Width = 36

	// The session context starts out loading.
	busyInd, _ := newBusyIndicator(theme).setActive(true)

	return LoginModel{
		ctx:           ctx,
		screen:        screen,
		router:        router,
		registerRoute: registerRoute,
		email:         email,
		password:      password,
		focus:         focusEmail,
		busyInd:       busyInd,
		keys:          defaultKeyMap(),
		styles:        styles,
	}
}

// Init starts the cursor blink and the loading indicator.
func (m LoginModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.busyInd.tick())
}

// Loading reports whether a credential submission is in flight.
func (m LoginModel) Loading() bool { return m.loading }

// Redirecting reports whether the external provider flow is in flight.
func (m LoginModel) Redirecting() bool { return m.redirecting }

func (m LoginModel) busy() bool {
	return m.loading || m.redirecting
}

// enabled reports whether the sign-in controls accept input.
func (m LoginModel) enabled() bool {
	return m.snap.Ready && !m.snap.SignedIn() && !m.busy()
}

// Update handles messages for the sign-in view.
func (m LoginModel) Update(msg tea.Msg) (LoginModel, tea.Cmd) {
	m, cmd := m.update(msg)

	var tick tea.Cmd
	m.busyInd, tick = m.busyInd.setActive(!m.snap.Ready || m.busy())
	switch {
	case tick == nil:
		return m, cmd
	case cmd == nil:
		return m, tick
	}
	return m, tea.Batch(cmd, tick)
}

func (m LoginModel) update(msg tea.Msg) (LoginModel, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.snap = msg.snap
		m.screen.Observe(msg.snap)
		return m, nil

	case startedMsg:
		if msg.err != nil {
			m.hint = hintUnreachable
		}
		return m, nil

	case outcomeMsg:
		return m.handleOutcome(msg.outcome), nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}

	var cmd tea.Cmd
	m.busyInd, cmd = m.busyInd.update(msg)
	return m, cmd
}

func (m LoginModel) handleOutcome(o signin.Outcome) LoginModel {
	switch o.Flow {
	case signin.FlowCredential:
		m.loading = false
	case signin.FlowExternal:
		m.redirecting = false
		if m.cancelFlow != nil {
			m.cancelFlow()
			m.cancelFlow = nil
		}
	}

	if o.SignedIn() {
		m.errMsg = ""
		m.hint = ""
		return m
	}
	if o.Kind == signin.KindIncomplete {
		m.hint = hintIncomplete
		return m
	}
	if !o.Silent() {
		m.errMsg = outcomeMessage(o)
		m.password.SetValue("")
	}
	return m
}

// outcomeMessage turns a failed outcome into one line for the user.
func outcomeMessage(o signin.Outcome) string {
	var apiErr *identity.APIError
	if errors.As(o.Err, &apiErr) {
		switch {
		case apiErr.LongMessage != "":
			return apiErr.LongMessage
		case apiErr.Message != "":
			return apiErr.Message
		}
	}
	if o.Err == nil {
		return "Sign-in failed."
	}
	return "Sign-in failed: " + o.Err.Error()
}

func (m LoginModel) handleKeyPress(msg tea.KeyMsg) (LoginModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back) && m.redirecting:
		// Abandon the browser flow; the outcome arrives as cancelled.
		if m.cancelFlow != nil {
			m.cancelFlow()
		}
		return m, nil

	case key.Matches(msg, m.keys.Next):
		return m.setFocus(m.nextFocus(1))

	case key.Matches(msg, m.keys.Prev):
		return m.setFocus(m.nextFocus(-1))

	case key.Matches(msg, m.keys.Google):
		return m.startExternal()

	case key.Matches(msg, m.keys.Register):
		if m.busy() {
			return m, nil
		}
		m.router.Push(m.registerRoute)
		return m, nil

	case key.Matches(msg, m.keys.Forgot):
		m.hint = hintForgot
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		switch m.focus {
		case focusEmail:
			return m.setFocus(focusPassword)
		case focusGoogle:
			return m.startExternal()
		default:
			return m.submit()
		}
	}

	if m.busy() {
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusEmail:
		m.email, cmd = m.email.Update(msg)
	case focusPassword:
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m LoginModel) submit() (LoginModel, tea.Cmd) {
	if !m.enabled() {
		return m, nil
	}
	creds := identity.Credentials{
		Identifier: strings.TrimSpace(m.email.Value()),
		Secret:     m.password.Value(),
	}
	m.loading = true
	m.errMsg = ""
	m.hint = ""
	return m, submitCmd(m.ctx, m.screen, creds)
}

func (m LoginModel) startExternal() (LoginModel, tea.Cmd) {
	if !m.enabled() || !m.screen.HasExternal() {
		return m, nil
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelFlow = cancel
	m.redirecting = true
	m.errMsg = ""
	m.hint = ""
	return m, externalCmd(ctx, m.screen)
}

func (m LoginModel) nextFocus(delta int) focusField {
	count := int(focusSubmit) + 1
	if m.screen.HasExternal() {
		count++
	}
	next := (int(m.focus) + delta + count) % count
	return focusField(next)
}

func (m LoginModel) setFocus(f focusField) (LoginModel, tea.Cmd) {
	m.focus = f
	m.email.Blur()
	m.password.Blur()
	switch f {
	case focusEmail:
		return m, m.email.Focus()
	case focusPassword:
		return m, m.password.Focus()
	}
	return m, nil
}

// View renders the sign-in view.
func (m LoginModel) View() string {
	header := m.styles.Header.Render("stride")

	if !m.snap.Ready {
		return lipgloss.JoinVertical(lipgloss.Left, header, m.busyInd.view("Loading..."))
	}
	if m.snap.SignedIn() {
		return lipgloss.JoinVertical(lipgloss.Left, header, m.styles.Success.Render("Signed in. Opening stride..."))
	}

	rows := []string{
		header,
		m.styles.Subtitle.Render("Sign in to your account"),
		"",
		m.styles.Label.Render("Email"),
		m.inputStyle(focusEmail).Render(m.email.View()),
		m.styles.Label.Render("Password"),
		m.inputStyle(focusPassword).Render(m.password.View()),
		"",
		m.renderButtons(),
		"",
		m.styles.Link.Render("Forgot Password?"),
		m.styles.Subtitle.Render("Don't have an account? ") + m.styles.Link.Render("Sign Up"),
	}

	switch {
	case m.redirecting:
		rows = append(rows, "", m.busyInd.view(m.styles.Subtitle.Render(waitingGoogle)))
	case m.errMsg != "":
		rows = append(rows, "", m.styles.Error.Render(m.errMsg))
	}
	if m.hint != "" {
		rows = append(rows, "", m.styles.Hint.Render(m.hint))
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m LoginModel) inputStyle(f focusField) lipgloss.Style {
	if m.focus == f {
		return m.styles.FocusedInput
	}
	return m.styles.Input
}

func (m LoginModel) buttonStyle(f focusField) lipgloss.Style {
	switch {
	case !m.enabled():
		return m.styles.DisabledButton
	case m.focus == f:
		return m.styles.FocusedButton
	default:
		return m.styles.Button
	}
}

func (m LoginModel) renderButtons() string {
	label := labelSignIn
	if m.loading {
		label = m.busyInd.view(labelSigningIn)
	}
	buttons := []string{m.buttonStyle(focusSubmit).Render(label)}
	if m.screen.HasExternal() {
		buttons = append(buttons, "  ", m.buttonStyle(focusGoogle).Render(labelGoogle))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, buttons...)
}
