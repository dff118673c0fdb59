package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// RegisterModel is the placeholder shown on the sign-up route.
type RegisterModel struct {
	router     Router
	loginRoute string
	keys       keyMap
	styles     Styles
}

// NewRegisterModel returns the sign-up placeholder view.
func NewRegisterModel(router Router, loginRoute string, styles Styles) RegisterModel {
	return RegisterModel{
		router:     router,
		loginRoute: loginRoute,
		keys:       defaultKeyMap(),
		styles:     styles,
	}
}

// Update handles messages for the sign-up view.
func (m RegisterModel) Update(msg tea.Msg) (RegisterModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Back) {
		if !m.router.Back() {
			m.router.Replace(m.loginRoute)
		}
	}
	return m, nil
}

// View renders the sign-up view.
func (m RegisterModel) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Header.Render("Create your stride account"),
		m.styles.Subtitle.Render("Sign-up is not available in the terminal yet."),
		m.styles.Subtitle.Render("Create an account on the web, then come back to sign in."),
		"",
		m.styles.StatusKey.Render("esc")+m.styles.StatusText.Render(" back to sign in"),
	)
}
