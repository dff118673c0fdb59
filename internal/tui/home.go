package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/stride/internal/session"
)

// HomeModel is the main route shown once a session is active.
type HomeModel struct {
	snap   session.Snapshot
	styles Styles
}

// NewHomeModel returns the main view.
func NewHomeModel(styles Styles) HomeModel {
	return HomeModel{styles: styles}
}

// Update handles messages for the main view.
func (m HomeModel) Update(msg tea.Msg) (HomeModel, tea.Cmd) {
	if msg, ok := msg.(snapshotMsg); ok {
		m.snap = msg.snap
	}
	return m, nil
}

// View renders the main view.
func (m HomeModel) View() string {
	rows := []string{m.styles.Header.Render("stride")}

	switch {
	case m.snap.SignedIn():
		rows = append(rows, m.styles.Success.Render("You're signed in."))
		if m.snap.UserID != "" {
			rows = append(rows, m.styles.Label.Render("User    ")+m.snap.UserID)
		}
		rows = append(rows, m.styles.Label.Render("Session ")+m.snap.SessionID.String())
		if m.snap.Offline {
			rows = append(rows, "", m.styles.Hint.Render("Offline: the session could not be confirmed with the identity service."))
		}
	case m.snap.Ready:
		rows = append(rows, m.styles.Hint.Render("This session was signed out from another stride window."))
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
