package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/stride/internal/identity"
	"github.com/Dicklesworthstone/stride/internal/session"
	"github.com/Dicklesworthstone/stride/internal/signin"
)

// snapshotMsg carries a session context change.
type snapshotMsg struct {
	snap session.Snapshot
}

// outcomeMsg is sent when a sign-in flow finished.
type outcomeMsg struct {
	outcome signin.Outcome
}

// startedMsg is sent once the session context finished its initial load.
type startedMsg struct {
	err error
}

func submitCmd(ctx context.Context, screen SignInScreen, creds identity.Credentials) tea.Cmd {
	return func() tea.Msg {
		return outcomeMsg{outcome: screen.SubmitCredentials(ctx, creds)}
	}
}

func externalCmd(ctx context.Context, screen SignInScreen) tea.Cmd {
	return func() tea.Msg {
		return outcomeMsg{outcome: screen.StartExternal(ctx)}
	}
}

func waitForSnapshot(ch <-chan session.Snapshot) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg{snap: snap}
	}
}

func startCmd(ctx context.Context, start func(context.Context) error) tea.Cmd {
	if start == nil {
		return nil
	}
	return func() tea.Msg {
		return startedMsg{err: start(ctx)}
	}
}
