package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// staticGlyph replaces the animation under reduced motion.
const staticGlyph = "…"

// busyIndicator animates while the sign-in view waits on the session
// context or on a flow. Its tick loop ends on the first tick after it goes
// idle and is restarted when it becomes busy again.
type busyIndicator struct {
	model  spinner.Model
	static bool
	active bool
}

func newBusyIndicator(theme ThemeOptions) busyIndicator {
	s := spinner.New(spinner.WithSpinner(spinner.MiniDot))
	if !theme.NoColor {
		s.Style = lipgloss.NewStyle().Foreground(colorPurple)
	}
	return busyIndicator{model: s, static: theme.ReducedMotion}
}

// setActive turns the indicator on or off. It returns the first tick only
// when an animated indicator goes from idle to busy.
func (b busyIndicator) setActive(on bool) (busyIndicator, tea.Cmd) {
	if on == b.active {
		return b, nil
	}
	b.active = on
	return b, b.tick()
}

func (b busyIndicator) tick() tea.Cmd {
	if !b.active || b.static {
		return nil
	}
	return b.model.Tick
}

func (b busyIndicator) update(msg tea.Msg) (busyIndicator, tea.Cmd) {
	tick, ok := msg.(spinner.TickMsg)
	if !ok || !b.active || b.static {
		return b, nil
	}
	var cmd tea.Cmd
	b.model, cmd = b.model.Update(tick)
	return b, cmd
}

// view renders the glyph followed by label.
func (b busyIndicator) view(label string) string {
	glyph := staticGlyph
	if !b.static {
		glyph = b.model.View()
	}
	if label == "" {
		return glyph
	}
	return glyph + " " + label
}
