package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette - Dracula theme inspired.
var (
	colorPurple   = lipgloss.Color("#bd93f9")
	colorPink     = lipgloss.Color("#ff79c6")
	colorGreen    = lipgloss.Color("#50fa7b")
	colorYellow   = lipgloss.Color("#f1fa8c")
	colorCyan     = lipgloss.Color("#8be9fd")
	colorRed      = lipgloss.Color("#ff5555")
	colorWhite    = lipgloss.Color("#f8f8f2")
	colorGray     = lipgloss.Color("#6272a4")
	colorDarkGray = lipgloss.Color("#44475a")
)

// ThemeOptions are the accessibility settings the UI honours.
type ThemeOptions struct {
	// NoColor drops all foreground/background colors.
	NoColor bool
	// ReducedMotion replaces animations with static indicators.
	ReducedMotion bool
}

// ThemeOptionsFromEnv derives theme options from the environment.
// Respects:
// - NO_COLOR (disables color output)
// - TERM=dumb (disables color output)
// - STRIDE_REDUCED_MOTION / REDUCED_MOTION (disables animation)
func ThemeOptionsFromEnv() ThemeOptions {
	var opts ThemeOptions
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		opts.NoColor = true
	}
	if strings.TrimSpace(strings.ToLower(os.Getenv("TERM"))) == "dumb" {
		opts.NoColor = true
	}
	if envBool("STRIDE_REDUCED_MOTION") || envBool("REDUCED_MOTION") {
		opts.ReducedMotion = true
	}
	return opts
}

func envBool(key string) bool {
	switch strings.TrimSpace(strings.ToLower(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Styles holds all the lipgloss styles for the TUI.
type Styles struct {
	// Header styles
	Header   lipgloss.Style
	Subtitle lipgloss.Style

	// Form styles
	Label        lipgloss.Style
	Input        lipgloss.Style
	FocusedInput lipgloss.Style

	// Buttons and links
	Button         lipgloss.Style
	FocusedButton  lipgloss.Style
	DisabledButton lipgloss.Style
	Link           lipgloss.Style

	// Feedback
	Error   lipgloss.Style
	Success lipgloss.Style
	Hint    lipgloss.Style

	// Status bar styles
	StatusBar  lipgloss.Style
	StatusKey  lipgloss.Style
	StatusText lipgloss.Style

	// Card around a screen's content
	Card lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPurple).
			MarginBottom(1),

		Subtitle: lipgloss.NewStyle().
			Foreground(colorGray),

		Label: lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true),

		Input: lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDarkGray),

		FocusedInput: lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPurple),

		Button: lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(colorWhite).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGray),

		FocusedButton: lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(colorWhite).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPink),

		DisabledButton: lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(colorGray).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDarkGray),

		Link: lipgloss.NewStyle().
			Foreground(colorPurple).
			Underline(true),

		Error: lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true),

		Success: lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true),

		Hint: lipgloss.NewStyle().
			Foreground(colorYellow).
			Italic(true),

		StatusBar: lipgloss.NewStyle().
			Padding(0, 1).
			Background(colorDarkGray).
			Foreground(colorWhite),

		StatusKey: lipgloss.NewStyle().
			Foreground(colorPurple).
			Bold(true),

		StatusText: lipgloss.NewStyle().
			Foreground(colorGray),

		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPurple).
			Padding(1, 3),
	}
}

// NewStyles returns styles for opts. NoColor keeps layout and emphasis but
// drops every color.
func NewStyles(opts ThemeOptions) Styles {
	s := DefaultStyles()
	if !opts.NoColor {
		return s
	}

	plain := func(st lipgloss.Style) lipgloss.Style {
		return st.UnsetForeground().UnsetBackground().UnsetBorderForeground()
	}
	s.Header = plain(s.Header)
	s.Subtitle = plain(s.Subtitle)
	s.Label = plain(s.Label)
	s.Input = plain(s.Input)
	s.FocusedInput = plain(s.FocusedInput).BorderStyle(lipgloss.ThickBorder())
	s.Button = plain(s.Button)
	s.FocusedButton = plain(s.FocusedButton).BorderStyle(lipgloss.ThickBorder())
	s.DisabledButton = plain(s.DisabledButton).Faint(true)
	s.Link = plain(s.Link)
	s.Error = plain(s.Error)
	s.Success = plain(s.Success)
	s.Hint = plain(s.Hint)
	s.StatusBar = plain(s.StatusBar)
	s.StatusKey = plain(s.StatusKey)
	s.StatusText = plain(s.StatusText)
	s.Card = plain(s.Card)
	return s
}
