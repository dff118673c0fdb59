// Package tui provides the terminal user interface for stride: the sign-in
// screen, the sign-up placeholder and the main view, routed through a route
// stack.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/Dicklesworthstone/stride/internal/nav"
	"github.com/Dicklesworthstone/stride/internal/session"
)

// SessionSource is the session context the UI follows.
type SessionSource interface {
	Snapshot() session.Snapshot
	Subscribe() (<-chan session.Snapshot, func())
}

// Config configures the App.
type Config struct {
	Router  Router
	Session SessionSource
	Screen  SignInScreen

	// Start runs once when the program starts, typically the session
	// manager's initial load.
	Start func(ctx context.Context) error

	LoginRoute    string
	RegisterRoute string
	MainRoute     string

	Theme ThemeOptions
}

func (c *Config) setDefaults() {
	if c.LoginRoute == "" {
		c.LoginRoute = nav.RouteLogin
	}
	if c.RegisterRoute == "" {
		c.RegisterRoute = nav.RouteRegister
	}
	if c.MainRoute == "" {
		c.MainRoute = nav.RouteMain
	}
}

// App is the top-level Bubble Tea model. It renders whichever view matches
// the router's current route.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg         Config
	snaps       <-chan session.Snapshot
	unsubscribe func()

	route    string
	login    LoginModel
	register RegisterModel
	home     HomeModel

	width  int
	height int

	keys   keyMap
	help   help.Model
	styles Styles
}

// NewApp builds the app and subscribes to the session source.
func NewApp(ctx context.Context, cfg Config) App {
	cfg.setDefaults()
	ctx, cancel := context.WithCancel(ctx)
	styles := NewStyles(cfg.Theme)

	snaps, unsubscribe := cfg.Session.Subscribe()

	return App{
		ctx:         ctx,
		cancel:      cancel,
		cfg:         cfg,
		snaps:       snaps,
		unsubscribe: unsubscribe,
		route:       cfg.Router.Current(),
		login:       NewLoginModel(ctx, cfg.Screen, cfg.Router, cfg.RegisterRoute, styles, cfg.Theme),
		register:    NewRegisterModel(cfg.Router, cfg.LoginRoute, styles),
		home:        NewHomeModel(styles),
		keys:        defaultKeyMap(),
		help:        help.New(),
		styles:      styles,
	}
}

// Route returns the route currently shown.
func (m App) Route() string { return m.route }

// Init implements tea.Model.
func (m App) Init() tea.Cmd {
	current := m.cfg.Session.Snapshot()
	return tea.Batch(
		func() tea.Msg { return snapshotMsg{snap: current} },
		waitForSnapshot(m.snaps),
		startCmd(m.ctx, m.cfg.Start),
		m.login.Init(),
	)
}

// Update implements tea.Model.
func (m App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.Close()
			return m, tea.Quit
		}
		cmds = append(cmds, m.updateCurrent(msg))

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case snapshotMsg:
		// Every view follows the session context, visible or not.
		var cmd tea.Cmd
		m.login, cmd = m.login.Update(msg)
		cmds = append(cmds, cmd)
		m.home, _ = m.home.Update(msg)
		cmds = append(cmds, waitForSnapshot(m.snaps))

	default:
		// Flow outcomes, start-up results and indicator ticks all belong to
		// the sign-in view.
		var cmd tea.Cmd
		m.login, cmd = m.login.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.route = m.cfg.Router.Current()
	return m, tea.Batch(cmds...)
}

func (m *App) updateCurrent(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.route {
	case m.cfg.RegisterRoute:
		m.register, cmd = m.register.Update(msg)
	case m.cfg.MainRoute:
		m.home, cmd = m.home.Update(msg)
	default:
		m.login, cmd = m.login.Update(msg)
	}
	return cmd
}

// Close cancels in-flight flows and drops the session subscription.
func (m App) Close() {
	m.cancel()
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// View implements tea.Model.
func (m App) View() string {
	var body string
	switch m.route {
	case m.cfg.RegisterRoute:
		body = m.register.View()
	case m.cfg.MainRoute:
		body = m.home.View()
	default:
		body = m.login.View()
	}

	content := m.styles.Card.Render(body)
	status := m.renderStatusBar()
	if m.width == 0 {
		return content + "\n" + status
	}

	// JoinVertical would pad the status bar out to the card's width.
	content = lipgloss.NewStyle().MaxWidth(m.width).Render(content)
	if gap := m.height - lipgloss.Height(content) - lipgloss.Height(status); gap > 0 {
		content += strings.Repeat("\n", gap)
	}
	return content + "\n" + status
}

func (m App) renderStatusBar() string {
	line := m.help.ShortHelpView(m.statusBindings())
	if m.width > 0 {
		// Leave room for the bar's padding.
		line = ansi.Truncate(line, m.width-2, "…")
		return m.styles.StatusBar.Width(m.width).MaxWidth(m.width).Render(line)
	}
	return m.styles.StatusBar.Render(line)
}

func (m App) statusBindings() []key.Binding {
	switch m.route {
	case m.cfg.RegisterRoute:
		return []key.Binding{m.keys.Back, m.keys.Quit}
	case m.cfg.MainRoute:
		return []key.Binding{m.keys.Quit}
	}
	bindings := []key.Binding{m.keys.Next, m.keys.Submit}
	if m.cfg.Screen.HasExternal() {
		bindings = append(bindings, m.keys.Google)
	}
	return append(bindings, m.keys.Forgot, m.keys.Register, m.keys.Quit)
}

// Run starts the TUI and blocks until the user quits.
func Run(ctx context.Context, cfg Config) error {
	app := NewApp(ctx, cfg)
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
