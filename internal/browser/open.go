// Package browser opens the external provider's consent page for the user.
package browser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"
)

// Opener shows url to the user.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// Mode selects an Opener implementation.
type Mode string

const (
	ModeSystem Mode = "system"
	ModeChrome Mode = "chrome"
	ModeNone   Mode = "none"
)

// New returns the opener for mode. Unknown modes fall back to the system
// browser. The URL is always echoed to out as well, so that a headless
// session can still finish the flow by hand.
func New(mode Mode, out io.Writer, logger *slog.Logger) Opener {
	printer := &PrintOpener{Out: out}
	switch mode {
	case ModeNone:
		return printer
	case ModeChrome:
		return Multi{printer, &ChromeOpener{Logger: logger}}
	default:
		return Multi{printer, &SystemOpener{Logger: logger}}
	}
}

// Multi runs every opener and returns the first error, after trying all.
type Multi []Opener

// Open implements Opener.
func (m Multi) Open(ctx context.Context, url string) error {
	var first error
	for _, o := range m {
		if err := o.Open(ctx, url); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close closes every opener that holds resources.
func (m Multi) Close() error {
	var first error
	for _, o := range m {
		if c, ok := o.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// PrintOpener writes the URL for the user to open manually.
type PrintOpener struct {
	Out io.Writer
}

// Open implements Opener.
func (p *PrintOpener) Open(_ context.Context, url string) error {
	if p.Out == nil {
		return nil
	}
	_, err := fmt.Fprintf(p.Out, "Open this URL to continue signing in:\n  %s\n", url)
	return err
}

// SystemOpener hands the URL to $BROWSER or the platform's default handler.
type SystemOpener struct {
	Logger *slog.Logger

	// command overrides the launcher, for tests.
	command func(ctx context.Context, url string) *exec.Cmd
}

// Open implements Opener.
func (s *SystemOpener) Open(ctx context.Context, url string) error {
	if err := validateURL(url); err != nil {
		return err
	}

	build := s.command
	if build == nil {
		build = systemCommand
	}
	cmd := build(ctx, url)
	if cmd == nil {
		return fmt.Errorf("no browser launcher for %s", runtime.GOOS)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	logger(s.Logger).Debug("browser launched", "command", cmd.Path)
	// Reap the launcher; xdg-open and friends exit once the browser has the URL.
	go func() { _ = cmd.Wait() }()
	return nil
}

func systemCommand(ctx context.Context, url string) *exec.Cmd {
	if browser := strings.TrimSpace(os.Getenv("BROWSER")); browser != "" {
		return exec.CommandContext(ctx, "sh", "-c", browser+` "`+shellEscape(url)+`"`)
	}

	switch runtime.GOOS {
	case "darwin":
		return exec.CommandContext(ctx, "open", url)
	case "windows":
		return exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	case "linux", "freebsd", "openbsd", "netbsd":
		return exec.CommandContext(ctx, "xdg-open", url)
	default:
		return nil
	}
}

// ChromeOpener drives a visible Chrome window through the DevTools
// protocol. The window stays open until Close or until ctx is done.
type ChromeOpener struct {
	// UserDataDir keeps the window's profile, so Google remembers the
	// account between runs. Empty uses a throwaway profile.
	UserDataDir string
	Logger      *slog.Logger

	mu      sync.Mutex
	cancels []context.CancelFunc
}

// Open implements Opener.
func (c *ChromeOpener) Open(ctx context.Context, url string) error {
	if err := validateURL(url); err != nil {
		return err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.Flag("hide-scrollbars", false),
		chromedp.Flag("mute-audio", false),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
	)
	if c.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(c.UserDataDir))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx, chromedp.Navigate(url)); err != nil {
		cancelBrowser()
		cancelAlloc()
		return fmt.Errorf("open chrome: %w", err)
	}

	c.mu.Lock()
	c.cancels = append(c.cancels, cancelBrowser, cancelAlloc)
	c.mu.Unlock()

	logger(c.Logger).Debug("chrome window opened", "user_data_dir", c.UserDataDir)
	return nil
}

// Close shuts every window opened so far.
func (c *ChromeOpener) Close() error {
	c.mu.Lock()
	cancels := c.cancels
	c.cancels = nil
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return nil
}

func validateURL(url string) error {
	if !strings.HasPrefix(url, "https://") && !IsLoopbackURL(url) {
		return fmt.Errorf("refusing to open non-https url %q", url)
	}
	return nil
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
