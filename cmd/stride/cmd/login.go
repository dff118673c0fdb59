package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Dicklesworthstone/stride/internal/identity"
	"github.com/Dicklesworthstone/stride/internal/signin"
	"github.com/Dicklesworthstone/stride/internal/tui"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to stride",
	Long: `Opens the sign-in screen.

With --email the credential flow runs without the full-screen interface; the
password is prompted for without echo, or read from stdin with
--password-stdin. With --google the Google sign-in runs in your browser.

Examples:
  stride login
  stride login --email you@example.com
  echo "$PASSWORD" | stride login --email you@example.com --password-stdin
  stride login --google`,
	RunE: runLogin,
}

var (
	loginEmail         string
	loginPasswordStdin bool
	loginGoogle        bool
)

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "sign in with this email without the full-screen interface")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "read the password from stdin")
	loginCmd.Flags().BoolVar(&loginGoogle, "google", false, "sign in with Google without the full-screen interface")
}

func runLogin(cmd *cobra.Command, args []string) error {
	switch {
	case loginEmail != "" && loginGoogle:
		return fmt.Errorf("--email and --google cannot be combined")
	case loginPasswordStdin && loginEmail == "":
		return fmt.Errorf("--password-stdin requires --email")
	case loginEmail != "":
		return runCredentialLogin(cmd)
	case loginGoogle:
		return runGoogleLogin(cmd)
	default:
		return runLoginTUI(cmd)
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// runLoginTUI runs the full-screen sign-in. Logs go to the log file while
// the UI owns the terminal.
func runLoginTUI(cmd *cobra.Command) error {
	logFile, err := openLogFile()
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger := newLogger(logFile)
	slog.SetDefault(logger)

	a, err := newApp(cfg, logger, logFile)
	if err != nil {
		return err
	}
	defer a.Close()

	screen, err := a.newScreen()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	go func() {
		if err := a.manager.Watch(ctx); err != nil {
			logger.Warn("not following session changes", "error", err)
		}
	}()

	theme := tui.ThemeOptionsFromEnv()
	theme.ReducedMotion = theme.ReducedMotion || cfg.ReducedMotion

	if err := tui.Run(ctx, tui.Config{
		Router:        a.history,
		Session:       a.manager,
		Screen:        screen,
		Start:         a.start,
		LoginRoute:    cfg.Routes.Login,
		RegisterRoute: cfg.Routes.Register,
		MainRoute:     cfg.Routes.Main,
		Theme:         theme,
	}); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if snap := a.manager.Snapshot(); snap.SignedIn() {
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in (session %s).\n", snap.SessionID)
	}
	return nil
}

// prepareScreen loads the session context and returns a screen that has
// observed it. It reports whether a session was already active.
func prepareScreen(ctx context.Context, a *app) (*signin.Screen, bool, error) {
	screen, err := a.newScreen()
	if err != nil {
		return nil, false, err
	}
	if err := a.start(ctx); err != nil {
		return nil, false, err
	}
	if screen.Sync(a.manager) {
		return screen, true, nil
	}
	return screen, false, nil
}

func runCredentialLogin(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	a, err := newApp(cfg, slog.Default(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	screen, already, err := prepareScreen(ctx, a)
	if err != nil {
		return err
	}
	if already {
		fmt.Fprintf(out, "Already signed in (session %s).\n", a.manager.Snapshot().SessionID)
		return nil
	}

	var password string
	if loginPasswordStdin {
		password, err = readPasswordFrom(cmd.InOrStdin())
	} else {
		password, err = promptPassword(cmd.ErrOrStderr(), "Password: ")
	}
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	o := screen.SubmitCredentials(ctx, identity.Credentials{Identifier: loginEmail, Secret: password})
	return printOutcome(out, o)
}

func runGoogleLogin(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	if !cfg.GoogleEnabled() {
		return fmt.Errorf("google sign-in is not configured (set google.client_id or STRIDE_GOOGLE_CLIENT_ID)")
	}

	a, err := newApp(cfg, slog.Default(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	screen, already, err := prepareScreen(ctx, a)
	if err != nil {
		return err
	}
	if already {
		fmt.Fprintf(out, "Already signed in (session %s).\n", a.manager.Snapshot().SessionID)
		return nil
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Finish signing in with Google in your browser. Press Ctrl+C to cancel.")
	return printOutcome(out, screen.StartExternal(ctx))
}

// printOutcome reports o and turns anything but a sign-in into an error.
func printOutcome(w io.Writer, o signin.Outcome) error {
	switch o.Kind {
	case signin.KindSignedIn:
		if o.SessionID.IsZero() {
			fmt.Fprintln(w, "Signed in.")
			return nil
		}
		fmt.Fprintf(w, "Signed in (session %s).\n", o.SessionID)
		return nil
	case signin.KindIncomplete:
		return fmt.Errorf("additional verification is required; finish signing in on the web")
	case signin.KindCancelled:
		return fmt.Errorf("sign-in cancelled")
	default:
		if o.Err != nil {
			return o.Err
		}
		return fmt.Errorf("sign-in did not complete")
	}
}

// promptPassword reads a password from the terminal without echo.
func promptPassword(w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt)

	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(w)
		if err != nil {
			return "", err
		}
		return string(password), nil
	}

	// Non-terminal input (piped)
	return readPasswordFrom(os.Stdin)
}

// readPasswordFrom reads one line from r.
func readPasswordFrom(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("password is empty")
	}
	return password, nil
}
