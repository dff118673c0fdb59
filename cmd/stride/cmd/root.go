// Package cmd implements the CLI commands for stride.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/stride/internal/config"
)

var (
	configPath string
	verbose    bool
	logJSON    bool

	// cfg is loaded by the root command before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "stride",
	Short: "Sign in to stride from the terminal",
	Long: `stride signs you in to your stride account.

Run without arguments (or with "login") to open the sign-in screen. Use
"stride login --email" or "stride login --google" to sign in without the
full-screen interface.

Configuration is read from $XDG_CONFIG_HOME/stride/config.yaml. The active
session is kept in $STRIDE_HOME (default ~/.stride).`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoginTUI(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default $XDG_CONFIG_HOME/stride/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.ConfigPath()
	}

	loaded, err := config.LoadFrom(path)
	if err != nil {
		return err
	}
	cfg = loaded

	slog.SetDefault(newLogger(os.Stderr))
	return nil
}

// logLevel resolves --verbose and log_level.
func logLevel() slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func newLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevel()}
	if logJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openLogFile opens the log file used while the full-screen UI owns the
// terminal.
func openLogFile() (*os.File, error) {
	path := config.LogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
