package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, slog.Default(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	// An unreachable service still lets the local session be cleared.
	if err := a.start(ctx); err != nil {
		slog.Debug("session context not loaded before sign-out", "error", err)
	}

	if !a.manager.Snapshot().SignedIn() {
		fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
		return nil
	}
	if err := a.manager.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
	return nil
}
