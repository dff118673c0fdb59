package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/stride/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether you are signed in",
	Long: `Restores the stored session against the identity service and prints the
result. When the service cannot be reached the stored session is reported as
offline.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().Bool("json", false, "output in JSON format")
}

// statusReport is the JSON form of the status command.
type statusReport struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Offline   bool   `json:"offline,omitempty"`
}

func newStatusReport(snap session.Snapshot) statusReport {
	return statusReport{
		Status:    snap.Status.String(),
		SessionID: snap.SessionID.String(),
		UserID:    snap.UserID,
		Offline:   snap.Offline,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(cfg, slog.Default(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if err := a.start(ctx); err != nil {
		return err
	}

	report := newStatusReport(a.manager.Snapshot())
	if jsonOutput {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	printStatus(cmd.OutOrStdout(), report)
	return nil
}

func printStatus(w io.Writer, r statusReport) {
	fmt.Fprintf(w, "Status:  %s\n", r.Status)
	if r.SessionID != "" {
		fmt.Fprintf(w, "Session: %s\n", r.SessionID)
	}
	if r.UserID != "" {
		fmt.Fprintf(w, "User:    %s\n", r.UserID)
	}
	if r.Offline {
		fmt.Fprintln(w, "Offline: identity service unreachable, stored session not confirmed")
	}
}
