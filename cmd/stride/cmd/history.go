package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/stride/internal/db"
)

const maxDetailWidth = 80

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent sign-in activity",
	Long: `Lists recent sign-in attempts recorded on this machine, newest first.
Failures and attempts that needed a further verification step are listed with
their details.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Int("limit", 20, "number of entries to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}

	store, err := db.Open()
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.RecentEvents(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sign-in activity recorded.")
		return nil
	}
	return renderHistory(cmd.OutOrStdout(), events)
}

func renderHistory(w io.Writer, events []db.Event) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "WHEN\tFLOW\tRESULT\tTOOK\tDETAIL")
	for _, ev := range events {
		result := ev.Kind
		if ev.Code != "" && ev.Code != ev.Kind {
			result += " (" + ev.Code + ")"
		}
		detail := ev.Detail
		if detail == "" && ev.SessionID != "" {
			detail = "session " + ev.SessionID
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			ev.At.Local().Format("2006-01-02 15:04:05"),
			ev.Flow,
			result,
			ev.Duration.Round(time.Millisecond),
			ansi.Truncate(detail, maxDetailWidth, "…"),
		)
	}
	return tw.Flush()
}
