package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/rewind/internal/report"
)

var sessionsReport string
var sessionsDiffs bool

var sessionsCmd = &cobra.Command{
	Use:   "sessions [session-id]",
	Short: "List tracked sessions, or report one session in detail",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}

		if len(args) == 0 {
			stats, err := eng.ListSessions()
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				cmd.Println("No tracked sessions.")
				return nil
			}
			for _, st := range stats {
				cmd.Printf("%s  started %s  turns %d  ops %d (+%d pending)  files %d  +%d/-%d\n",
					st.SessionID,
					st.CreatedAt.Format(time.RFC3339),
					st.Turns, st.Operations, st.Pending, st.FilesTouched,
					st.Totals.Added, st.Totals.Removed)
			}
			return nil
		}

		r, err := report.Build(eng, args[0], sessionsDiffs)
		if err != nil {
			return err
		}

		var renderer report.Renderer = report.MarkdownRenderer{}
		if sessionsReport == "json" {
			renderer = report.JSONRenderer{}
		}
		data, err := renderer.Render(r)
		if err != nil {
			return fmt.Errorf("render report: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	sessionsCmd.Flags().StringVar(&sessionsReport, "format", "markdown", "report format: markdown or json")
	sessionsCmd.Flags().BoolVar(&sessionsDiffs, "diffs", false, "include unified diffs in the report")
	rootCmd.AddCommand(sessionsCmd)
}
