package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/rewind/internal/report"
	"github.com/fakeyudi/rewind/internal/tui"
)

var plainOutput bool

var viewCmd = &cobra.Command{
	Use:   "view <session-id>",
	Short: "Browse a session's changes interactively",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}

		r, err := report.Build(eng, args[0], true)
		if err != nil {
			return err
		}

		// Fall back to plain output when stdout is not an interactive
		// terminal (piped or redirected).
		if plainOutput || !term.IsTerminal(os.Stdout.Fd()) {
			printReport(r)
			return nil
		}
		return tui.Run(r)
	},
}

// printReport writes a plain-text summary to stdout.
func printReport(r *report.SessionReport) {
	fmt.Println("## Summary")
	fmt.Printf("  Session:    %s\n", r.Stats.SessionID)
	fmt.Printf("  Started:    %s\n", r.Stats.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("  Turns:      %d\n", r.Stats.Turns)
	fmt.Printf("  Operations: %d (+%d pending)\n", r.Stats.Operations, r.Stats.Pending)
	fmt.Printf("  Lines:      +%d/-%d\n", r.Stats.Totals.Added, r.Stats.Totals.Removed)
	fmt.Println()

	fmt.Println("## Files")
	if len(r.Files) == 0 {
		fmt.Println("  (none)")
	} else {
		for _, fc := range r.Files {
			fmt.Printf("  %-8s  +%d/-%d  %s\n", fc.State, fc.Diff.Added, fc.Diff.Removed, fc.Path)
		}
	}
	fmt.Println()

	fmt.Println("## Locks")
	if len(r.Locks) == 0 {
		fmt.Println("  (none)")
	} else {
		for _, l := range r.Locks {
			fmt.Printf("  %s  (%s, held since %s)\n", l.Path, l.Tool, l.AcquiredAt.Format("15:04:05"))
		}
	}
	fmt.Println()

	fmt.Println("## Diffs")
	if len(r.Diffs) == 0 {
		fmt.Println("  (none)")
	} else {
		for _, fd := range r.Diffs {
			fmt.Printf("  ### %s (+%d/-%d)\n", fd.Path, fd.Summary.Added, fd.Summary.Removed)
			fmt.Println(fd.Unified)
		}
	}
}

func init() {
	viewCmd.Flags().BoolVar(&plainOutput, "plain", false, "plain text output instead of TUI")
	rootCmd.AddCommand(viewCmd)
}
