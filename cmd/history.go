package cmd

import (
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <session-id> <path>",
	Short: "Show every tracked operation on a file within a session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}

		ops, err := eng.GetFileChangeHistory(args[0], args[1])
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			cmd.Println("No operations recorded.")
			return nil
		}
		for _, op := range ops {
			cmd.Printf("%s  turn %d  %-7s  %-9s  +%d/-%d  %s  %s\n",
				op.StartedAt.Format("15:04:05"),
				op.Turn, op.Kind, op.Status,
				op.Diff.Added, op.Diff.Removed,
				op.Tool, op.ID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
