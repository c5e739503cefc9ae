package cmd

import (
	"github.com/spf13/cobra"
)

var rollbackTurn int

var rollbackCmd = &cobra.Command{
	Use:   "rollback <session-id>",
	Short: "Restore files to their state before a session, or before a turn",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}

		var restored []string
		if cmd.Flags().Changed("turn") {
			restored, err = eng.RollbackToTurn(args[0], rollbackTurn)
		} else {
			restored, err = eng.RollbackSession(args[0])
		}
		if err != nil {
			return err
		}

		if len(restored) == 0 {
			cmd.Println("Nothing to restore.")
			return nil
		}
		for _, path := range restored {
			cmd.Printf("restored %s\n", path)
		}
		cmd.Printf("%d file(s) restored.\n", len(restored))
		return nil
	},
}

func init() {
	rollbackCmd.Flags().IntVar(&rollbackTurn, "turn", 0, "roll back only turns after this index, keeping the session")
	rootCmd.AddCommand(rollbackCmd)
}
