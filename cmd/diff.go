package cmd

import (
	"github.com/spf13/cobra"
)

var diffAnchor string

var diffCmd = &cobra.Command{
	Use:   "diff <session-id> <path>",
	Short: "Show what a session changed in one file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}

		fd, err := eng.GetFileDiffWithAnchor(args[0], args[1], diffAnchor)
		if err != nil {
			return err
		}
		if fd.Unified == "" {
			cmd.Println("No changes.")
			return nil
		}
		cmd.Printf("+%d/-%d\n%s", fd.Summary.Added, fd.Summary.Removed, fd.Unified)
		return nil
	},
}

func init() {
	diffCmd.Flags().StringVar(&diffAnchor, "anchor", "", "diff since this operation id instead of the session's earliest record")
	rootCmd.AddCommand(diffCmd)
}
