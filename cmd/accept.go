package cmd

import (
	"github.com/spf13/cobra"
)

var acceptFile string

var acceptCmd = &cobra.Command{
	Use:   "accept <session-id>",
	Short: "Keep a session's changes and discard its tracked history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}

		if acceptFile != "" {
			if err := eng.AcceptFile(args[0], acceptFile); err != nil {
				return err
			}
			cmd.Printf("Accepted %s; history discarded.\n", acceptFile)
			return nil
		}

		if err := eng.AcceptSession(args[0]); err != nil {
			return err
		}
		cmd.Println("Session accepted; history discarded, locks released.")
		return nil
	},
}

func init() {
	acceptCmd.Flags().StringVar(&acceptFile, "file", "", "accept a single file instead of the whole session")
	rootCmd.AddCommand(acceptCmd)
}
