package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var purgeKeepDays int

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove bookkeeping records and snapshots older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}

		keep := purgeKeepDays
		if !cmd.Flags().Changed("keep-days") {
			keep = cfg.PurgeKeepDays
		}
		removed, err := eng.Purge(keep)
		if err != nil {
			return err
		}

		// Drop operations that were begun but never completed within the
		// retention window; their tools are long gone.
		abandoned := 0
		sessions, err := eng.ListSessions()
		if err != nil {
			return err
		}
		for _, st := range sessions {
			n, err := eng.AbandonPending(st.SessionID, time.Duration(keep)*24*time.Hour)
			if err != nil {
				return err
			}
			abandoned += n
		}

		cmd.Printf("Removed %d file(s) older than %d day(s).\n", removed, keep)
		if abandoned > 0 {
			cmd.Printf("Abandoned %d stale pending operation(s).\n", abandoned)
		}
		return nil
	},
}

func init() {
	purgeCmd.Flags().IntVar(&purgeKeepDays, "keep-days", 30, "retain records newer than this many days")
	rootCmd.AddCommand(purgeCmd)
}
