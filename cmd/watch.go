package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/rewind/internal/event"
	"github.com/fakeyudi/rewind/internal/watch"
)

// printEmitter writes events to stdout as they arrive.
type printEmitter struct{}

func (printEmitter) Emit(ev event.Event) {
	ts := time.UnixMilli(ev.Timestamp).Format("15:04:05")
	fmt.Printf("%s  %s  %s  %s\n", ts, ev.Type, ev.Path, ev.Message)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Report external modifications to tracked or locked files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w := &watch.Watcher{
			Engine:         eng,
			Emitter:        printEmitter{},
			IgnorePatterns: cfg.IgnorePatterns,
		}
		fmt.Printf("Watching %s (ctrl-c to stop)\n", eng.Workspace())
		return w.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
