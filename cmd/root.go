package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/rewind/internal/config"
	"github.com/fakeyudi/rewind/internal/track"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

// workspaceFlag is the workspace root every subcommand operates on.
var workspaceFlag string

var rootCmd = &cobra.Command{
	Use:   "rewind",
	Short: "Track, diff, and roll back file changes made by AI coding tools",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load and merge config files.
		global, err := config.LoadGlobal()
		if err != nil {
			return fmt.Errorf("loading global config: %w", err)
		}
		project, err := config.LoadProject()
		if err != nil {
			return fmt.Errorf("loading project config: %w", err)
		}
		cfg = config.Merge(global, project)
		return nil
	},
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openEngine constructs and initializes the engine for the selected
// workspace using the merged configuration.
func openEngine() (*track.Engine, error) {
	eng := track.New(workspaceFlag,
		track.WithBookkeepingDir(cfg.BookkeepingDir),
		track.WithDiffContextLines(cfg.DiffContextLines),
	)
	if err := eng.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing engine: %w", err)
	}
	return eng, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", ".", "workspace root to operate on")
}
