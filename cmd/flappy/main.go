package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/baldhumanity/flappyfeller/logging"
)

var version = "0.1.0-dev"

func main() {
	loadEnv()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flappy",
		Short: "Flappy feller - neuroevolution in a pipe gauntlet",
		Long: `flappy trains populations of fellers to fly through a procedurally
generated pipe gauntlet, either with the classic clone-and-mutate scheme
or with NEAT, and keeps the history of every training run.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level, _ := cmd.Flags().GetString("log-level")
			slog.SetDefault(logging.NewLogger(level, cmd.ErrOrStderr()))
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("log-level", getEnvWithDefault("FLAPPY_LOG_LEVEL", "info"), "Log level: trace, debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newTrainCmd(),
		newReplayCmd(),
		newExportCmd(),
		newRunsCmd(),
		newServeCmd(),
	)
	return rootCmd
}
