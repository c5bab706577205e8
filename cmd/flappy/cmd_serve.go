package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/baldhumanity/flappyfeller/api/i"
	runsapi "github.com/baldhumanity/flappyfeller/api/runs"
	"github.com/baldhumanity/flappyfeller/store"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run history over HTTP",
		Long: `Serve the recorded runs without training. The live endpoints are only
available while train runs with --http.

Examples:
  flappy serve --http :8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			httpAddr, _ := cmd.Flags().GetString("http")
			if httpAddr == "" {
				return fmt.Errorf("--http address is required")
			}

			history, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer history.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			router := newHTTPRouter(httpAddr, []i.Controller{runsapi.NewController(history)}, slog.Default())
			return router.Run(ctx)
		},
	}

	cmd.Flags().String("db", getEnvWithDefault("FLAPPY_DB", defaultDBPath), "Run history database")
	cmd.Flags().String("http", getEnvWithDefault("FLAPPY_HTTP", ":8080"), "Address to listen on")
	return cmd
}
