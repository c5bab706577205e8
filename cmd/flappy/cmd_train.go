package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/baldhumanity/flappyfeller/api/i"
	liveapi "github.com/baldhumanity/flappyfeller/api/live"
	runsapi "github.com/baldhumanity/flappyfeller/api/runs"
	"github.com/baldhumanity/flappyfeller/brainfile"
	"github.com/baldhumanity/flappyfeller/flappy"
	"github.com/baldhumanity/flappyfeller/neat"
	"github.com/baldhumanity/flappyfeller/store"
	"github.com/baldhumanity/flappyfeller/trainer"
)

// trainReport is the --json output of train.
type trainReport struct {
	RunID          string  `json:"run_id,omitempty"`
	Seed           int64   `json:"seed"`
	Generations    int     `json:"generations"`
	Solved         bool    `json:"solved"`
	Interrupted    bool    `json:"interrupted"`
	BestScore      float64 `json:"best_score"`
	BestGeneration int     `json:"best_generation"`
	BrainFile      string  `json:"brain_file,omitempty"`
}

// trainSettings is everything a training run is built from.
type trainSettings struct {
	world   flappy.WorldConfig
	trainer trainer.Config
	neat    *neat.Config // nil unless strategy = neat
}

// loadTrainSettings reads every section of the config file. NEAT sections
// are only required by the neat strategy.
func loadTrainSettings(path string) (trainSettings, error) {
	var s trainSettings
	var err error
	if s.world, err = flappy.LoadWorldConfig(path); err != nil {
		return s, err
	}
	if s.trainer, err = trainer.LoadConfig(path); err != nil {
		return s, err
	}
	if s.trainer.Strategy == trainer.StrategyNEAT {
		if s.neat, err = neat.LoadConfig(path); err != nil {
			return s, err
		}
	}
	return s, nil
}

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a population of fellers",
		Long: `Train fellers until the configured number of generations is reached,
a NEAT genome reaches the fitness threshold, or the process is interrupted.

Every generation is logged and recorded in the run history. The best brain
is written as YAML on exit.

Examples:
  flappy train
  flappy train --config configs/flappy.ini --http :8080
  flappy train --resume flappy-checkpoint-40.gz --generations 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dbPath, _ := cmd.Flags().GetString("db")
			httpAddr, _ := cmd.Flags().GetString("http")
			outPath, _ := cmd.Flags().GetString("out")
			resume, _ := cmd.Flags().GetString("resume")

			settings, err := loadTrainSettings(configPath)
			if err != nil {
				return err
			}
			cfg := &settings.trainer
			if cmd.Flags().Changed("generations") {
				cfg.Generations, _ = cmd.Flags().GetInt("generations")
			}
			if cmd.Flags().Changed("fps") {
				cfg.FPS, _ = cmd.Flags().GetInt("fps")
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed, _ = cmd.Flags().GetInt64("seed")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Seed == 0 {
				cfg.Seed = time.Now().UnixNano()
			}

			logger := slog.Default()
			if settings.neat != nil {
				settings.neat.Logger = logger
				settings.neat.Seed(cfg.Seed)
			}
			strategy, err := trainer.NewStrategy(*cfg, settings.neat, resume, rand.New(rand.NewSource(cfg.Seed)))
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			var history *store.Store
			var runID string
			if dbPath != "" {
				history, err = store.Open(dbPath)
				if err != nil {
					return err
				}
				defer history.Close()

				settingsJSON, _ := json.Marshal(cfg)
				runID, err = history.CreateRun(ctx, store.Run{
					Strategy:   cfg.Strategy,
					Seed:       cfg.Seed,
					Population: populationSize(settings),
					Config:     string(settingsJSON),
				})
				if err != nil {
					return err
				}
			}

			monitor := trainer.NewMonitor(nil)
			opts := trainer.Options{RunID: runID, Logger: logger, Monitor: monitor}
			if history != nil {
				opts.Recorder = history
			}
			tr := trainer.New(*cfg, settings.world, strategy, opts)

			var servers errgroup.Group
			serveCtx, stopServer := context.WithCancel(ctx)
			defer stopServer()
			if httpAddr != "" {
				controllers := []i.Controller{liveapi.NewController(monitor)}
				if history != nil {
					controllers = append(controllers, runsapi.NewController(history))
				}
				router := newHTTPRouter(httpAddr, controllers, logger)
				servers.Go(func() error { return router.Run(serveCtx) })
			}

			outcome, runErr := tr.Run(ctx)
			stopServer()
			if err := servers.Wait(); err != nil {
				logger.Warn("http server stopped", "err", err)
			}

			stopped := errors.Is(runErr, context.Canceled)
			if history != nil {
				status := store.StatusFinished
				switch {
				case stopped:
					status = store.StatusStopped
				case runErr != nil:
					status = store.StatusFailed
				}
				// The run context may be cancelled already.
				if err := history.FinishRun(context.Background(), runID, status); err != nil {
					logger.Warn("failed to close run", "run", runID, "err", err)
				}
			}
			if runErr != nil && !stopped {
				return runErr
			}

			if outcome.HasBest && outPath != "" {
				if err := brainfile.Save(outPath, outcome.Best); err != nil {
					return err
				}
			} else {
				outPath = ""
			}

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				report := trainReport{
					RunID:       runID,
					Seed:        cfg.Seed,
					Generations: outcome.Generations,
					Solved:      outcome.Solved,
					Interrupted: stopped,
					BrainFile:   outPath,
				}
				if outcome.HasBest {
					report.BestScore = outcome.Best.Fitness
					report.BestGeneration = outcome.Best.Generation
				}
				return json.NewEncoder(out).Encode(report)
			}

			fmt.Fprintf(out, "Generations: %d\n", outcome.Generations)
			if outcome.Solved {
				fmt.Fprintln(out, "Fitness threshold met")
			}
			if !outcome.HasBest {
				fmt.Fprintln(out, "No brain was evaluated")
				return nil
			}
			fmt.Fprintf(out, "Best score: %.0f (generation %d)\n", outcome.Best.Fitness, outcome.Best.Generation)
			if outPath != "" {
				fmt.Fprintf(out, "Best brain written to %s\n", outPath)
			}
			if runID != "" {
				fmt.Fprintf(out, "Run: %s\n", runID)
			}
			return nil
		},
	}

	cmd.Flags().String("config", getEnvWithDefault("FLAPPY_CONFIG", defaultConfigPath), "INI file with [World], [Trainer] and NEAT sections")
	cmd.Flags().String("db", getEnvWithDefault("FLAPPY_DB", defaultDBPath), "Run history database (empty disables it)")
	cmd.Flags().String("http", getEnvWithDefault("FLAPPY_HTTP", ""), "Serve the API on this address while training")
	cmd.Flags().String("out", "best-brain.yaml", "Where to write the best brain (empty skips it)")
	cmd.Flags().String("resume", "", "Checkpoint to continue from")
	cmd.Flags().Int("generations", 0, "Override generations from the config (0 runs until solved or interrupted)")
	cmd.Flags().Int("fps", 0, "Override fps from the config (0 runs unpaced)")
	cmd.Flags().Int64("seed", 0, "Override seed from the config (0 picks one)")
	return cmd
}

func populationSize(s trainSettings) int {
	if s.neat != nil {
		return s.neat.Neat.PopSize
	}
	return s.trainer.PopulationSize
}
