package main

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/baldhumanity/flappyfeller/brainfile"
	"github.com/baldhumanity/flappyfeller/flappy"
)

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <brain.yaml>",
		Short: "Fly a saved brain through one gauntlet",
		Long: `Load a brain written by train or export and fly it alone through one
gauntlet. The score is the number of steps survived. With --json only the
result is printed, no frames.

Examples:
  flappy replay best-brain.yaml
  flappy replay best-brain.yaml --seed 7 --frames 200`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			seed, _ := cmd.Flags().GetInt64("seed")
			maxSteps, _ := cmd.Flags().GetInt("max-steps")
			frames, _ := cmd.Flags().GetInt("frames")
			jsonOut, _ := cmd.Flags().GetBool("json")

			file, err := brainfile.Load(args[0])
			if err != nil {
				return err
			}
			brain, err := file.Brain()
			if err != nil {
				return err
			}

			world := flappy.DefaultWorldConfig()
			if configPath != "" {
				if world, err = flappy.LoadWorldConfig(configPath); err != nil {
					return err
				}
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			out := cmd.OutOrStdout()
			w := flappy.NewWorld(world, rand.New(rand.NewSource(seed)), []flappy.Brain{brain})
			var onStep func(*flappy.World) error
			if frames > 0 && !jsonOut {
				onStep = func(w *flappy.World) error {
					if w.Steps()%frames == 0 || !w.Alive() {
						fmt.Fprint(out, flappy.Render(w, file.Generation, frames, 80, 24))
					}
					return nil
				}
			}
			if err := w.Run(ctx, maxSteps, onStep); err != nil {
				return err
			}
			score := w.Results()[0]
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]any{
					"kind":  file.Kind,
					"seed":  seed,
					"score": score,
				})
			}
			fmt.Fprintf(out, "Score: %d\n", score)
			return nil
		},
	}

	cmd.Flags().String("config", "", "INI file with a [World] section (defaults to the classic gauntlet)")
	cmd.Flags().Int64("seed", 1, "Seed of the pipe gauntlet")
	cmd.Flags().Int("max-steps", 10000, "Stop after this many steps (0 means no cap)")
	cmd.Flags().Int("frames", 0, "Print a frame every this many steps (0 prints none)")
	return cmd
}
