package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/baldhumanity/flappyfeller/brainfile"
	"github.com/baldhumanity/flappyfeller/trainer"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <checkpoint>",
		Short: "Write the best brain of a checkpoint as YAML",
		Long: `Read a checkpoint written by train and save its best brain. The
strategy named in the config file decides how the checkpoint is read.

Examples:
  flappy export flappy-checkpoint-final.gz
  flappy export flappy-checkpoint-30.gz --out gen30.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			outPath, _ := cmd.Flags().GetString("out")

			settings, err := loadTrainSettings(configPath)
			if err != nil {
				return err
			}
			best, err := trainer.BestFromCheckpoint(args[0], settings.trainer, settings.neat)
			if err != nil {
				return err
			}
			if err := brainfile.Save(outPath, best); err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"kind":       best.Kind,
					"fitness":    best.Fitness,
					"generation": best.Generation,
					"path":       outPath,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Best %s brain (score %.0f, generation %d) written to %s\n",
				best.Kind, best.Fitness, best.Generation, outPath)
			return nil
		},
	}

	cmd.Flags().String("config", getEnvWithDefault("FLAPPY_CONFIG", defaultConfigPath), "INI file the checkpoint was trained with")
	cmd.Flags().String("out", "best-brain.yaml", "Output YAML file")
	return cmd
}
