package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/baldhumanity/flappyfeller/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "List training runs or show one run's generations",
		Long: `Without arguments, list every recorded run, newest first. With a run
ID, show the statistics of each of its generations.

Examples:
  flappy runs
  flappy runs 0b0c3b8e-7c1f-4d5e-9a53-6c1a1f7e2d11 --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			jsonOut, _ := cmd.Flags().GetBool("json")

			history, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer history.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				runs, err := history.Runs(ctx)
				if err != nil {
					return err
				}
				if jsonOut {
					if runs == nil {
						runs = []store.Run{}
					}
					return json.NewEncoder(out).Encode(runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSTRATEGY\tSTATUS\tGENERATIONS\tBEST\tSTARTED")
				for _, r := range runs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.0f\t%s\n",
						r.ID, r.Strategy, r.Status, r.Generations, r.Best, r.StartedAt.Local().Format(time.DateTime))
				}
				return tw.Flush()
			}

			run, err := history.Run(ctx, args[0])
			if err != nil {
				return err
			}
			gens, err := history.Generations(ctx, run.ID)
			if err != nil {
				return err
			}
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]any{"run": run, "generations": gens})
			}
			fmt.Fprintf(out, "Run %s (%s, seed %d, %s)\n", run.ID, run.Strategy, run.Seed, run.Status)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "GEN\tBEST\tMEAN\tMEDIAN\tSPECIES\tTIME")
			for _, g := range gens {
				fmt.Fprintf(tw, "%d\t%.0f\t%.1f\t%.1f\t%d\t%s\n",
					g.Generation, g.Best, g.Mean, g.Median, g.Species, g.Duration.Round(time.Millisecond))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().String("db", getEnvWithDefault("FLAPPY_DB", defaultDBPath), "Run history database")
	return cmd
}
