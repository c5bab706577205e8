// Package trainer runs the generation loop: every generation flies the whole
// population through shared pipe gauntlets, scores each feller by the steps
// it survived and lets a Strategy breed the next generation.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/baldhumanity/flappyfeller/brainfile"
	"github.com/baldhumanity/flappyfeller/flappy"
	"github.com/baldhumanity/flappyfeller/logging"
	"github.com/baldhumanity/flappyfeller/neat"
)

// Frame size of paced runs.
const (
	frameCols = 80
	frameRows = 24
)

// survivorsEvery is how often, in steps, unpaced runs refresh the monitor.
const survivorsEvery = 100

// Summary holds the statistics of one generation.
type Summary struct {
	Generation int           `json:"generation"`
	Best       float64       `json:"best"`
	Mean       float64       `json:"mean"`
	Median     float64       `json:"median"`
	Species    int           `json:"species"`
	Population int           `json:"population"`
	Duration   time.Duration `json:"duration"`
}

// Recorder persists generation summaries.
type Recorder interface {
	RecordGeneration(ctx context.Context, runID string, s Summary) error
}

// Options are the optional collaborators of a Trainer.
type Options struct {
	RunID    string
	Logger   *slog.Logger
	Monitor  *Monitor
	Recorder Recorder
}

// Outcome is what a finished run produced.
type Outcome struct {
	Generations int
	Solved      bool
	Best        brainfile.File
	HasBest     bool
}

// Trainer drives a Strategy generation by generation.
type Trainer struct {
	cfg      Config
	world    flappy.WorldConfig
	strategy Strategy
	seed     int64
	runID    string
	logger   *slog.Logger
	monitor  *Monitor
	recorder Recorder
}

// New creates a trainer. A zero cfg.Seed is replaced by a time based seed.
func New(cfg Config, world flappy.WorldConfig, strategy Strategy, opts Options) *Trainer {
	t := &Trainer{
		cfg:      cfg,
		world:    world,
		strategy: strategy,
		seed:     cfg.Seed,
		runID:    opts.RunID,
		logger:   opts.Logger,
		monitor:  opts.Monitor,
		recorder: opts.Recorder,
	}
	if t.seed == 0 {
		t.seed = time.Now().UnixNano()
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.monitor == nil {
		t.monitor = NewMonitor(nil)
	}
	return t
}

// Seed returns the seed the pipe gauntlets are drawn from.
func (t *Trainer) Seed() int64 {
	return t.seed
}

// Monitor returns the live view of the run.
func (t *Trainer) Monitor() *Monitor {
	return t.monitor
}

// Run trains until the configured number of generations is done, the
// strategy reports a solution or ctx is cancelled. It always writes a final
// checkpoint when checkpointing is enabled. Cancellation is reported as
// ctx.Err() together with the outcome reached so far.
func (t *Trainer) Run(ctx context.Context) (Outcome, error) {
	t.monitor.start(t.runID, t.strategy.Name())
	defer t.monitor.stop()

	logger := t.logger.With("run", t.runID, "strategy", t.strategy.Name())
	logger.Info("training started", "seed", t.seed, "generations", t.cfg.Generations, "episodes", t.cfg.Episodes)

	var out Outcome
	var runErr error
	for done := 0; t.cfg.Generations == 0 || done < t.cfg.Generations; done++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		summary, res, err := t.generation(ctx)
		if err != nil {
			runErr = err
			break
		}
		out.Generations = summary.Generation

		logger.Info("generation finished",
			"generation", summary.Generation,
			"best", summary.Best,
			"mean", summary.Mean,
			"median", summary.Median,
			"species", summary.Species,
			"elapsed", summary.Duration)
		t.monitor.best(summary.Best)
		if t.recorder != nil {
			if err := t.recorder.RecordGeneration(ctx, t.runID, summary); err != nil {
				runErr = fmt.Errorf("recording generation %d: %w", summary.Generation, err)
				break
			}
		}
		if t.cfg.CheckpointEvery > 0 && summary.Generation%t.cfg.CheckpointEvery == 0 {
			t.checkpoint(logger, fmt.Sprintf("%s-%d.gz", t.cfg.CheckpointPrefix, summary.Generation))
		}
		if res.Solved {
			out.Solved = true
			logger.Info("solution found", "generation", summary.Generation)
			break
		}
	}

	if t.cfg.CheckpointEvery > 0 {
		t.checkpoint(logger, t.cfg.CheckpointPrefix+"-final.gz")
	}
	out.Best, out.HasBest = t.strategy.Best()
	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		logger.Info("training stopped", "generations", out.Generations)
	}
	return out, runErr
}

func (t *Trainer) checkpoint(logger *slog.Logger, path string) {
	if err := t.strategy.Checkpoint(path); err != nil {
		logger.Warn("checkpoint failed", "path", path, "err", err)
		return
	}
	logger.Debug("checkpoint written", "path", path)
}

// generation evaluates and breeds one generation.
func (t *Trainer) generation(ctx context.Context) (Summary, Result, error) {
	start := time.Now()
	gen := t.strategy.Generation() + 1
	res, err := t.strategy.Step(ctx, func(ctx context.Context, brains []flappy.Brain) ([]float64, error) {
		t.monitor.beginGeneration(gen, len(brains))
		return t.Evaluate(ctx, gen, brains)
	})
	if err != nil {
		return Summary{}, Result{}, fmt.Errorf("generation %d: %w", gen, err)
	}
	return Summary{
		Generation: gen,
		Best:       neat.MaxFloat(res.Scores),
		Mean:       neat.Mean(res.Scores),
		Median:     neat.Median(res.Scores),
		Species:    res.Species,
		Population: len(res.Scores),
		Duration:   time.Since(start),
	}, res, nil
}

// EpisodeSeed derives the pipe seed of one episode of a generation. All
// fellers of an episode face the same pipes.
func EpisodeSeed(runSeed int64, generation, episode int) int64 {
	return runSeed + int64(generation)*1_000_003 + int64(episode)*7_919
}

// Evaluate flies brains through cfg.Episodes worlds in parallel and returns
// each brain's mean steps survived. In paced mode episode 0 is throttled to
// fps frames per second, running Speed steps per frame.
func (t *Trainer) Evaluate(ctx context.Context, generation int, brains []flappy.Brain) ([]float64, error) {
	results := make([][]int, t.cfg.Episodes)
	g, gctx := errgroup.WithContext(ctx)
	for e := 0; e < t.cfg.Episodes; e++ {
		e := e
		g.Go(func() error {
			rng := rand.New(rand.NewSource(EpisodeSeed(t.seed, generation, e)))
			w := flappy.NewWorld(t.world, rng, brains)

			var hook func(*flappy.World) error
			if e == 0 {
				if t.cfg.FPS > 0 {
					ticker := time.NewTicker(time.Second / time.Duration(min(t.cfg.FPS, MaxFPS)))
					defer ticker.Stop()
					hook = t.pace(gctx, generation, ticker.C)
				} else {
					hook = t.watch
				}
			}
			if err := w.Run(gctx, t.cfg.MaxSteps, hook); err != nil {
				return err
			}
			results[e] = w.Results()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scores := make([]float64, len(brains))
	for _, res := range results {
		for i, steps := range res {
			scores[i] += float64(steps)
		}
	}
	for i := range scores {
		scores[i] /= float64(len(results))
	}
	return scores, nil
}

func (t *Trainer) watch(w *flappy.World) error {
	if w.Steps()%survivorsEvery == 0 {
		t.monitor.survivors(w.Survivors())
	}
	return nil
}

// pace publishes a frame after every Speed steps and then waits for the next tick.
func (t *Trainer) pace(ctx context.Context, generation int, tick <-chan time.Time) func(*flappy.World) error {
	pending := 0
	return func(w *flappy.World) error {
		pending++
		speed := t.monitor.Speed().Get()
		if pending < speed && w.Alive() {
			return nil
		}
		pending = 0
		frame := flappy.Render(w, generation, speed, frameCols, frameRows)
		t.monitor.publishFrame(w.Survivors(), frame)
		t.logger.Log(ctx, logging.LevelTrace, "frame", "generation", generation, "step", w.Steps(), "frame", frame)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			return nil
		}
	}
}
