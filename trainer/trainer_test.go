package trainer

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/flappyfeller/flappy"
	"github.com/baldhumanity/flappyfeller/logging"
	"github.com/baldhumanity/flappyfeller/mlp"
)

type memRecorder struct {
	mu        sync.Mutex
	runIDs    []string
	summaries []Summary
	err       error
}

func (r *memRecorder) RecordGeneration(_ context.Context, runID string, s Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runIDs = append(r.runIDs, runID)
	r.summaries = append(r.summaries, s)
	return r.err
}

// shortConfig caps episodes well before any pipe reaches the fellers, so
// every feller scores exactly MaxSteps.
func shortConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.PopulationSize = 6
	cfg.Generations = 3
	cfg.MaxSteps = 40
	cfg.Seed = 11
	cfg.CheckpointPrefix = filepath.Join(t.TempDir(), "cp")
	return cfg
}

func newCloneTrainer(cfg Config, opts Options) *Trainer {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return New(cfg, flappy.DefaultWorldConfig(), NewCloneStrategy(cfg, rand.New(rand.NewSource(cfg.Seed))), opts)
}

func TestRunClone(t *testing.T) {
	cfg := shortConfig(t)
	cfg.CheckpointEvery = 2
	rec := &memRecorder{}
	tr := newCloneTrainer(cfg, Options{RunID: "run-1", Recorder: rec})

	out, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, out.Generations)
	assert.False(t, out.Solved)
	require.True(t, out.HasBest)
	assert.Equal(t, 40.0, out.Best.Fitness)

	require.Len(t, rec.summaries, 3)
	for i, s := range rec.summaries {
		assert.Equal(t, "run-1", rec.runIDs[i])
		assert.Equal(t, i+1, s.Generation)
		assert.Equal(t, 6, s.Population)
		assert.Equal(t, 40.0, s.Best)
		assert.Equal(t, 40.0, s.Mean)
		assert.Equal(t, 40.0, s.Median)
	}

	assert.FileExists(t, cfg.CheckpointPrefix+"-2.gz")
	assert.FileExists(t, cfg.CheckpointPrefix+"-final.gz")
	assert.NoFileExists(t, cfg.CheckpointPrefix+"-1.gz")

	snap := tr.Monitor().Snapshot()
	assert.False(t, snap.Running)
	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, 3, snap.Generation)
	assert.Equal(t, 40.0, snap.BestScore)
}

func TestRunHonoursCancellation(t *testing.T) {
	cfg := shortConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := newCloneTrainer(cfg, Options{}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, out.Generations)
	assert.False(t, out.HasBest)
	_, statErr := os.Stat(cfg.CheckpointPrefix + "-final.gz")
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunStopsOnRecorderError(t *testing.T) {
	boom := errors.New("disk full")
	out, err := newCloneTrainer(shortConfig(t), Options{Recorder: &memRecorder{err: boom}}).Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, out.Generations)
}

func TestRunStopsWhenSolved(t *testing.T) {
	cfg := shortConfig(t)
	cfg.Strategy = StrategyNEAT
	cfg.Generations = 5
	neatCfg := loadNEATConfig(t)
	neatCfg.Neat.FitnessThreshold = 40
	s, err := NewNEATStrategy(neatCfg)
	require.NoError(t, err)

	out, err := New(cfg, flappy.DefaultWorldConfig(), s, Options{Logger: logging.Discard()}).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Solved)
	assert.Equal(t, 1, out.Generations)
	assert.True(t, out.HasBest)
}

func randomBrains(seed int64, n int) []flappy.Brain {
	rng := rand.New(rand.NewSource(seed))
	brains := make([]flappy.Brain, n)
	for i := range brains {
		brains[i] = mlp.New(flappy.NumInputs, 4, flappy.NumOutputs, rng)
	}
	return brains
}

func TestEvaluateIsDeterministic(t *testing.T) {
	cfg := shortConfig(t)
	cfg.MaxSteps = 3000
	cfg.Episodes = 3

	evaluate := func() []float64 {
		tr := newCloneTrainer(cfg, Options{})
		scores, err := tr.Evaluate(context.Background(), 4, randomBrains(9, 20))
		require.NoError(t, err)
		return scores
	}
	a := evaluate()
	require.Len(t, a, 20)
	assert.Equal(t, a, evaluate())
	for _, s := range a {
		assert.Greater(t, s, 0.0)
		assert.LessOrEqual(t, s, 3000.0)
	}
}

func TestEvaluateNilBrainsNeverFlap(t *testing.T) {
	cfg := shortConfig(t)
	cfg.MaxSteps = 0
	tr := newCloneTrainer(cfg, Options{})
	scores, err := tr.Evaluate(context.Background(), 1, make([]flappy.Brain, 2))
	require.NoError(t, err)
	assert.Equal(t, scores[0], scores[1])
	assert.Greater(t, scores[0], 0.0)
}

func TestEvaluateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newCloneTrainer(shortConfig(t), Options{}).Evaluate(ctx, 1, randomBrains(1, 3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEpisodeSeed(t *testing.T) {
	assert.Equal(t, EpisodeSeed(5, 2, 1), EpisodeSeed(5, 2, 1))
	assert.NotEqual(t, EpisodeSeed(5, 2, 0), EpisodeSeed(5, 2, 1))
	assert.NotEqual(t, EpisodeSeed(5, 1, 0), EpisodeSeed(5, 2, 0))
	assert.NotEqual(t, EpisodeSeed(5, 1, 0), EpisodeSeed(6, 1, 0))
}

func TestPacedRunPublishesFrames(t *testing.T) {
	cfg := shortConfig(t)
	cfg.Generations = 1
	cfg.MaxSteps = 10
	cfg.FPS = 1000
	mon := NewMonitor(nil)
	mon.Speed().Faster()

	_, err := newCloneTrainer(cfg, Options{Monitor: mon}).Run(context.Background())
	require.NoError(t, err)
	frame := mon.Frame()
	assert.Contains(t, frame, "Generation 1; Fellers: 6; Speed: 2")
	assert.Contains(t, frame, "@")
}

func TestNewPicksSeed(t *testing.T) {
	cfg := shortConfig(t)
	cfg.Seed = 0
	assert.NotZero(t, newCloneTrainer(cfg, Options{}).Seed())
	cfg.Seed = 42
	assert.Equal(t, int64(42), newCloneTrainer(cfg, Options{}).Seed())
}

func TestNEATRunIsReproducibleForSeed(t *testing.T) {
	run := func() ([]Summary, Outcome) {
		cfg := shortConfig(t)
		cfg.Strategy = StrategyNEAT
		cfg.MaxSteps = 1500
		neatCfg := loadNEATConfig(t)
		neatCfg.Seed(cfg.Seed)
		s, err := NewNEATStrategy(neatCfg)
		require.NoError(t, err)

		rec := &memRecorder{}
		out, err := New(cfg, flappy.DefaultWorldConfig(), s, Options{Logger: logging.Discard(), Recorder: rec}).Run(context.Background())
		require.NoError(t, err)
		for i := range rec.summaries {
			rec.summaries[i].Duration = 0
		}
		return rec.summaries, out
	}

	wantSummaries, wantOut := run()
	require.Len(t, wantSummaries, 3)
	for i := 0; i < 3; i++ {
		summaries, out := run()
		assert.Equal(t, wantSummaries, summaries, "run %d", i)
		assert.Equal(t, wantOut, out, "run %d", i)
	}
}
