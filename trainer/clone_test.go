package trainer

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/flappyfeller/brainfile"
	"github.com/baldhumanity/flappyfeller/flappy"
	"github.com/baldhumanity/flappyfeller/mlp"
)

func smallCloneConfig() Config {
	cfg := DefaultConfig()
	cfg.PopulationSize = 10
	cfg.KeepFraction = 0.2
	cfg.OffspringFraction = 0.5
	return cfg
}

// fixedScores evaluates to the given scores regardless of the brains.
func fixedScores(scores ...float64) EvalFunc {
	return func(context.Context, []flappy.Brain) ([]float64, error) {
		return append([]float64(nil), scores...), nil
	}
}

func ascending(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = float64(i)
	}
	return s
}

func TestCloneStepBreedsFullPopulation(t *testing.T) {
	s := NewCloneStrategy(smallCloneConfig(), rand.New(rand.NewSource(1)))
	before := s.Population()

	res, err := s.Step(context.Background(), fixedScores(ascending(10)...))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Generation())
	assert.Equal(t, 1, res.Species)
	assert.False(t, res.Solved)

	after := s.Population()
	require.Len(t, after, 10)
	for _, n := range after {
		for _, old := range before {
			assert.NotSame(t, old, n, "every brain of the next generation is new")
		}
	}
}

func TestCloneBreedLayout(t *testing.T) {
	s := NewCloneStrategy(smallCloneConfig(), rand.New(rand.NewSource(2)))
	s.cfg.MutationRate = 0
	parents := s.Population()

	next := s.breed(ascending(10))
	require.Len(t, next, 10)
	// With no mutation the first five are exact clones of the two best.
	for _, child := range next[:5] {
		assert.True(t, equalNetworks(child, parents[9]) || equalNetworks(child, parents[8]))
	}
	for _, fresh := range next[5:] {
		assert.False(t, equalNetworks(fresh, parents[9]))
		assert.False(t, equalNetworks(fresh, parents[8]))
	}
}

func TestCloneBreedAllZeroScores(t *testing.T) {
	s := NewCloneStrategy(smallCloneConfig(), rand.New(rand.NewSource(3)))
	next := s.breed(make([]float64, 10))
	assert.Len(t, next, 10)
}

func TestClonePickFollowsWeights(t *testing.T) {
	s := NewCloneStrategy(smallCloneConfig(), rand.New(rand.NewSource(4)))
	a, b := s.fresh(), s.fresh()
	ranked := []scored{{weight: 0, net: a}, {weight: 1, net: b}}
	for i := 0; i < 50; i++ {
		assert.Same(t, b, s.pick(ranked))
	}
}

func TestCloneStepTracksBest(t *testing.T) {
	cfg := smallCloneConfig()
	cfg.PopulationSize = 3
	s := NewCloneStrategy(cfg, rand.New(rand.NewSource(5)))
	_, ok := s.Best()
	assert.False(t, ok)

	best := s.Population()[1]
	_, err := s.Step(context.Background(), fixedScores(1, 5, 3))
	require.NoError(t, err)
	_, err = s.Step(context.Background(), fixedScores(2, 2, 2))
	require.NoError(t, err)

	file, ok := s.Best()
	require.True(t, ok)
	assert.Equal(t, brainfile.KindMLP, file.Kind)
	assert.Equal(t, 5.0, file.Fitness)
	assert.Equal(t, 1, file.Generation)
	assert.True(t, equalNetworks(best, file.Network))
}

func TestCloneStepErrors(t *testing.T) {
	s := NewCloneStrategy(smallCloneConfig(), rand.New(rand.NewSource(6)))
	_, err := s.Step(context.Background(), fixedScores(1, 2))
	assert.Error(t, err)

	boom := errors.New("boom")
	_, err = s.Step(context.Background(), func(context.Context, []flappy.Brain) ([]float64, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Generation())
}

func TestCloneCheckpointResume(t *testing.T) {
	cfg := smallCloneConfig()
	s := NewCloneStrategy(cfg, rand.New(rand.NewSource(7)))
	_, err := s.Step(context.Background(), fixedScores(ascending(10)...))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "clone.gz")
	require.NoError(t, s.Checkpoint(path))

	cfg.PopulationSize = 99
	resumed, err := ResumeCloneStrategy(path, cfg, rand.New(rand.NewSource(8)))
	require.NoError(t, err)
	assert.Equal(t, 1, resumed.Generation())
	assert.Equal(t, 10, resumed.cfg.PopulationSize)
	require.Len(t, resumed.Population(), 10)
	for i, n := range s.Population() {
		assert.True(t, equalNetworks(n, resumed.Population()[i]))
	}
	want, _ := s.Best()
	got, ok := resumed.Best()
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestResumeCloneStrategyMissingFile(t *testing.T) {
	_, err := ResumeCloneStrategy(filepath.Join(t.TempDir(), "none.gz"), smallCloneConfig(), rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func equalNetworks(a, b *mlp.Network) bool {
	return reflect.DeepEqual(a, b)
}
