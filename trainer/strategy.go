package trainer

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/baldhumanity/flappyfeller/brainfile"
	"github.com/baldhumanity/flappyfeller/flappy"
	"github.com/baldhumanity/flappyfeller/neat"
)

// EvalFunc flies every brain and returns its score, the mean number of
// steps survived, in the same order.
type EvalFunc func(ctx context.Context, brains []flappy.Brain) ([]float64, error)

// Result describes one evaluated generation.
type Result struct {
	Scores  []float64
	Species int
	Solved  bool // The strategy's own stopping criterion was met
}

// Strategy breeds brains. Step evaluates the current generation through eval
// and prepares the next one.
type Strategy interface {
	Name() string
	Generation() int
	Step(ctx context.Context, eval EvalFunc) (Result, error)
	Best() (brainfile.File, bool)
	Checkpoint(path string) error
}

// NewStrategy builds the strategy named by cfg. neatConfig is only used by
// the neat strategy; resume, when non-empty, is a checkpoint to continue from.
func NewStrategy(cfg Config, neatConfig *neat.Config, resume string, rng *rand.Rand) (Strategy, error) {
	switch cfg.Strategy {
	case StrategyClone:
		if resume != "" {
			return ResumeCloneStrategy(resume, cfg, rng)
		}
		return NewCloneStrategy(cfg, rng), nil
	case StrategyNEAT:
		if neatConfig == nil {
			return nil, fmt.Errorf("strategy %q needs a NEAT configuration", cfg.Strategy)
		}
		if resume != "" {
			return ResumeNEATStrategy(resume, neatConfig)
		}
		return NewNEATStrategy(neatConfig)
	}
	return nil, fmt.Errorf("unknown strategy %q", cfg.Strategy)
}

// BestFromCheckpoint loads a checkpoint written by the strategy named in cfg
// and returns its best brain.
func BestFromCheckpoint(path string, cfg Config, neatConfig *neat.Config) (brainfile.File, error) {
	s, err := NewStrategy(cfg, neatConfig, path, rand.New(rand.NewSource(1)))
	if err != nil {
		return brainfile.File{}, err
	}
	best, ok := s.Best()
	if !ok {
		return brainfile.File{}, fmt.Errorf("checkpoint %s holds no evaluated brain", path)
	}
	return best, nil
}
