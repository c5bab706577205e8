package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/baldhumanity/flappyfeller/brainfile"
	"github.com/baldhumanity/flappyfeller/flappy"
	"github.com/baldhumanity/flappyfeller/neat"
	"github.com/baldhumanity/flappyfeller/neat/nn"
)

// NEATStrategy evolves brains with the NEAT engine. A genome's fitness is
// its score; a genome reaching fitness_threshold ends training.
type NEATStrategy struct {
	config *neat.Config
	pop    *neat.Population
	logger *slog.Logger
}

func newNEATStrategy(config *neat.Config, pop *neat.Population) *NEATStrategy {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &NEATStrategy{config: config, pop: pop, logger: logger}
}

// NewNEATStrategy starts a fresh NEAT population.
func NewNEATStrategy(config *neat.Config) (*NEATStrategy, error) {
	if err := checkShape(config); err != nil {
		return nil, err
	}
	pop, err := neat.NewPopulation(config)
	if err != nil {
		return nil, err
	}
	return newNEATStrategy(config, pop), nil
}

// ResumeNEATStrategy continues from a population checkpoint.
func ResumeNEATStrategy(path string, config *neat.Config) (*NEATStrategy, error) {
	if err := checkShape(config); err != nil {
		return nil, err
	}
	pop, err := neat.LoadCheckpoint(path, config)
	if err != nil {
		return nil, err
	}
	return newNEATStrategy(config, pop), nil
}

func checkShape(config *neat.Config) error {
	g := config.Genome
	if g.NumInputs != flappy.NumInputs || g.NumOutputs != flappy.NumOutputs {
		return fmt.Errorf("config error: fellers need num_inputs = %d and num_outputs = %d, got %d and %d",
			flappy.NumInputs, flappy.NumOutputs, g.NumInputs, g.NumOutputs)
	}
	if !g.FeedForward {
		return fmt.Errorf("config error: fellers need feed_forward = True")
	}
	return nil
}

func (s *NEATStrategy) Name() string    { return StrategyNEAT }
func (s *NEATStrategy) Generation() int { return s.pop.Generation }

// Population exposes the underlying NEAT population.
func (s *NEATStrategy) Population() *neat.Population {
	return s.pop
}

// Step runs one NEAT generation. Genomes whose phenotype cannot be built fly
// without a brain and so never flap.
func (s *NEATStrategy) Step(ctx context.Context, eval EvalFunc) (Result, error) {
	var scores []float64
	winner, err := s.pop.RunGeneration(ctx, func(ctx context.Context, genomes map[int]*neat.Genome) error {
		keys := make([]int, 0, len(genomes))
		for k := range genomes {
			keys = append(keys, k)
		}
		sort.Ints(keys)

		brains := make([]flappy.Brain, len(keys))
		for i, k := range keys {
			net, err := nn.CreateFeedForwardNetwork(genomes[k])
			if err != nil {
				s.logger.Debug("genome has no phenotype", "genome", k, "err", err)
				continue
			}
			brains[i] = net
		}

		var err error
		scores, err = eval(ctx, brains)
		if err != nil {
			return err
		}
		if len(scores) != len(keys) {
			return fmt.Errorf("got %d scores for %d genomes", len(scores), len(keys))
		}
		for i, k := range keys {
			genomes[k].Fitness = scores[i]
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return Result{
		Scores:  scores,
		Species: len(s.pop.SpeciesSet.Species),
		Solved:  winner != nil,
	}, nil
}

// Best returns the fittest genome seen so far.
func (s *NEATStrategy) Best() (brainfile.File, bool) {
	if s.pop.BestGenome == nil {
		return brainfile.File{}, false
	}
	return brainfile.FromGenome(s.pop.BestGenome, s.pop.Generation), true
}

// Checkpoint saves the population.
func (s *NEATStrategy) Checkpoint(path string) error {
	return s.pop.SaveCheckpoint(path)
}
