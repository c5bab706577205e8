package neat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrExtinct is returned when every species died out and reset_on_extinction is off.
var ErrExtinct = errors.New("population extinct")

// FitnessFunc evaluates a generation and sets the Fitness field of every genome.
type FitnessFunc func(ctx context.Context, genomes map[int]*Genome) error

// Population is the state of a NEAT run.
type Population struct {
	Config       *Config
	Population   map[int]*Genome
	SpeciesSet   *SpeciesSet
	Reproduction *Reproduction
	Stagnation   *Stagnation
	Generation   int
	BestGenome   *Genome // Fittest genome seen in any generation
}

// NewPopulation creates the first generation described by config.
func NewPopulation(config *Config) (*Population, error) {
	stagnation, err := NewStagnation(&config.Stagnation, config.log())
	if err != nil {
		return nil, fmt.Errorf("failed to create stagnation manager: %w", err)
	}
	reproduction := NewReproduction(&config.Reproduction, stagnation)
	return &Population{
		Config:       config,
		Population:   reproduction.CreateNewPopulation(&config.Genome, config.Neat.PopSize),
		SpeciesSet:   NewSpeciesSet(&config.SpeciesSet),
		Reproduction: reproduction,
		Stagnation:   stagnation,
	}, nil
}

// RunGeneration evaluates the current generation, then speciates and breeds
// the next one. It returns the fittest genome once fitness_criterion over the
// population reaches fitness_threshold, and nil otherwise.
func (p *Population) RunGeneration(ctx context.Context, fitness FitnessFunc) (*Genome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	generation := p.Generation + 1
	start := time.Now()
	logger := p.Config.log().With("generation", generation)

	// A generation only counts once its evaluation succeeded.
	if err := fitness(ctx, p.Population); err != nil {
		return nil, fmt.Errorf("fitness evaluation failed in generation %d: %w", generation, err)
	}
	p.Generation = generation

	best := p.findBestGenome()
	if best != nil && (p.BestGenome == nil || best.Fitness > p.BestGenome.Fitness) {
		p.BestGenome = best.copy()
		logger.Debug("new best genome", "genome", best.Key, "fitness", best.Fitness)
	}

	if !p.Config.Neat.NoFitnessTermination && best != nil {
		criterion := StatFunctions[strings.ToLower(p.Config.Neat.FitnessCriterion)]
		if criterion(p.fitnesses()) >= p.Config.Neat.FitnessThreshold {
			logger.Info("fitness threshold reached", "genome", best.Key, "fitness", best.Fitness)
			return best, nil
		}
	}

	p.SpeciesSet.Speciate(p.Config, p.Population, p.Generation)
	next := p.Reproduction.Reproduce(p.Config, p.SpeciesSet, p.Config.Neat.PopSize, p.Generation)

	if len(next) == 0 {
		if !p.Config.Neat.ResetOnExtinction {
			return nil, fmt.Errorf("generation %d: %w", p.Generation, ErrExtinct)
		}
		logger.Warn("all species extinct, resetting population")
		next = p.Reproduction.CreateNewPopulation(&p.Config.Genome, p.Config.Neat.PopSize)
		p.SpeciesSet = NewSpeciesSet(&p.Config.SpeciesSet)
	}
	p.Population = next

	logger.Debug("generation finished",
		"species", len(p.SpeciesSet.Species),
		"population", len(p.Population),
		"elapsed", time.Since(start))
	return nil, nil
}

func (p *Population) fitnesses() []float64 {
	out := make([]float64, 0, len(p.Population))
	for _, key := range sortedKeys(p.Population) {
		out = append(out, p.Population[key].Fitness)
	}
	return out
}

// findBestGenome returns the fittest genome of the current generation,
// lowest key first on ties.
func (p *Population) findBestGenome() *Genome {
	var best *Genome
	for _, key := range sortedKeys(p.Population) {
		g := p.Population[key]
		if best == nil || g.Fitness > best.Fitness {
			best = g
		}
	}
	return best
}

// copy returns a deep copy sharing the config.
func (g *Genome) copy() *Genome {
	c := NewGenome(g.Key, g.Config)
	c.Fitness = g.Fitness
	for k, n := range g.Nodes {
		c.Nodes[k] = n.Copy()
	}
	for k, cg := range g.Connections {
		c.Connections[k] = cg.Copy()
	}
	return c
}
