package trainer

import (
	"compress/gzip"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"

	"github.com/baldhumanity/flappyfeller/brainfile"
	"github.com/baldhumanity/flappyfeller/flappy"
	"github.com/baldhumanity/flappyfeller/mlp"
)

// CloneStrategy is the classic scheme: the best few fellers are cloned and
// mutated in proportion to their squared score, and the rest of the
// population is filled with fresh random brains.
type CloneStrategy struct {
	cfg        Config
	rng        *rand.Rand
	population []*mlp.Network
	generation int

	best           *mlp.Network
	bestScore      float64
	bestGeneration int
}

// NewCloneStrategy creates a random population of cfg.PopulationSize brains.
func NewCloneStrategy(cfg Config, rng *rand.Rand) *CloneStrategy {
	s := &CloneStrategy{cfg: cfg, rng: rng}
	s.population = make([]*mlp.Network, cfg.PopulationSize)
	for i := range s.population {
		s.population[i] = s.fresh()
	}
	return s
}

func (s *CloneStrategy) fresh() *mlp.Network {
	return mlp.New(flappy.NumInputs, s.cfg.Hidden, flappy.NumOutputs, s.rng)
}

func (s *CloneStrategy) Name() string    { return StrategyClone }
func (s *CloneStrategy) Generation() int { return s.generation }

// Population returns the brains of the current generation.
func (s *CloneStrategy) Population() []*mlp.Network {
	return s.population
}

// Step evaluates the current population and breeds the next one.
func (s *CloneStrategy) Step(ctx context.Context, eval EvalFunc) (Result, error) {
	brains := make([]flappy.Brain, len(s.population))
	for i, n := range s.population {
		brains[i] = n
	}
	scores, err := eval(ctx, brains)
	if err != nil {
		return Result{}, err
	}
	if len(scores) != len(s.population) {
		return Result{}, fmt.Errorf("got %d scores for %d brains", len(scores), len(s.population))
	}
	s.generation++

	for i, sc := range scores {
		if s.best == nil || sc > s.bestScore {
			s.best = s.population[i].Clone()
			s.bestScore = sc
			s.bestGeneration = s.generation
		}
	}
	s.population = s.breed(scores)
	return Result{Scores: scores, Species: 1}, nil
}

type scored struct {
	weight float64
	net    *mlp.Network
}

// breed builds the next generation from the scores of the current one.
func (s *CloneStrategy) breed(scores []float64) []*mlp.Network {
	size := s.cfg.PopulationSize
	ranked := make([]scored, len(scores))
	for i, sc := range scores {
		ranked[i] = scored{weight: sc * sc, net: s.population[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].weight > ranked[j].weight })

	keep := min(int(math.Ceil(float64(size)*s.cfg.KeepFraction)), len(ranked))
	ranked = ranked[:keep]
	sum := 0.0
	for _, r := range ranked {
		sum += r.weight
	}
	for i := range ranked {
		if sum > 0 {
			ranked[i].weight /= sum
		} else {
			ranked[i].weight = 1 / float64(len(ranked))
		}
	}

	next := make([]*mlp.Network, 0, size)
	offspring := min(int(math.Ceil(float64(size)*s.cfg.OffspringFraction)), size)
	for len(ranked) > 0 && len(next) < offspring {
		child := s.pick(ranked).Clone()
		child.Mutate(s.rng, s.cfg.MutationRate)
		next = append(next, child)
	}
	for len(next) < size {
		next = append(next, s.fresh())
	}
	return next
}

// pick spins the roulette over normalized weights.
func (s *CloneStrategy) pick(ranked []scored) *mlp.Network {
	r := s.rng.Float64()
	for _, c := range ranked {
		r -= c.weight
		if r <= 0 {
			return c.net
		}
	}
	return ranked[len(ranked)-1].net
}

// Best returns the highest scoring brain evaluated so far.
func (s *CloneStrategy) Best() (brainfile.File, bool) {
	if s.best == nil {
		return brainfile.File{}, false
	}
	return brainfile.FromNetwork(s.best, s.bestScore, s.bestGeneration), true
}

type cloneCheckpoint struct {
	Generation     int
	Population     []*mlp.Network
	Best           *mlp.Network
	BestScore      float64
	BestGeneration int
}

// Checkpoint writes the population to a gzip-compressed gob file.
func (s *CloneStrategy) Checkpoint(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file '%s': %w", path, err)
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	cp := cloneCheckpoint{
		Generation:     s.generation,
		Population:     s.population,
		Best:           s.best,
		BestScore:      s.bestScore,
		BestGeneration: s.bestGeneration,
	}
	if err := gob.NewEncoder(gz).Encode(cp); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode population: %w", err)
	}
	return gz.Close()
}

// ResumeCloneStrategy continues from a checkpoint written by Checkpoint.
func ResumeCloneStrategy(path string, cfg Config, rng *rand.Rand) (*CloneStrategy, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file '%s': %w", path, err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader for checkpoint: %w", err)
	}
	defer gz.Close()

	var cp cloneCheckpoint
	if err := gob.NewDecoder(gz).Decode(&cp); err != nil {
		return nil, fmt.Errorf("failed to decode population from checkpoint: %w", err)
	}
	for i, n := range cp.Population {
		if err := n.Validate(); err != nil {
			return nil, fmt.Errorf("checkpoint brain %d: %w", i, err)
		}
	}
	if len(cp.Population) == 0 {
		return nil, fmt.Errorf("checkpoint %s holds no population", path)
	}

	s := &CloneStrategy{
		cfg:            cfg,
		rng:            rng,
		population:     cp.Population,
		generation:     cp.Generation,
		best:           cp.Best,
		bestScore:      cp.BestScore,
		bestGeneration: cp.BestGeneration,
	}
	s.cfg.PopulationSize = len(cp.Population)
	return s, nil
}
