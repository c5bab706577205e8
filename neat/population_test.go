package neat

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// weightFitness rewards large total absolute weight.
func weightFitness(_ context.Context, genomes map[int]*Genome) error {
	for _, g := range genomes {
		g.Fitness = 0
		for _, c := range g.Connections {
			g.Fitness += math.Abs(c.Weight)
		}
	}
	return nil
}

func newTestPopulation(t *testing.T) *Population {
	t.Helper()
	cfg := loadTestConfig(t)
	cfg.Neat.NoFitnessTermination = true
	p, err := NewPopulation(cfg)
	require.NoError(t, err)
	return p
}

func TestNewPopulation(t *testing.T) {
	p := newTestPopulation(t)
	assert.Len(t, p.Population, 30)
	assert.Equal(t, 0, p.Generation)
	assert.Equal(t, 31, p.Reproduction.NextGenomeKey)
	for key, g := range p.Population {
		assert.Equal(t, key, g.Key)
		assert.Len(t, g.Connections, 5)
	}
}

func TestRunGenerationBreedsNextGeneration(t *testing.T) {
	p := newTestPopulation(t)
	for i := 0; i < 3; i++ {
		winner, err := p.RunGeneration(context.Background(), weightFitness)
		require.NoError(t, err)
		assert.Nil(t, winner)
	}
	assert.Equal(t, 3, p.Generation)
	assert.Len(t, p.Population, 30)
	assert.NotEmpty(t, p.SpeciesSet.Species)
	require.NotNil(t, p.BestGenome)
	assert.Greater(t, p.BestGenome.Fitness, 0.0)
}

func TestRunGenerationReturnsWinner(t *testing.T) {
	cfg := loadTestConfig(t)
	p, err := NewPopulation(cfg)
	require.NoError(t, err)

	winner, err := p.RunGeneration(context.Background(), func(_ context.Context, genomes map[int]*Genome) error {
		for _, g := range genomes {
			g.Fitness = float64(g.Key)
		}
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, 30, winner.Key)
	assert.Equal(t, 1, p.Generation)
}

func TestRunGenerationFitnessCriterion(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Neat.FitnessCriterion = "mean"
	cfg.Neat.FitnessThreshold = 20
	p, err := NewPopulation(cfg)
	require.NoError(t, err)

	// Mean of 1..30 is 15.5.
	winner, err := p.RunGeneration(context.Background(), func(_ context.Context, genomes map[int]*Genome) error {
		for _, g := range genomes {
			g.Fitness = float64(g.Key)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Nil(t, winner)
}

func TestRunGenerationPropagatesErrors(t *testing.T) {
	p := newTestPopulation(t)
	boom := errors.New("boom")
	_, err := p.RunGeneration(context.Background(), func(context.Context, map[int]*Genome) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, p.Generation, "a failed evaluation does not count as a generation")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.RunGeneration(ctx, weightFitness)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, p.Generation)

	_, err = p.RunGeneration(context.Background(), weightFitness)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Generation)
}

type genomeSnapshot struct {
	Nodes       map[int]NodeGene
	Connections map[ConnectionKey]ConnectionGene
	Fitness     float64
}

func snapshotPopulation(p *Population) map[int]genomeSnapshot {
	out := make(map[int]genomeSnapshot, len(p.Population))
	for key, g := range p.Population {
		s := genomeSnapshot{
			Nodes:       make(map[int]NodeGene, len(g.Nodes)),
			Connections: make(map[ConnectionKey]ConnectionGene, len(g.Connections)),
			Fitness:     g.Fitness,
		}
		for k, n := range g.Nodes {
			s.Nodes[k] = *n
		}
		for k, c := range g.Connections {
			s.Connections[k] = *c
		}
		out[key] = s
	}
	return out
}

func TestPopulationIsReproducibleForSeed(t *testing.T) {
	run := func() (map[int]genomeSnapshot, map[int]int) {
		cfg := loadTestConfig(t)
		cfg.Seed(42)
		cfg.Neat.NoFitnessTermination = true
		p, err := NewPopulation(cfg)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			_, err := p.RunGeneration(context.Background(), weightFitness)
			require.NoError(t, err)
		}
		return snapshotPopulation(p), p.SpeciesSet.GenomeToSpecies
	}

	wantGenomes, wantSpecies := run()
	for i := 0; i < 5; i++ {
		genomes, species := run()
		require.Equal(t, wantGenomes, genomes, "run %d", i)
		require.Equal(t, wantSpecies, species, "run %d", i)
	}
}

func TestComputeSpawnAmounts(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tests := []struct {
		name     string
		adjusted []float64
		previous []int
	}{
		{"uneven", []float64{1, 0.5, 0}, []int{10, 10, 10}},
		{"all zero", []float64{0, 0}, []int{20, 10}},
		{"one species", []float64{0.3}, []int{5}},
		{"growing", []float64{0.9, 0.1, 0.1, 0.1}, []int{2, 2, 2, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amounts := computeSpawnAmounts(tt.adjusted, tt.previous, 30, 2, rng)
			sum := 0
			for _, a := range amounts {
				assert.GreaterOrEqual(t, a, 2)
				sum += a
			}
			assert.Equal(t, 30, sum)
		})
	}
}

func TestStagnationRemovesIdleSpecies(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Stagnation.MaxStagnation = 2
	cfg.Stagnation.SpeciesElitism = 1
	stagnation, err := NewStagnation(&cfg.Stagnation, nil)
	require.NoError(t, err)

	ss := NewSpeciesSet(&cfg.SpeciesSet)
	for sid, fitness := range map[int]float64{1: 1, 2: 5} {
		s := NewSpecies(sid, 0)
		g := NewGenome(sid, &cfg.Genome)
		g.Fitness = fitness
		s.Update(g, map[int]*Genome{sid: g})
		ss.Species[sid] = s
	}

	for gen := 0; gen < 2; gen++ {
		for _, info := range stagnation.Update(ss, gen) {
			assert.False(t, info.IsStagnant)
		}
	}
	infos := stagnation.Update(ss, 3)
	require.Len(t, infos, 2)
	assert.Equal(t, 1, infos[0].SpeciesID)
	assert.True(t, infos[0].IsStagnant)
	assert.Equal(t, 2, infos[1].SpeciesID)
	assert.False(t, infos[1].IsStagnant, "the fittest species is protected")
}

func TestSpeciate(t *testing.T) {
	cfg := loadTestConfig(t)
	pop := map[int]*Genome{}
	for i := 1; i <= 4; i++ {
		pop[i] = newTestGenome(t, cfg, i)
	}
	// Genome 4 is far away from everything else.
	for _, c := range pop[4].Connections {
		c.Weight += 100
	}

	ss := NewSpeciesSet(&cfg.SpeciesSet)
	ss.Speciate(cfg, pop, 1)

	require.Len(t, ss.GenomeToSpecies, 4)
	s1, _ := ss.GetSpeciesID(1)
	s4, _ := ss.GetSpeciesID(4)
	assert.NotEqual(t, s1, s4)

	sp, ok := ss.GetSpecies(4)
	require.True(t, ok)
	assert.Len(t, sp.Members, 1)

	// Species survive into the next pass through their representatives.
	ss.Speciate(cfg, pop, 2)
	again, _ := ss.GetSpeciesID(4)
	assert.Equal(t, s4, again)
}

func TestCheckpointRoundTrip(t *testing.T) {
	p := newTestPopulation(t)
	for i := 0; i < 2; i++ {
		_, err := p.RunGeneration(context.Background(), weightFitness)
		require.NoError(t, err)
	}
	p.Config.Genome.GetNewNodeKey()

	path := filepath.Join(t.TempDir(), "population.gz")
	require.NoError(t, p.SaveCheckpoint(path))

	cfg := loadTestConfig(t)
	restored, err := LoadCheckpoint(path, cfg)
	require.NoError(t, err)

	assert.Equal(t, p.Generation, restored.Generation)
	assert.Equal(t, p.Reproduction.NextGenomeKey, restored.Reproduction.NextGenomeKey)
	assert.Equal(t, p.Config.Genome.NodeKeyIndex, cfg.Genome.NodeKeyIndex)
	assert.Equal(t, p.SpeciesSet.Indexer, restored.SpeciesSet.Indexer)
	require.Len(t, restored.Population, len(p.Population))
	for key, g := range p.Population {
		r := restored.Population[key]
		require.NotNil(t, r)
		assert.Equal(t, g.Nodes, r.Nodes)
		assert.Equal(t, g.Connections, r.Connections)
		assert.Same(t, &cfg.Genome, r.Config)
	}
	assert.Equal(t, len(p.SpeciesSet.Species), len(restored.SpeciesSet.Species))
	require.NotNil(t, restored.BestGenome)
	assert.Equal(t, p.BestGenome.Fitness, restored.BestGenome.Fitness)

	_, err = restored.RunGeneration(context.Background(), weightFitness)
	require.NoError(t, err)
	assert.Equal(t, 3, restored.Generation)
}

func TestLoadCheckpointMissingFile(t *testing.T) {
	_, err := LoadCheckpoint(filepath.Join(t.TempDir(), "nope.gz"), loadTestConfig(t))
	assert.Error(t, err)
}
