package neat

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
)

// savedGenome is a genome without its config pointer.
type savedGenome struct {
	Key         int
	Nodes       map[int]*NodeGene
	Connections map[ConnectionKey]*ConnectionGene
	Fitness     float64
}

type savedSpecies struct {
	Key             int
	Created         int
	LastImproved    int
	Representative  savedGenome
	Fitness         float64
	AdjustedFitness float64
	FitnessHistory  []float64
}

// checkpoint holds the evolving state of a population. The config itself is
// not stored; it is supplied again on load.
type checkpoint struct {
	Generation     int
	Genomes        []savedGenome
	Species        []savedSpecies
	SpeciesIndexer int
	NextGenomeKey  int
	NodeKeyIndex   int
	Ancestors      map[int][]int
	Best           *savedGenome
}

func saveGenome(g *Genome) savedGenome {
	return savedGenome{Key: g.Key, Nodes: g.Nodes, Connections: g.Connections, Fitness: g.Fitness}
}

func (s savedGenome) restore(config *GenomeConfig) *Genome {
	g := NewGenome(s.Key, config)
	g.Fitness = s.Fitness
	if s.Nodes != nil {
		g.Nodes = s.Nodes
	}
	if s.Connections != nil {
		g.Connections = s.Connections
	}
	return g
}

// SaveCheckpoint writes the population state to a gzip-compressed gob file.
func (p *Population) SaveCheckpoint(filePath string) error {
	cp := checkpoint{
		Generation:     p.Generation,
		SpeciesIndexer: p.SpeciesSet.Indexer,
		NextGenomeKey:  p.Reproduction.NextGenomeKey,
		NodeKeyIndex:   p.Config.Genome.NodeKeyIndex,
		Ancestors:      p.Reproduction.Ancestors,
	}
	for _, key := range sortedKeys(p.Population) {
		cp.Genomes = append(cp.Genomes, saveGenome(p.Population[key]))
	}
	for _, sid := range sortedKeys(p.SpeciesSet.Species) {
		s := p.SpeciesSet.Species[sid]
		if s.Representative == nil {
			continue
		}
		cp.Species = append(cp.Species, savedSpecies{
			Key:             s.Key,
			Created:         s.Created,
			LastImproved:    s.LastImproved,
			Representative:  saveGenome(s.Representative),
			Fitness:         s.Fitness,
			AdjustedFitness: s.AdjustedFitness,
			FitnessHistory:  s.FitnessHistory,
		})
	}
	if p.BestGenome != nil {
		best := saveGenome(p.BestGenome)
		cp.Best = &best
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file '%s': %w", filePath, err)
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	if err := gob.NewEncoder(gz).Encode(cp); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode population data: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to flush checkpoint '%s': %w", filePath, err)
	}
	p.Config.log().Debug("checkpoint saved", "path", filePath, "generation", p.Generation)
	return nil
}

// LoadCheckpoint restores a population saved by SaveCheckpoint. config must
// be loaded from the same INI file the run was started with.
func LoadCheckpoint(filePath string, config *Config) (*Population, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file '%s': %w", filePath, err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader for checkpoint: %w", err)
	}
	defer gz.Close()

	var cp checkpoint
	if err := gob.NewDecoder(gz).Decode(&cp); err != nil {
		return nil, fmt.Errorf("failed to decode population data from checkpoint: %w", err)
	}

	stagnation, err := NewStagnation(&config.Stagnation, config.log())
	if err != nil {
		return nil, fmt.Errorf("failed to re-initialize stagnation from loaded config: %w", err)
	}
	reproduction := NewReproduction(&config.Reproduction, stagnation)
	reproduction.NextGenomeKey = cp.NextGenomeKey
	if cp.Ancestors != nil {
		reproduction.Ancestors = cp.Ancestors
	}
	config.Genome.NodeKeyIndex = max(config.Genome.NodeKeyIndex, cp.NodeKeyIndex)

	population := make(map[int]*Genome, len(cp.Genomes))
	for _, sg := range cp.Genomes {
		population[sg.Key] = sg.restore(&config.Genome)
	}

	speciesSet := NewSpeciesSet(&config.SpeciesSet)
	speciesSet.Indexer = cp.SpeciesIndexer
	for _, ss := range cp.Species {
		s := NewSpecies(ss.Key, ss.Created)
		s.LastImproved = ss.LastImproved
		s.Representative = ss.Representative.restore(&config.Genome)
		s.Fitness = ss.Fitness
		s.AdjustedFitness = ss.AdjustedFitness
		if ss.FitnessHistory != nil {
			s.FitnessHistory = ss.FitnessHistory
		}
		speciesSet.Species[s.Key] = s
	}

	p := &Population{
		Config:       config,
		Population:   population,
		SpeciesSet:   speciesSet,
		Reproduction: reproduction,
		Stagnation:   stagnation,
		Generation:   cp.Generation,
	}
	if cp.Best != nil {
		p.BestGenome = cp.Best.restore(&config.Genome)
	}
	config.log().Debug("checkpoint loaded", "path", filePath, "generation", p.Generation)
	return p, nil
}
