package neat

import (
	"math"
	"sort"
)

// Species is a group of genetically similar genomes.
type Species struct {
	Key             int
	Created         int // Generation the species appeared in
	LastImproved    int
	Representative  *Genome
	Members         map[int]*Genome
	Fitness         float64
	AdjustedFitness float64
	FitnessHistory  []float64
}

// NewSpecies creates an empty species.
func NewSpecies(key, generation int) *Species {
	return &Species{
		Key:            key,
		Created:        generation,
		LastImproved:   generation,
		Members:        make(map[int]*Genome),
		FitnessHistory: []float64{},
	}
}

// Update replaces the representative and the member set.
func (s *Species) Update(representative *Genome, members map[int]*Genome) {
	s.Representative = representative
	s.Members = members
}

// GetFitnesses returns the fitness of every member, ordered by genome key.
func (s *Species) GetFitnesses() []float64 {
	keys := make([]int, 0, len(s.Members))
	for k := range s.Members {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	fitnesses := make([]float64, 0, len(keys))
	for _, k := range keys {
		fitnesses = append(fitnesses, s.Members[k].Fitness)
	}
	return fitnesses
}

// genomePair is an unordered pair of genome keys, lower key first.
type genomePair struct{ a, b int }

// GenomeDistanceCache memoizes distances between genomes within one speciation pass.
type GenomeDistanceCache struct {
	distances map[genomePair]float64
	Hits      int
	Misses    int
}

// NewGenomeDistanceCache creates an empty cache.
func NewGenomeDistanceCache() *GenomeDistanceCache {
	return &GenomeDistanceCache{distances: make(map[genomePair]float64)}
}

// Distance returns the cached distance between two genomes, computing it on a miss.
func (dc *GenomeDistanceCache) Distance(g1, g2 *Genome) float64 {
	key := genomePair{g1.Key, g2.Key}
	if key.a > key.b {
		key.a, key.b = key.b, key.a
	}
	if d, ok := dc.distances[key]; ok {
		dc.Hits++
		return d
	}
	dc.Misses++
	d := g1.Distance(g2)
	dc.distances[key] = d
	return d
}

// Values returns every distance computed so far.
func (dc *GenomeDistanceCache) Values() []float64 {
	out := make([]float64, 0, len(dc.distances))
	for _, d := range dc.distances {
		out = append(out, d)
	}
	return out
}

// SpeciesSet tracks the species of a population across generations.
type SpeciesSet struct {
	Species         map[int]*Species
	GenomeToSpecies map[int]int
	Indexer         int // Next species key
	Config          *SpeciesSetConfig
}

// NewSpeciesSet creates a species set whose keys start at 1.
func NewSpeciesSet(config *SpeciesSetConfig) *SpeciesSet {
	return &SpeciesSet{
		Species:         make(map[int]*Species),
		GenomeToSpecies: make(map[int]int),
		Indexer:         1,
		Config:          config,
	}
}

// Speciate partitions population into species. Each surviving species picks
// the genome closest to its old representative as the new one; the rest join
// the nearest representative within the compatibility threshold or found a
// new species.
func (ss *SpeciesSet) Speciate(config *Config, population map[int]*Genome, generation int) {
	logger := config.log()
	if len(population) == 0 {
		ss.Species = make(map[int]*Species)
		ss.GenomeToSpecies = make(map[int]int)
		return
	}

	threshold := ss.Config.CompatibilityThreshold
	cache := NewGenomeDistanceCache()

	unspeciated := make(map[int]*Genome, len(population))
	for k, g := range population {
		unspeciated[k] = g
	}
	reps := make(map[int]*Genome)
	members := make(map[int][]int)

	for _, sid := range sortedKeys(ss.Species) {
		if len(unspeciated) == 0 {
			break
		}
		s := ss.Species[sid]
		if s.Representative == nil {
			continue
		}
		var best *Genome
		bestDist := math.Inf(1)
		for _, gid := range sortedKeys(unspeciated) {
			g := unspeciated[gid]
			if d := cache.Distance(s.Representative, g); d < bestDist {
				best, bestDist = g, d
			}
		}
		reps[sid] = best
		members[sid] = []int{best.Key}
		delete(unspeciated, best.Key)
	}

	for _, gid := range sortedKeys(unspeciated) {
		g := unspeciated[gid]
		bestSpecies := -1
		minDist := math.Inf(1)
		for _, sid := range sortedKeys(reps) {
			if d := cache.Distance(reps[sid], g); d < threshold && d < minDist {
				minDist = d
				bestSpecies = sid
			}
		}
		if bestSpecies != -1 {
			members[bestSpecies] = append(members[bestSpecies], gid)
			continue
		}
		sid := ss.Indexer
		ss.Indexer++
		reps[sid] = g
		members[sid] = []int{gid}
	}

	species := make(map[int]*Species, len(reps))
	genomeToSpecies := make(map[int]int, len(population))
	for sid, rep := range reps {
		s, ok := ss.Species[sid]
		if !ok {
			s = NewSpecies(sid, generation)
			logger.Debug("species created", "species", sid, "representative", rep.Key)
		}
		memberMap := make(map[int]*Genome, len(members[sid]))
		for _, gid := range members[sid] {
			memberMap[gid] = population[gid]
			genomeToSpecies[gid] = sid
		}
		s.Update(rep, memberMap)
		species[sid] = s
	}
	for sid := range ss.Species {
		if _, ok := species[sid]; !ok {
			logger.Debug("species died out", "species", sid)
		}
	}

	ss.Species = species
	ss.GenomeToSpecies = genomeToSpecies

	if distances := cache.Values(); len(distances) > 0 {
		logger.Debug("genetic distance",
			"mean", Mean(distances), "stdev", Stdev(distances),
			"cache_hits", cache.Hits, "cache_misses", cache.Misses)
	}
}

// GetSpeciesID returns the species key of a genome.
func (ss *SpeciesSet) GetSpeciesID(genomeID int) (int, bool) {
	sid, ok := ss.GenomeToSpecies[genomeID]
	return sid, ok
}

// GetSpecies returns the species a genome belongs to.
func (ss *SpeciesSet) GetSpecies(genomeID int) (*Species, bool) {
	sid, ok := ss.GenomeToSpecies[genomeID]
	if !ok {
		return nil, false
	}
	s, ok := ss.Species[sid]
	return s, ok
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
