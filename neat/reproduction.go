package neat

import (
	"math"
	"math/rand"
	"sort"
)

// Reproduction creates genomes, either from scratch or by crossover and
// mutation of the previous generation.
type Reproduction struct {
	Config        *ReproductionConfig
	NextGenomeKey int
	Ancestors     map[int][]int // genome key -> parent keys
	Stagnation    *Stagnation
}

// NewReproduction creates a reproduction manager whose genome keys start at 1.
func NewReproduction(config *ReproductionConfig, stagnation *Stagnation) *Reproduction {
	return &Reproduction{
		Config:        config,
		NextGenomeKey: 1,
		Ancestors:     make(map[int][]int),
		Stagnation:    stagnation,
	}
}

func (r *Reproduction) nextKey() int {
	key := r.NextGenomeKey
	r.NextGenomeKey++
	return key
}

// CreateNewPopulation builds popSize fresh genomes.
func (r *Reproduction) CreateNewPopulation(genomeConfig *GenomeConfig, popSize int) map[int]*Genome {
	genomes := make(map[int]*Genome, popSize)
	for i := 0; i < popSize; i++ {
		key := r.nextKey()
		g := NewGenome(key, genomeConfig)
		g.ConfigureNew()
		genomes[key] = g
		r.Ancestors[key] = []int{}
	}
	return genomes
}

// Reproduce drops stagnant species, shares fitness within the rest and
// breeds the next generation. It returns an empty map when every species
// went extinct.
func (r *Reproduction) Reproduce(config *Config, speciesSet *SpeciesSet, popSize, generation int) map[int]*Genome {
	logger := config.log()
	rng := config.Genome.Rand()

	var all []float64
	var remaining []*Species
	for _, info := range r.Stagnation.Update(speciesSet, generation) {
		if info.IsStagnant {
			logger.Info("species removed for stagnation", "species", info.SpeciesID, "generation", generation)
			continue
		}
		fitnesses := info.Species.GetFitnesses()
		if len(fitnesses) == 0 {
			continue
		}
		all = append(all, fitnesses...)
		remaining = append(remaining, info.Species)
	}
	// Keep the old order stable: species keys ascending.
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].Key < remaining[j].Key })

	speciesSet.Species = make(map[int]*Species, len(remaining))
	if len(remaining) == 0 {
		return map[int]*Genome{}
	}

	minFitness := MinFloat(all)
	fitnessRange := math.Max(1.0, MaxFloat(all)-minFitness)
	adjusted := make([]float64, len(remaining))
	previousSizes := make([]int, len(remaining))
	for i, sp := range remaining {
		sp.AdjustedFitness = (Mean(sp.GetFitnesses()) - minFitness) / fitnessRange
		adjusted[i] = sp.AdjustedFitness
		previousSizes[i] = len(sp.Members)
	}
	logger.Debug("adjusted fitness", "mean", Mean(adjusted))

	minSize := max(r.Config.MinSpeciesSize, r.Config.Elitism)
	spawnAmounts := computeSpawnAmounts(adjusted, previousSizes, popSize, minSize, rng)

	population := make(map[int]*Genome, popSize)
	ancestors := make(map[int][]int, popSize)
	for i, sp := range remaining {
		spawn := max(spawnAmounts[i], r.Config.Elitism)

		old := make([]*Genome, 0, len(sp.Members))
		for _, gid := range sortedKeys(sp.Members) {
			old = append(old, sp.Members[gid])
		}
		sort.SliceStable(old, func(a, b int) bool { return old[a].Fitness > old[b].Fitness })
		speciesSet.Species[sp.Key] = sp

		for j := 0; j < r.Config.Elitism && j < len(old); j++ {
			population[old[j].Key] = old[j]
			ancestors[old[j].Key] = []int{old[j].Key}
			spawn--
		}
		if spawn <= 0 {
			continue
		}

		cutoff := int(math.Ceil(r.Config.SurvivalThreshold * float64(len(old))))
		cutoff = min(max(cutoff, 2), len(old))
		parents := old[:cutoff]

		for ; spawn > 0; spawn-- {
			p1 := parents[rng.Intn(len(parents))]
			p2 := parents[rng.Intn(len(parents))]
			key := r.nextKey()
			child := NewGenome(key, &config.Genome)
			child.ConfigureCrossover(p1, p2)
			child.Mutate()
			population[key] = child
			ancestors[key] = []int{p1.Key, p2.Key}
		}
	}
	r.Ancestors = ancestors

	if len(population) != popSize {
		logger.Debug("population size differs from target", "size", len(population), "target", popSize)
	}
	return population
}

// computeSpawnAmounts decides how many offspring each species gets. Sizes
// move halfway from the previous size towards the fitness-proportional
// share, then are normalised so that they add up to popSize whenever the
// minimum size allows it.
func computeSpawnAmounts(adjusted []float64, previousSizes []int, popSize, minSize int, rng *rand.Rand) []int {
	sum := Sum(adjusted)
	amounts := make([]int, len(adjusted))
	total := 0
	for i, af := range adjusted {
		target := float64(minSize)
		if sum > 0 {
			target = math.Max(target, af/sum*float64(popSize))
		}
		prev := previousSizes[i]
		d := (target - float64(prev)) * 0.5
		c := int(math.Round(d))
		spawn := prev
		switch {
		case c != 0:
			spawn += c
		case d > 0:
			spawn++
		case d < 0:
			spawn--
		}
		amounts[i] = spawn
		total += spawn
	}
	if total <= 0 {
		for i := range amounts {
			amounts[i] = minSize
		}
		return amounts
	}

	norm := float64(popSize) / float64(total)
	total = 0
	for i, a := range amounts {
		amounts[i] = max(minSize, int(math.Round(float64(a)*norm)))
		total += amounts[i]
	}

	diff := popSize - total
	order := rng.Perm(len(amounts))
	for changed := true; diff != 0 && changed; {
		changed = false
		for _, i := range order {
			if diff == 0 {
				break
			}
			if diff > 0 {
				amounts[i]++
				diff--
				changed = true
			} else if amounts[i] > minSize {
				amounts[i]--
				diff++
				changed = true
			}
		}
	}
	return amounts
}
