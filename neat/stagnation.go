package neat

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
)

// Stagnation detects species whose fitness has stopped improving.
type Stagnation struct {
	Config             *StagnationConfig
	SpeciesFitnessFunc func([]float64) float64
	logger             *slog.Logger
}

// NewStagnation creates a stagnation tracker. A nil logger means slog.Default().
func NewStagnation(config *StagnationConfig, logger *slog.Logger) (*Stagnation, error) {
	fn, ok := StatFunctions[strings.ToLower(config.SpeciesFitnessFunc)]
	if !ok {
		return nil, fmt.Errorf("invalid species_fitness_func in config: %s", config.SpeciesFitnessFunc)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stagnation{Config: config, SpeciesFitnessFunc: fn, logger: logger}, nil
}

// StagnationInfo is the verdict for one species.
type StagnationInfo struct {
	SpeciesID  int
	Species    *Species
	IsStagnant bool
}

// Update records this generation's fitness of every species and reports
// which ones are stagnant, least fit first. A species is stagnant after
// max_stagnation generations without improvement, but the species_elitism
// fittest species are always spared and the number of surviving species
// never drops below species_elitism.
func (s *Stagnation) Update(speciesSet *SpeciesSet, generation int) []StagnationInfo {
	if len(speciesSet.Species) == 0 {
		return nil
	}

	all := make([]*Species, 0, len(speciesSet.Species))
	for _, sid := range sortedKeys(speciesSet.Species) {
		sp := speciesSet.Species[sid]
		previous := math.Inf(-1)
		if len(sp.FitnessHistory) > 0 {
			previous = MaxFloat(sp.FitnessHistory)
		}
		if fitnesses := sp.GetFitnesses(); len(fitnesses) > 0 {
			sp.Fitness = s.SpeciesFitnessFunc(fitnesses)
		} else {
			sp.Fitness = math.Inf(-1)
		}
		sp.FitnessHistory = append(sp.FitnessHistory, sp.Fitness)
		sp.AdjustedFitness = 0
		if sp.Fitness > previous {
			sp.LastImproved = generation
		}
		all = append(all, sp)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Fitness < all[j].Fitness })

	elitism := s.Config.SpeciesElitism
	nonStagnant := len(all)
	result := make([]StagnationInfo, len(all))
	for i, sp := range all {
		idle := generation - sp.LastImproved
		stagnant := false
		if nonStagnant > elitism {
			stagnant = idle >= s.Config.MaxStagnation
		}
		if len(all)-i <= elitism {
			if stagnant {
				s.logger.Debug("species spared by elitism", "species", sp.Key, "idle_generations", idle)
			}
			stagnant = false
		}
		if stagnant {
			nonStagnant--
		}
		result[i] = StagnationInfo{SpeciesID: sp.Key, Species: sp, IsStagnant: stagnant}
	}
	return result
}
