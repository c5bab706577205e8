package neat

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
)

// --------------------------- NodeGene ---------------------------

// NodeGene represents a hidden or output neuron. Input nodes have no gene.
type NodeGene struct {
	Key         int // >= 0; outputs are 0..NumOutputs-1
	Bias        float64
	Response    float64
	Activation  string
	Aggregation string
}

// NewNodeGene creates a NodeGene with attributes initialized according to the config.
func NewNodeGene(key int, config *GenomeConfig) *NodeGene {
	rng := config.Rand()
	return &NodeGene{
		Key:         key,
		Bias:        initFloat(rng, config.BiasInitMean, config.BiasInitStdev, config.BiasInitType, config.BiasMinValue, config.BiasMaxValue),
		Response:    initFloat(rng, config.ResponseInitMean, config.ResponseInitStdev, config.ResponseInitType, config.ResponseMinValue, config.ResponseMaxValue),
		Activation:  initChoice(rng, config.ActivationDefault, config.ActivationOptions),
		Aggregation: initChoice(rng, config.AggregationDefault, config.AggregationOptions),
	}
}

func (ng *NodeGene) String() string {
	return fmt.Sprintf("NodeGene(Key: %d, Bias: %.3f, Response: %.3f, Activation: %s, Aggregation: %s)",
		ng.Key, ng.Bias, ng.Response, ng.Activation, ng.Aggregation)
}

// Copy creates a deep copy of the NodeGene.
func (ng *NodeGene) Copy() *NodeGene {
	c := *ng
	return &c
}

// Mutate perturbs or replaces each attribute according to the config rates.
func (ng *NodeGene) Mutate(config *GenomeConfig) {
	rng := config.Rand()
	ng.Bias = mutateFloat(rng, ng.Bias, config.BiasMutateRate, config.BiasReplaceRate, config.BiasMutatePower,
		config.BiasInitMean, config.BiasInitStdev, config.BiasInitType, config.BiasMinValue, config.BiasMaxValue)
	ng.Response = mutateFloat(rng, ng.Response, config.ResponseMutateRate, config.ResponseReplaceRate, config.ResponseMutatePower,
		config.ResponseInitMean, config.ResponseInitStdev, config.ResponseInitType, config.ResponseMinValue, config.ResponseMaxValue)
	ng.Activation = mutateChoice(rng, ng.Activation, config.ActivationMutateRate, config.ActivationOptions)
	ng.Aggregation = mutateChoice(rng, ng.Aggregation, config.AggregationMutateRate, config.AggregationOptions)
}

// Distance is the attribute difference between two homologous nodes.
func (ng *NodeGene) Distance(other *NodeGene, config *GenomeConfig) float64 {
	d := math.Abs(ng.Bias-other.Bias) + math.Abs(ng.Response-other.Response)
	if ng.Activation != other.Activation {
		d += 1.0
	}
	if ng.Aggregation != other.Aggregation {
		d += 1.0
	}
	return d * config.CompatibilityWeightCoefficient
}

// Crossover inherits each attribute from either parent with equal chance.
// ng is the primary parent and provides the key.
func (ng *NodeGene) Crossover(other *NodeGene, rng *rand.Rand) *NodeGene {
	child := ng.Copy()
	if rng.Float64() < 0.5 {
		child.Bias = other.Bias
	}
	if rng.Float64() < 0.5 {
		child.Response = other.Response
	}
	if rng.Float64() < 0.5 {
		child.Activation = other.Activation
	}
	if rng.Float64() < 0.5 {
		child.Aggregation = other.Aggregation
	}
	return child
}

// --------------------------- ConnectionGene ---------------------------

// ConnectionKey identifies a connection gene by its endpoints. It doubles as
// the innovation marker: two genomes sharing a key share the gene.
type ConnectionKey struct {
	InNodeID  int
	OutNodeID int
}

// ConnectionGene is a weighted edge between two nodes.
type ConnectionGene struct {
	Key     ConnectionKey
	Weight  float64
	Enabled bool
}

// NewConnectionGene creates a ConnectionGene with attributes initialized according to the config.
func NewConnectionGene(key ConnectionKey, config *GenomeConfig) *ConnectionGene {
	rng := config.Rand()
	return &ConnectionGene{
		Key:     key,
		Weight:  initFloat(rng, config.WeightInitMean, config.WeightInitStdev, config.WeightInitType, config.WeightMinValue, config.WeightMaxValue),
		Enabled: parseBool(rng, config.EnabledDefault),
	}
}

func (cg *ConnectionGene) String() string {
	return fmt.Sprintf("ConnGene(Key: %d->%d, Weight: %.3f, Enabled: %t)",
		cg.Key.InNodeID, cg.Key.OutNodeID, cg.Weight, cg.Enabled)
}

// Copy creates a deep copy of the ConnectionGene.
func (cg *ConnectionGene) Copy() *ConnectionGene {
	c := *cg
	return &c
}

// Mutate perturbs the weight and may toggle the enabled flag.
func (cg *ConnectionGene) Mutate(config *GenomeConfig) {
	rng := config.Rand()
	cg.Weight = mutateFloat(rng, cg.Weight, config.WeightMutateRate, config.WeightReplaceRate, config.WeightMutatePower,
		config.WeightInitMean, config.WeightInitStdev, config.WeightInitType, config.WeightMinValue, config.WeightMaxValue)

	rate := config.EnabledMutateRate
	if cg.Enabled {
		rate += config.EnabledRateToFalseAdd
	} else {
		rate += config.EnabledRateToTrueAdd
	}
	if rate > 0 && rng.Float64() < rate {
		cg.Enabled = rng.Float64() < 0.5
	}
}

// Distance is the attribute difference between two homologous connections.
func (cg *ConnectionGene) Distance(other *ConnectionGene, config *GenomeConfig) float64 {
	d := math.Abs(cg.Weight - other.Weight)
	if cg.Enabled != other.Enabled {
		d += 1.0
	}
	return d * config.CompatibilityWeightCoefficient
}

// Crossover inherits each attribute from either parent with equal chance.
func (cg *ConnectionGene) Crossover(other *ConnectionGene, rng *rand.Rand) *ConnectionGene {
	child := cg.Copy()
	if rng.Float64() < 0.5 {
		child.Weight = other.Weight
	}
	if rng.Float64() < 0.5 {
		child.Enabled = other.Enabled
	}
	return child
}

// --------------------------- Attribute helpers ---------------------------

func initFloat(rng *rand.Rand, mean, stdev float64, initType string, minVal, maxVal float64) float64 {
	var v float64
	switch strings.ToLower(initType) {
	case "uniform":
		lo := math.Max(minVal, mean-2*stdev)
		hi := math.Min(maxVal, mean+2*stdev)
		if hi < lo {
			hi = lo
		}
		v = lo + rng.Float64()*(hi-lo)
	default: // gaussian / normal
		v = rng.NormFloat64()*stdev + mean
	}
	return clamp(v, minVal, maxVal)
}

func mutateFloat(rng *rand.Rand, value, mutateRate, replaceRate, power, mean, stdev float64, initType string, minVal, maxVal float64) float64 {
	r := rng.Float64()
	switch {
	case r < mutateRate:
		return clamp(value+rng.NormFloat64()*power, minVal, maxVal)
	case r < mutateRate+replaceRate:
		return initFloat(rng, mean, stdev, initType, minVal, maxVal)
	}
	return value
}

// parseBool understands true/false, yes/no, on/off, 1/0 and random.
func parseBool(rng *rand.Rand, s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true
	case "random", "none":
		return rng.Float64() < 0.5
	}
	return false
}

func initChoice(rng *rand.Rand, def string, options []string) string {
	if len(options) == 0 {
		return ""
	}
	switch strings.ToLower(def) {
	case "random", "none", "":
		return options[rng.Intn(len(options))]
	}
	for _, opt := range options {
		if opt == def {
			return def
		}
	}
	return options[rng.Intn(len(options))]
}

// mutateChoice switches to a different option with probability rate.
func mutateChoice(rng *rand.Rand, value string, rate float64, options []string) string {
	if len(options) < 2 || rate <= 0 || rng.Float64() >= rate {
		return value
	}
	others := make([]string, 0, len(options))
	for _, opt := range options {
		if opt != value {
			others = append(others, opt)
		}
	}
	if len(others) == 0 {
		return value
	}
	return others[rng.Intn(len(others))]
}
