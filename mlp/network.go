// Package mlp implements the fixed-topology brain: a single hidden layer
// perceptron with sigmoid activations whose weights evolve by mutation only.
package mlp

import (
	"fmt"
	"math"
	"math/rand"
)

// mutationStdev is the spread of the gaussian nudge applied to a mutated weight.
const mutationStdev = 0.1

// Network is a dense inputs -> hidden -> outputs network.
// Fields are exported so the network can be gob and YAML encoded.
type Network struct {
	Inputs        int         `yaml:"inputs"`
	Hidden        int         `yaml:"hidden"`
	Outputs       int         `yaml:"outputs"`
	HiddenWeights [][]float64 `yaml:"hidden_weights"` // [hidden][inputs]
	HiddenBias    []float64   `yaml:"hidden_bias"`
	OutputWeights [][]float64 `yaml:"output_weights"` // [outputs][hidden]
	OutputBias    []float64   `yaml:"output_bias"`
}

// New creates a network with weights and biases drawn uniformly from [-1, 1].
func New(inputs, hidden, outputs int, rng *rand.Rand) *Network {
	n := &Network{
		Inputs:        inputs,
		Hidden:        hidden,
		Outputs:       outputs,
		HiddenWeights: randomMatrix(hidden, inputs, rng),
		HiddenBias:    randomVector(hidden, rng),
		OutputWeights: randomMatrix(outputs, hidden, rng),
		OutputBias:    randomVector(outputs, rng),
	}
	return n
}

// Validate checks that the weight shapes agree with the declared layer sizes.
func (n *Network) Validate() error {
	if n.Inputs <= 0 || n.Hidden <= 0 || n.Outputs <= 0 {
		return fmt.Errorf("mlp: layer sizes must be positive (got %d-%d-%d)", n.Inputs, n.Hidden, n.Outputs)
	}
	if len(n.HiddenWeights) != n.Hidden || len(n.HiddenBias) != n.Hidden {
		return fmt.Errorf("mlp: hidden layer has %d weight rows and %d biases, want %d", len(n.HiddenWeights), len(n.HiddenBias), n.Hidden)
	}
	for i, row := range n.HiddenWeights {
		if len(row) != n.Inputs {
			return fmt.Errorf("mlp: hidden weight row %d has %d columns, want %d", i, len(row), n.Inputs)
		}
	}
	if len(n.OutputWeights) != n.Outputs || len(n.OutputBias) != n.Outputs {
		return fmt.Errorf("mlp: output layer has %d weight rows and %d biases, want %d", len(n.OutputWeights), len(n.OutputBias), n.Outputs)
	}
	for i, row := range n.OutputWeights {
		if len(row) != n.Hidden {
			return fmt.Errorf("mlp: output weight row %d has %d columns, want %d", i, len(row), n.Hidden)
		}
	}
	return nil
}

// Predict feeds the inputs forward and returns the output activations.
func (n *Network) Predict(inputs []float64) ([]float64, error) {
	if len(inputs) != n.Inputs {
		return nil, fmt.Errorf("mlp: got %d inputs, network expects %d", len(inputs), n.Inputs)
	}
	hidden := layer(n.HiddenWeights, n.HiddenBias, inputs)
	return layer(n.OutputWeights, n.OutputBias, hidden), nil
}

// Activate is Predict; it lets a Network fly a feller.
func (n *Network) Activate(inputs []float64) ([]float64, error) {
	return n.Predict(inputs)
}

// Clone returns a deep copy of the network.
func (n *Network) Clone() *Network {
	return &Network{
		Inputs:        n.Inputs,
		Hidden:        n.Hidden,
		Outputs:       n.Outputs,
		HiddenWeights: copyMatrix(n.HiddenWeights),
		HiddenBias:    append([]float64(nil), n.HiddenBias...),
		OutputWeights: copyMatrix(n.OutputWeights),
		OutputBias:    append([]float64(nil), n.OutputBias...),
	}
}

// Mutate nudges every weight and bias with probability rate.
func (n *Network) Mutate(rng *rand.Rand, rate float64) {
	nudge := func(v float64) float64 {
		if rng.Float64() < rate {
			return v + rng.NormFloat64()*mutationStdev
		}
		return v
	}
	for _, row := range n.HiddenWeights {
		for j := range row {
			row[j] = nudge(row[j])
		}
	}
	for i := range n.HiddenBias {
		n.HiddenBias[i] = nudge(n.HiddenBias[i])
	}
	for _, row := range n.OutputWeights {
		for j := range row {
			row[j] = nudge(row[j])
		}
	}
	for i := range n.OutputBias {
		n.OutputBias[i] = nudge(n.OutputBias[i])
	}
}

func layer(weights [][]float64, bias, in []float64) []float64 {
	out := make([]float64, len(weights))
	for i, row := range weights {
		sum := bias[i]
		for j, w := range row {
			sum += w * in[j]
		}
		out[i] = sigmoid(sum)
	}
	return out
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func randomVector(n int, rng *rand.Rand) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = rng.Float64()*2 - 1
	}
	return v
}

func randomMatrix(rows, cols int, rng *rand.Rand) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = randomVector(cols, rng)
	}
	return m
}

func copyMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
