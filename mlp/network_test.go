package mlp

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredict(t *testing.T) {
	n := New(5, 4, 2, rand.New(rand.NewSource(3)))
	require.NoError(t, n.Validate())

	out, err := n.Predict([]float64{0.1, 0.2, 0.3, 0.4, 0.5})
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, v := range out {
		assert.Greater(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}

	_, err = n.Predict([]float64{1, 2})
	assert.Error(t, err)
}

func TestPredictKnownWeights(t *testing.T) {
	n := &Network{
		Inputs: 1, Hidden: 1, Outputs: 1,
		HiddenWeights: [][]float64{{0}},
		HiddenBias:    []float64{0},
		OutputWeights: [][]float64{{0}},
		OutputBias:    []float64{0},
	}
	out, err := n.Activate([]float64{42})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out[0], 1e-12)
}

func TestCloneIsIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	n := New(5, 4, 2, rng)
	c := n.Clone()
	assert.Equal(t, n, c)

	c.Mutate(rng, 1.0)
	assert.NotEqual(t, n.HiddenWeights, c.HiddenWeights)
	assert.NotEqual(t, n.OutputBias, c.OutputBias)
}

func TestMutateRate(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	n := New(5, 4, 2, rng)
	before := n.Clone()

	n.Mutate(rng, 0)
	assert.Equal(t, before, n)

	n.Mutate(rng, 1)
	for i := range n.HiddenWeights {
		for j := range n.HiddenWeights[i] {
			assert.NotEqual(t, before.HiddenWeights[i][j], n.HiddenWeights[i][j])
		}
	}
}

func TestValidateRejectsBadShapes(t *testing.T) {
	n := New(5, 4, 2, rand.New(rand.NewSource(1)))
	n.HiddenWeights[2] = n.HiddenWeights[2][:3]
	assert.ErrorContains(t, n.Validate(), "hidden weight row 2")

	assert.Error(t, (&Network{}).Validate())
}
