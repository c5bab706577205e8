package nn

import (
	"sync"
	"testing"

	"github.com/baldhumanity/flappyfeller/neat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGenome(t *testing.T) *neat.Genome {
	t.Helper()
	cfg, err := neat.LoadConfig("../testdata/neat.ini")
	require.NoError(t, err)
	return neat.NewGenome(1, &cfg.Genome)
}

func node(key int, activation string, bias float64) *neat.NodeGene {
	return &neat.NodeGene{Key: key, Bias: bias, Response: 1, Activation: activation, Aggregation: "sum"}
}

func connect(g *neat.Genome, in, out int, weight float64, enabled bool) {
	k := neat.ConnectionKey{InNodeID: in, OutNodeID: out}
	g.Connections[k] = &neat.ConnectionGene{Key: k, Weight: weight, Enabled: enabled}
}

func TestActivateDirect(t *testing.T) {
	g := testGenome(t)
	g.Nodes[0] = node(0, "identity", 0.5)
	connect(g, -1, 0, 2, true)
	connect(g, -2, 0, 3, true)

	net, err := CreateFeedForwardNetwork(g)
	require.NoError(t, err)

	out, err := net.Activate([]float64{1, 1})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDelta(t, 5.5, out[0], 1e-9)
}

func TestActivateHiddenLayer(t *testing.T) {
	g := testGenome(t)
	g.Nodes[0] = node(0, "identity", 0)
	g.Nodes[1] = node(1, "relu", 0)
	connect(g, -1, 1, 1, true)
	connect(g, -2, 1, -1, true)
	connect(g, 1, 0, 2, true)
	connect(g, -1, 0, 10, false)

	net, err := CreateFeedForwardNetwork(g)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, net.NodeEvalOrder)

	out, err := net.Activate([]float64{3, 1})
	require.NoError(t, err)
	assert.InDelta(t, 4.0, out[0], 1e-9)

	out, err = net.Activate([]float64{1, 3})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, out[0], 1e-9)
}

func TestNodesWithoutInputsOutputZero(t *testing.T) {
	g := testGenome(t)
	g.Nodes[0] = node(0, "identity", 7)
	g.Nodes[1] = node(1, "identity", 1)
	connect(g, 1, 0, 1, true)

	net, err := CreateFeedForwardNetwork(g)
	require.NoError(t, err)
	assert.Empty(t, net.NodeEvalOrder)

	out, err := net.Activate([]float64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, out)
}

func TestUnusedNodesAreSkipped(t *testing.T) {
	g := testGenome(t)
	g.Nodes[0] = node(0, "identity", 0)
	g.Nodes[5] = node(5, "no-such-function", 0)
	connect(g, -1, 0, 1, true)
	connect(g, -1, 5, 1, true)

	net, err := CreateFeedForwardNetwork(g)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, net.NodeEvalOrder)
}

func TestCycleIsRejected(t *testing.T) {
	g := testGenome(t)
	g.Nodes[0] = node(0, "sigmoid", 0)
	g.Nodes[1] = node(1, "sigmoid", 0)
	g.Nodes[2] = node(2, "sigmoid", 0)
	connect(g, -1, 1, 1, true)
	connect(g, 1, 2, 1, true)
	connect(g, 2, 1, 1, true)
	connect(g, 2, 0, 1, true)

	_, err := CreateFeedForwardNetwork(g)
	assert.ErrorIs(t, err, ErrCycle)
}

func TestActivateRejectsWrongInputCount(t *testing.T) {
	g := testGenome(t)
	g.Nodes[0] = node(0, "sigmoid", 0)
	net, err := CreateFeedForwardNetwork(g)
	require.NoError(t, err)

	_, err = net.Activate([]float64{1})
	assert.Error(t, err)
}

func TestUnknownActivation(t *testing.T) {
	g := testGenome(t)
	g.Nodes[0] = node(0, "swish", 0)
	connect(g, -1, 0, 1, true)
	_, err := CreateFeedForwardNetwork(g)
	assert.Error(t, err)
}

func TestActivateConcurrently(t *testing.T) {
	g := testGenome(t)
	g.Nodes[0] = node(0, "identity", 0)
	connect(g, -1, 0, 2, true)
	net, err := CreateFeedForwardNetwork(g)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(x float64) {
			defer wg.Done()
			out, err := net.Activate([]float64{x, 0})
			assert.NoError(t, err)
			assert.InDelta(t, 2*x, out[0], 1e-9)
		}(float64(i))
	}
	wg.Wait()
}
