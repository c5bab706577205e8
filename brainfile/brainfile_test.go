package brainfile

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/flappyfeller/flappy"
	"github.com/baldhumanity/flappyfeller/mlp"
	"github.com/baldhumanity/flappyfeller/neat"
	"github.com/baldhumanity/flappyfeller/neat/nn"
)

var sensors = []float64{0.3, -0.2, 0.9, 0.25, 0.4}

func TestSaveLoadNetwork(t *testing.T) {
	net := mlp.New(flappy.NumInputs, 4, flappy.NumOutputs, rand.New(rand.NewSource(7)))
	path := filepath.Join(t.TempDir(), "best.yaml")

	require.NoError(t, Save(path, FromNetwork(net, 144, 12)))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, KindMLP, f.Kind)
	assert.Equal(t, 144.0, f.Fitness)
	assert.Equal(t, 12, f.Generation)
	assert.Nil(t, f.Genome)

	brain, err := f.Brain()
	require.NoError(t, err)
	want, err := net.Predict(sensors)
	require.NoError(t, err)
	got, err := brain.Activate(sensors)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-12)
}

func TestSaveLoadGenome(t *testing.T) {
	cfg, err := neat.LoadConfig("../configs/flappy.ini")
	require.NoError(t, err)
	cfg.Seed(3)
	g := neat.NewGenome(1, &cfg.Genome)
	g.ConfigureNew()
	g.Fitness = 900
	path := filepath.Join(t.TempDir(), "best.yaml")

	require.NoError(t, Save(path, FromGenome(g, 4)))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, KindNEAT, f.Kind)
	assert.Equal(t, 900.0, f.Fitness)
	require.NotNil(t, f.Genome)
	assert.Len(t, f.Genome.Nodes, len(g.Nodes))
	assert.Len(t, f.Genome.Connections, len(g.Connections))

	original, err := nn.CreateFeedForwardNetwork(g)
	require.NoError(t, err)
	want, err := original.Activate(sensors)
	require.NoError(t, err)

	brain, err := f.Brain()
	require.NoError(t, err)
	got, err := brain.Activate(sensors)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-12)
}

func TestLoadRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "missing.yaml")},
		{"not yaml", write("bad.yaml", "kind: [mlp")},
		{"unknown kind", write("kind.yaml", "kind: lstm\n")},
		{"no network", write("empty.yaml", "kind: mlp\n")},
		{"bad shape", write("shape.yaml", "kind: mlp\nnetwork:\n  inputs: 5\n  hidden: 1\n  outputs: 2\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			assert.Error(t, err)
		})
	}
}
