package trainer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flappy.ini")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("../configs/flappy.ini")
	require.NoError(t, err)
	assert.Equal(t, StrategyClone, cfg.Strategy)
	assert.Equal(t, 150, cfg.PopulationSize)
	assert.Equal(t, 10000, cfg.MaxSteps)
	assert.Equal(t, 10, cfg.CheckpointEvery)
	assert.Equal(t, 0.05, cfg.KeepFraction)
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "[Trainer]\nstrategy = NEAT\ngenerations = 5\n"))
	require.NoError(t, err)
	assert.Equal(t, StrategyNEAT, cfg.Strategy)
	assert.Equal(t, 5, cfg.Generations)
	assert.Equal(t, DefaultConfig().Episodes, cfg.Episodes)

	cfg, err = LoadConfig(writeConfig(t, "[World]\nwidth = 400\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"strategy", "strategy = random", "strategy"},
		{"episodes", "episodes = 0", "episodes"},
		{"max steps", "max_steps = -1", "max_steps"},
		{"fps", "fps = -5", "fps"},
		{"fps too high", "fps = 2000000000", "fps"},
		{"population", "population_size = 0", "population_size"},
		{"mutation rate", "mutation_rate = 1.5", "mutation_rate"},
		{"keep fraction", "keep_fraction = 0", "keep_fraction"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, "[Trainer]\n"+tt.body+"\n"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config error")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNEATIgnoresCloneSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = StrategyNEAT
	cfg.PopulationSize = 0
	assert.NoError(t, cfg.Validate())
}
