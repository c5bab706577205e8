package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/flappyfeller/brainfile"
	"github.com/baldhumanity/flappyfeller/flappy"
	"github.com/baldhumanity/flappyfeller/mlp"
)

// execute runs the CLI with args and returns what it printed on stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

const smallTraining = `
[Trainer]
strategy           = clone
generations        = 2
max_steps          = 30
seed               = 5
checkpoint_every   = 1
checkpoint_prefix  = %s
population_size    = 4
`

func writeTrainingConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "train.ini")
	body := []byte(fmt.Sprintf(smallTraining, filepath.Join(dir, "cp")))
	require.NoError(t, os.WriteFile(path, body, 0o644))
	return path
}

func TestTrainRunsExportAndReplay(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTrainingConfig(t, dir)
	dbPath := filepath.Join(dir, "flappy.db")
	brainPath := filepath.Join(dir, "best.yaml")

	out, err := execute(t, "train", "--config", configPath, "--db", dbPath, "--out", brainPath, "--http", "")
	require.NoError(t, err)
	assert.Contains(t, out, "Generations: 2")
	assert.Contains(t, out, "Best score: 30")
	assert.FileExists(t, brainPath)
	assert.FileExists(t, filepath.Join(dir, "cp-1.gz"))
	assert.FileExists(t, filepath.Join(dir, "cp-final.gz"))

	m := regexp.MustCompile(`Run: (\S+)`).FindStringSubmatch(out)
	require.Len(t, m, 2)
	runID := m[1]

	out, err = execute(t, "runs", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, runID)
	assert.Contains(t, out, "finished")

	out, err = execute(t, "runs", runID, "--db", dbPath, "--json")
	require.NoError(t, err)
	var detail struct {
		Run struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"run"`
		Generations []struct {
			Generation int `json:"generation"`
		} `json:"generations"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &detail))
	assert.Equal(t, runID, detail.Run.ID)
	assert.Len(t, detail.Generations, 2)

	exported := filepath.Join(dir, "exported.yaml")
	out, err = execute(t, "export", filepath.Join(dir, "cp-final.gz"), "--config", configPath, "--out", exported)
	require.NoError(t, err)
	assert.Contains(t, out, "written to "+exported)
	file, err := brainfile.Load(exported)
	require.NoError(t, err)
	assert.Equal(t, brainfile.KindMLP, file.Kind)
	assert.Equal(t, 30.0, file.Fitness)

	out, err = execute(t, "replay", brainPath, "--max-steps", "30")
	require.NoError(t, err)
	assert.Contains(t, out, "Score: 30")
}

func TestReplayPrintsFrames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "brain.yaml")
	net := mlp.New(flappy.NumInputs, 4, flappy.NumOutputs, rand.New(rand.NewSource(2)))
	require.NoError(t, brainfile.Save(path, brainfile.FromNetwork(net, 12, 3)))

	out, err := execute(t, "replay", path, "--max-steps", "20", "--frames", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "Generation 3; Fellers: 1")
	assert.Contains(t, out, "Score: 20")
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{"replay missing brain", []string{"replay", filepath.Join(dir, "none.yaml")}},
		{"replay without args", []string{"replay"}},
		{"train missing config", []string{"train", "--config", filepath.Join(dir, "none.ini"), "--db", ""}},
		{"export missing checkpoint", []string{"export", filepath.Join(dir, "none.gz"), "--config", writeTrainingConfig(t, dir)}},
		{"unknown run", []string{"runs", "nope", "--db", filepath.Join(dir, "flappy.db")}},
		{"serve without address", []string{"serve", "--http", "", "--db", filepath.Join(dir, "flappy.db")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestRunsEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "flappy.db")
	out, err := execute(t, "runs", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded")

	out, err = execute(t, "runs", "--db", dbPath, "--json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestJSONOutput(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTrainingConfig(t, dir)
	brainPath := filepath.Join(dir, "best.yaml")

	out, err := execute(t, "train", "--config", configPath, "--db", "", "--out", brainPath, "--http", "", "--json")
	require.NoError(t, err)
	var report struct {
		Seed        int64   `json:"seed"`
		Generations int     `json:"generations"`
		BestScore   float64 `json:"best_score"`
		BrainFile   string  `json:"brain_file"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, int64(5), report.Seed)
	assert.Equal(t, 2, report.Generations)
	assert.Equal(t, 30.0, report.BestScore)
	assert.Equal(t, brainPath, report.BrainFile)

	out, err = execute(t, "replay", brainPath, "--max-steps", "30", "--frames", "5", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"mlp","seed":1,"score":30}`, out)

	exported := filepath.Join(dir, "exported.yaml")
	out, err = execute(t, "export", filepath.Join(dir, "cp-final.gz"), "--config", configPath, "--out", exported, "--json")
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "mlp", info["kind"])
	assert.Equal(t, exported, info["path"])
	assert.Equal(t, 30.0, info["fitness"])
}
