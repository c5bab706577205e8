// Package brainfile saves trained brains as YAML so they can be replayed
// without the population or checkpoint they came from.
package brainfile

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/baldhumanity/flappyfeller/flappy"
	"github.com/baldhumanity/flappyfeller/mlp"
	"github.com/baldhumanity/flappyfeller/neat"
	"github.com/baldhumanity/flappyfeller/neat/nn"
)

// Kind names the brain family stored in a File.
type Kind string

const (
	KindMLP  Kind = "mlp"
	KindNEAT Kind = "neat"
)

// File is the on-disk form of a brain. Exactly one of Network and Genome is set.
type File struct {
	Kind       Kind         `yaml:"kind"`
	Fitness    float64      `yaml:"fitness"`
	Generation int          `yaml:"generation"`
	Network    *mlp.Network `yaml:"network,omitempty"`
	Genome     *Genome      `yaml:"genome,omitempty"`
}

// Genome is a NEAT genome reduced to what its phenotype needs.
type Genome struct {
	Inputs      int          `yaml:"inputs"`
	Outputs     int          `yaml:"outputs"`
	Nodes       []Node       `yaml:"nodes"`
	Connections []Connection `yaml:"connections"`
}

type Node struct {
	Key         int     `yaml:"key"`
	Bias        float64 `yaml:"bias"`
	Response    float64 `yaml:"response"`
	Activation  string  `yaml:"activation"`
	Aggregation string  `yaml:"aggregation"`
}

type Connection struct {
	In      int     `yaml:"in"`
	Out     int     `yaml:"out"`
	Weight  float64 `yaml:"weight"`
	Enabled bool    `yaml:"enabled"`
}

// FromNetwork wraps a fixed-topology network.
func FromNetwork(n *mlp.Network, fitness float64, generation int) File {
	return File{Kind: KindMLP, Fitness: fitness, Generation: generation, Network: n.Clone()}
}

// FromGenome converts a NEAT genome, keeping nodes and connections sorted by key.
func FromGenome(g *neat.Genome, generation int) File {
	doc := &Genome{
		Inputs:  len(g.Config.InputKeys),
		Outputs: len(g.Config.OutputKeys),
	}
	for _, n := range g.Nodes {
		doc.Nodes = append(doc.Nodes, Node{
			Key:         n.Key,
			Bias:        n.Bias,
			Response:    n.Response,
			Activation:  n.Activation,
			Aggregation: n.Aggregation,
		})
	}
	sort.Slice(doc.Nodes, func(i, j int) bool { return doc.Nodes[i].Key < doc.Nodes[j].Key })
	for k, c := range g.Connections {
		doc.Connections = append(doc.Connections, Connection{In: k.InNodeID, Out: k.OutNodeID, Weight: c.Weight, Enabled: c.Enabled})
	}
	sort.Slice(doc.Connections, func(i, j int) bool {
		a, b := doc.Connections[i], doc.Connections[j]
		if a.In != b.In {
			return a.In < b.In
		}
		return a.Out < b.Out
	})
	return File{Kind: KindNEAT, Fitness: g.Fitness, Generation: generation, Genome: doc}
}

// Brain rebuilds a runnable brain from the file.
func (f File) Brain() (flappy.Brain, error) {
	switch f.Kind {
	case KindMLP:
		if f.Network == nil {
			return nil, fmt.Errorf("brainfile: kind %q without network", f.Kind)
		}
		if err := f.Network.Validate(); err != nil {
			return nil, fmt.Errorf("brainfile: %w", err)
		}
		return f.Network, nil
	case KindNEAT:
		if f.Genome == nil {
			return nil, fmt.Errorf("brainfile: kind %q without genome", f.Kind)
		}
		net, err := nn.CreateFeedForwardNetwork(f.Genome.toGenome())
		if err != nil {
			return nil, fmt.Errorf("brainfile: %w", err)
		}
		return net, nil
	default:
		return nil, fmt.Errorf("brainfile: unknown kind %q", f.Kind)
	}
}

// toGenome rebuilds a genome with a minimal config holding only the node keys.
func (d *Genome) toGenome() *neat.Genome {
	cfg := &neat.GenomeConfig{NumInputs: d.Inputs, NumOutputs: d.Outputs, FeedForward: true}
	for i := 0; i < d.Inputs; i++ {
		cfg.InputKeys = append(cfg.InputKeys, -(i + 1))
	}
	for i := 0; i < d.Outputs; i++ {
		cfg.OutputKeys = append(cfg.OutputKeys, i)
	}
	g := neat.NewGenome(0, cfg)
	for _, n := range d.Nodes {
		g.Nodes[n.Key] = &neat.NodeGene{
			Key:         n.Key,
			Bias:        n.Bias,
			Response:    n.Response,
			Activation:  n.Activation,
			Aggregation: n.Aggregation,
		}
	}
	for _, c := range d.Connections {
		key := neat.ConnectionKey{InNodeID: c.In, OutNodeID: c.Out}
		g.Connections[key] = &neat.ConnectionGene{Key: key, Weight: c.Weight, Enabled: c.Enabled}
	}
	return g
}

// Save writes f to path as YAML.
func Save(path string, f File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal brain: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write brain file: %w", err)
	}
	return nil
}

// Load reads a brain file written by Save.
func Load(path string) (File, error) {
	var f File
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("reading brain file: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parsing brain file: %w", err)
	}
	if _, err := f.Brain(); err != nil {
		return f, err
	}
	return f, nil
}
