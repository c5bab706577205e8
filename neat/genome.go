package neat

import (
	"fmt"
	"sort"
	"strings"
)

// Genome is one individual: a set of node and connection genes that
// encodes a feller's brain.
type Genome struct {
	Key         int
	Nodes       map[int]*NodeGene
	Connections map[ConnectionKey]*ConnectionGene
	Fitness     float64
	Config      *GenomeConfig
}

// NewGenome creates an empty genome.
func NewGenome(key int, config *GenomeConfig) *Genome {
	return &Genome{
		Key:         key,
		Nodes:       make(map[int]*NodeGene),
		Connections: make(map[ConnectionKey]*ConnectionGene),
		Config:      config,
	}
}

// ConfigureNew creates output and hidden nodes and wires them according to
// initial_connection. Hidden nodes of fresh genomes share the keys
// NumOutputs..NumOutputs+NumHidden-1 so that they are homologous.
func (g *Genome) ConfigureNew() {
	for _, key := range g.Config.OutputKeys {
		g.Nodes[key] = NewNodeGene(key, g.Config)
	}
	for i := 0; i < g.Config.NumHidden; i++ {
		key := g.Config.NumOutputs + i
		g.Nodes[key] = NewNodeGene(key, g.Config)
	}
	g.connectInitial()
}

func (g *Genome) isOutput(key int) bool {
	return key >= 0 && key < g.Config.NumOutputs
}

// hiddenKeys returns the sorted keys of every non-output node.
func (g *Genome) hiddenKeys() []int {
	keys := []int{}
	for k := range g.Nodes {
		if !g.isOutput(k) {
			keys = append(keys, k)
		}
	}
	sort.Ints(keys)
	return keys
}

// connectInitial wires the fresh genome. The *_nodirect schemes never link
// inputs straight to outputs unless there are no hidden nodes; hidden-hidden
// links are only made for recurrent genomes.
func (g *Genome) connectInitial() {
	scheme := strings.Fields(g.Config.InitialConnection)[0]
	inputs := g.Config.InputKeys
	outputs := g.Config.OutputKeys
	hidden := g.hiddenKeys()
	rng := g.Config.Rand()

	add := func(in, out int, fraction float64) {
		if fraction < 1 && rng.Float64() >= fraction {
			return
		}
		key := ConnectionKey{InNodeID: in, OutNodeID: out}
		g.Connections[key] = NewConnectionGene(key, g.Config)
	}

	switch scheme {
	case "unconnected":
	case "fs_neat_nohidden", "fs_neat":
		in := inputs[rng.Intn(len(inputs))]
		for _, out := range outputs {
			add(in, out, 1)
		}
	case "fs_neat_hidden":
		in := inputs[rng.Intn(len(inputs))]
		for _, out := range append(append([]int{}, hidden...), outputs...) {
			add(in, out, 1)
		}
	case "full_nodirect", "full", "full_direct", "partial_nodirect", "partial", "partial_direct":
		fraction := 1.0
		if strings.HasPrefix(scheme, "partial") {
			fraction = g.Config.ConnectionFraction
		}
		direct := strings.HasSuffix(scheme, "_direct") || len(hidden) == 0
		for _, in := range inputs {
			for _, h := range hidden {
				add(in, h, fraction)
			}
			if direct {
				for _, out := range outputs {
					add(in, out, fraction)
				}
			}
		}
		for _, h := range hidden {
			for _, out := range outputs {
				add(h, out, fraction)
			}
			if !g.Config.FeedForward {
				for _, h2 := range hidden {
					add(h, h2, fraction)
				}
			}
		}
		if !g.Config.FeedForward {
			for _, out := range outputs {
				add(out, out, fraction)
			}
		}
	default:
		// LoadConfig rejects unknown schemes.
		panic(fmt.Sprintf("invalid initial_connection type: %s", scheme))
	}
}

// ConfigureCrossover fills g with genes inherited from two parents. The
// fitter parent contributes every gene; homologous genes mix attributes.
func (g *Genome) ConfigureCrossover(parent1, parent2 *Genome) {
	if parent1.Fitness < parent2.Fitness {
		parent1, parent2 = parent2, parent1
	}
	g.Config = parent1.Config
	rng := g.Config.Rand()

	// Sorted so that a seeded source always hands the same draw to the same gene.
	for _, key := range parent1.sortedConnectionKeys() {
		c1 := parent1.Connections[key]
		if c2, ok := parent2.Connections[key]; ok {
			g.Connections[key] = c1.Crossover(c2, rng)
		} else {
			g.Connections[key] = c1.Copy()
		}
	}
	for _, key := range parent1.sortedNodeKeys() {
		n1 := parent1.Nodes[key]
		if n2, ok := parent2.Nodes[key]; ok {
			g.Nodes[key] = n1.Crossover(n2, rng)
		} else {
			g.Nodes[key] = n1.Copy()
		}
	}
}

// Mutate applies structural mutations followed by attribute mutations.
func (g *Genome) Mutate() {
	cfg := g.Config
	rng := cfg.Rand()

	if cfg.SingleStructuralMutation {
		total := cfg.NodeAddProb + cfg.NodeDeleteProb + cfg.ConnAddProb + cfg.ConnDeleteProb
		div := max(1.0, total)
		r := rng.Float64()
		switch {
		case r < cfg.NodeAddProb/div:
			g.mutateAddNode()
		case r < (cfg.NodeAddProb+cfg.NodeDeleteProb)/div:
			g.mutateDeleteNode()
		case r < (cfg.NodeAddProb+cfg.NodeDeleteProb+cfg.ConnAddProb)/div:
			g.mutateAddConnection()
		case r < total/div:
			g.mutateDeleteConnection()
		}
	} else {
		if rng.Float64() < cfg.NodeAddProb {
			g.mutateAddNode()
		}
		if rng.Float64() < cfg.NodeDeleteProb {
			g.mutateDeleteNode()
		}
		if rng.Float64() < cfg.ConnAddProb {
			g.mutateAddConnection()
		}
		if rng.Float64() < cfg.ConnDeleteProb {
			g.mutateDeleteConnection()
		}
	}

	for _, key := range g.sortedNodeKeys() {
		g.Nodes[key].Mutate(cfg)
	}
	for _, key := range g.sortedConnectionKeys() {
		g.Connections[key].Mutate(cfg)
	}
}

// mutateAddNode splits an enabled connection in two around a new node.
// The incoming half gets weight 1 and the outgoing half keeps the old
// weight, so the network's behaviour is preserved at first.
func (g *Genome) mutateAddNode() {
	candidates := []ConnectionKey{}
	for _, key := range g.sortedConnectionKeys() {
		if g.Connections[key].Enabled {
			candidates = append(candidates, key)
		}
	}
	if len(candidates) == 0 {
		return
	}
	split := g.Connections[candidates[g.Config.Rand().Intn(len(candidates))]]
	split.Enabled = false

	newKey := g.Config.GetNewNodeKey()
	node := NewNodeGene(newKey, g.Config)
	node.Bias = 0
	node.Response = 1
	g.Nodes[newKey] = node

	in := ConnectionKey{InNodeID: split.Key.InNodeID, OutNodeID: newKey}
	g.Connections[in] = &ConnectionGene{Key: in, Weight: 1.0, Enabled: true}
	out := ConnectionKey{InNodeID: newKey, OutNodeID: split.Key.OutNodeID}
	g.Connections[out] = &ConnectionGene{Key: out, Weight: split.Weight, Enabled: true}
}

// mutateDeleteNode removes a random hidden node and every connection touching it.
func (g *Genome) mutateDeleteNode() {
	hidden := g.hiddenKeys()
	if len(hidden) == 0 {
		return
	}
	victim := hidden[g.Config.Rand().Intn(len(hidden))]
	for key := range g.Connections {
		if key.InNodeID == victim || key.OutNodeID == victim {
			delete(g.Connections, key)
		}
	}
	delete(g.Nodes, victim)
}

// mutateAddConnection links two unconnected nodes. Outputs never feed other
// outputs, and in feed-forward genomes the link must not close a cycle.
func (g *Genome) mutateAddConnection() {
	rng := g.Config.Rand()
	outs := g.sortedNodeKeys()
	if len(outs) == 0 {
		return
	}
	ins := append(append([]int{}, g.Config.InputKeys...), outs...)

	in := ins[rng.Intn(len(ins))]
	out := outs[rng.Intn(len(outs))]
	key := ConnectionKey{InNodeID: in, OutNodeID: out}

	if c, ok := g.Connections[key]; ok {
		c.Enabled = true
		return
	}
	if g.isOutput(in) && g.isOutput(out) {
		return
	}
	if g.Config.FeedForward && createsCycle(g.Connections, in, out) {
		return
	}
	g.Connections[key] = NewConnectionGene(key, g.Config)
}

// mutateDeleteConnection removes a random connection.
func (g *Genome) mutateDeleteConnection() {
	keys := g.sortedConnectionKeys()
	if len(keys) == 0 {
		return
	}
	delete(g.Connections, keys[g.Config.Rand().Intn(len(keys))])
}

// Distance is the genetic distance used for speciation: disjoint genes
// weighted by the disjoint coefficient plus attribute differences of
// homologous genes, each normalised by the larger genome.
func (g *Genome) Distance(other *Genome) float64 {
	cfg := g.Config
	c1 := cfg.CompatibilityDisjointCoefficient

	nodeDist := 0.0
	if len(g.Nodes) > 0 || len(other.Nodes) > 0 {
		disjoint := 0
		for k := range other.Nodes {
			if _, ok := g.Nodes[k]; !ok {
				disjoint++
			}
		}
		for _, k := range g.sortedNodeKeys() {
			if n2, ok := other.Nodes[k]; ok {
				nodeDist += g.Nodes[k].Distance(n2, cfg)
			} else {
				disjoint++
			}
		}
		nodeDist = (nodeDist + c1*float64(disjoint)) / float64(max(len(g.Nodes), len(other.Nodes)))
	}

	connDist := 0.0
	if len(g.Connections) > 0 || len(other.Connections) > 0 {
		disjoint := 0
		for k := range other.Connections {
			if _, ok := g.Connections[k]; !ok {
				disjoint++
			}
		}
		for _, k := range g.sortedConnectionKeys() {
			if cg2, ok := other.Connections[k]; ok {
				connDist += g.Connections[k].Distance(cg2, cfg)
			} else {
				disjoint++
			}
		}
		connDist = (connDist + c1*float64(disjoint)) / float64(max(len(g.Connections), len(other.Connections)))
	}

	return nodeDist + connDist
}

// Size returns the number of nodes and enabled connections.
func (g *Genome) Size() (nodes, enabled int) {
	for _, c := range g.Connections {
		if c.Enabled {
			enabled++
		}
	}
	return len(g.Nodes), enabled
}

func (g *Genome) sortedNodeKeys() []int {
	keys := make([]int, 0, len(g.Nodes))
	for k := range g.Nodes {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func (g *Genome) sortedConnectionKeys() []ConnectionKey {
	keys := make([]ConnectionKey, 0, len(g.Connections))
	for k := range g.Connections {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].InNodeID != keys[j].InNodeID {
			return keys[i].InNodeID < keys[j].InNodeID
		}
		return keys[i].OutNodeID < keys[j].OutNodeID
	})
	return keys
}

// createsCycle reports whether adding in->out would close a cycle. Disabled
// connections count too, so that re-enabling one can never form a loop.
func createsCycle(conns map[ConnectionKey]*ConnectionGene, in, out int) bool {
	if in == out {
		return true
	}
	next := make(map[int][]int)
	for k := range conns {
		next[k.InNodeID] = append(next[k.InNodeID], k.OutNodeID)
	}
	visited := map[int]bool{out: true}
	stack := []int{out}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, n := range next[cur] {
			if n == in {
				return true
			}
			if !visited[n] {
				visited[n] = true
				stack = append(stack, n)
			}
		}
	}
	return false
}
