// Package nn builds runnable phenotypes from NEAT genomes.
package nn

import (
	"errors"
	"fmt"
	"sort"

	"github.com/baldhumanity/flappyfeller/neat"
)

// ErrCycle is returned for a genome whose enabled connections form a loop.
var ErrCycle = errors.New("network contains a cycle")

type link struct {
	from   int // index into the value slice
	weight float64
}

// neuralNode is a node that takes part in activation, with its functions resolved.
type neuralNode struct {
	Key         int
	index       int
	Bias        float64
	Response    float64
	Activation  neat.ActivationType
	Aggregation neat.AggregationType
	links       []link
}

// FeedForwardNetwork evaluates a genome's nodes in topological order. It is
// immutable after construction, so one network may be activated from many
// goroutines.
type FeedForwardNetwork struct {
	InputKeys     []int
	OutputKeys    []int
	NodeEvalOrder []int
	nodes         []neuralNode
	outputIndex   []int
	size          int
}

// CreateFeedForwardNetwork builds the phenotype of g. Only enabled
// connections and nodes that can influence an output are used. Nodes
// without a path from the inputs output 0, as do the nodes fed by them.
func CreateFeedForwardNetwork(g *neat.Genome) (*FeedForwardNetwork, error) {
	inputs := g.Config.InputKeys
	outputs := g.Config.OutputKeys
	isInput := make(map[int]bool, len(inputs))
	for _, k := range inputs {
		isInput[k] = true
	}

	var conns []*neat.ConnectionGene
	for _, c := range g.Connections {
		if c.Enabled {
			conns = append(conns, c)
		}
	}
	sort.Slice(conns, func(i, j int) bool {
		a, b := conns[i].Key, conns[j].Key
		if a.OutNodeID != b.OutNodeID {
			return a.OutNodeID < b.OutNodeID
		}
		return a.InNodeID < b.InNodeID
	})

	required := requiredForOutput(inputs, outputs, conns)
	incoming := make(map[int][]*neat.ConnectionGene)
	for _, c := range conns {
		if required[c.Key.OutNodeID] && (isInput[c.Key.InNodeID] || required[c.Key.InNodeID]) {
			incoming[c.Key.OutNodeID] = append(incoming[c.Key.OutNodeID], c)
		}
	}

	order, err := topologicalOrder(required, incoming, isInput)
	if err != nil {
		return nil, err
	}

	index := make(map[int]int, len(inputs)+len(order))
	for i, k := range inputs {
		index[k] = i
	}
	net := &FeedForwardNetwork{InputKeys: inputs, OutputKeys: outputs}
	live := make(map[int]bool, len(inputs)+len(order))
	for _, k := range inputs {
		live[k] = true
	}

	for _, key := range order {
		in := incoming[key]
		alive := len(in) > 0
		for _, c := range in {
			alive = alive && live[c.Key.InNodeID]
		}
		index[key] = len(index)
		if !alive {
			continue
		}
		live[key] = true

		gene, ok := g.Nodes[key]
		if !ok {
			return nil, fmt.Errorf("connection references missing node %d", key)
		}
		act, err := neat.GetActivation(gene.Activation)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", key, err)
		}
		agg, err := neat.GetAggregation(gene.Aggregation)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", key, err)
		}
		node := neuralNode{
			Key:         key,
			index:       index[key],
			Bias:        gene.Bias,
			Response:    gene.Response,
			Activation:  act,
			Aggregation: agg,
		}
		for _, c := range in {
			node.links = append(node.links, link{from: index[c.Key.InNodeID], weight: c.Weight})
		}
		net.nodes = append(net.nodes, node)
		net.NodeEvalOrder = append(net.NodeEvalOrder, key)
	}

	for _, k := range outputs {
		i, ok := index[k]
		if !ok {
			i = len(index)
			index[k] = i
		}
		net.outputIndex = append(net.outputIndex, i)
	}
	net.size = len(index)
	return net, nil
}

// Activate computes the outputs for one input vector.
func (net *FeedForwardNetwork) Activate(inputs []float64) ([]float64, error) {
	if len(inputs) != len(net.InputKeys) {
		return nil, fmt.Errorf("mismatch between input count (%d) and network input nodes (%d)", len(inputs), len(net.InputKeys))
	}
	values := make([]float64, net.size)
	copy(values, inputs)

	var buf []float64
	for _, node := range net.nodes {
		buf = buf[:0]
		for _, l := range node.links {
			buf = append(buf, values[l.from]*l.weight)
		}
		values[node.index] = node.Activation(node.Bias + node.Response*node.Aggregation(buf))
	}

	out := make([]float64, len(net.outputIndex))
	for i, idx := range net.outputIndex {
		out[i] = values[idx]
	}
	return out, nil
}

// requiredForOutput walks back from the outputs and returns every non-input
// node whose value can reach one of them.
func requiredForOutput(inputs, outputs []int, conns []*neat.ConnectionGene) map[int]bool {
	isInput := make(map[int]bool, len(inputs))
	for _, k := range inputs {
		isInput[k] = true
	}
	required := make(map[int]bool, len(outputs))
	for _, k := range outputs {
		required[k] = true
	}
	for changed := true; changed; {
		changed = false
		for _, c := range conns {
			from := c.Key.InNodeID
			if required[c.Key.OutNodeID] && !required[from] && !isInput[from] {
				required[from] = true
				changed = true
			}
		}
	}
	return required
}

// topologicalOrder sorts the required nodes with Kahn's algorithm, smallest
// key first among ready nodes.
func topologicalOrder(required map[int]bool, incoming map[int][]*neat.ConnectionGene, isInput map[int]bool) ([]int, error) {
	inDegree := make(map[int]int, len(required))
	next := make(map[int][]int)
	for key := range required {
		for _, c := range incoming[key] {
			if isInput[c.Key.InNodeID] {
				continue
			}
			inDegree[key]++
			next[c.Key.InNodeID] = append(next[c.Key.InNodeID], key)
		}
	}

	var ready []int
	for key := range required {
		if inDegree[key] == 0 {
			ready = append(ready, key)
		}
	}
	sort.Ints(ready)

	order := make([]int, 0, len(required))
	for len(ready) > 0 {
		u := ready[0]
		ready = ready[1:]
		order = append(order, u)
		for _, v := range next[u] {
			inDegree[v]--
			if inDegree[v] == 0 {
				ready = append(ready, v)
			}
		}
		sort.Ints(ready)
	}
	if len(order) != len(required) {
		return nil, fmt.Errorf("ordering %d of %d nodes: %w", len(order), len(required), ErrCycle)
	}
	return order, nil
}
