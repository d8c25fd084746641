package citation

import (
	"encoding/json"
	"slices"
)

// Graph maps a paper id to the set of ids it cites, as discovered by a
// bounded traversal.
type Graph map[string]map[string]struct{}

func (g Graph) ensure(id string) map[string]struct{} {
	set, ok := g[id]
	if !ok {
		set = make(map[string]struct{})
		g[id] = set
	}
	return set
}

func (g Graph) add(citing, cited string) {
	g.ensure(citing)[cited] = struct{}{}
}

// Nodes returns the graph keys in sorted order.
func (g Graph) Nodes() []string {
	nodes := make([]string, 0, len(g))
	for id := range g {
		nodes = append(nodes, id)
	}
	slices.Sort(nodes)
	return nodes
}

// Cites returns the sorted ids that id cites within the graph.
func (g Graph) Cites(id string) []string {
	set := g[id]
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// EdgeCount returns the number of directed edges in the graph.
func (g Graph) EdgeCount() int {
	n := 0
	for _, set := range g {
		n += len(set)
	}
	return n
}

// Adjacency returns the graph as sorted adjacency lists.
func (g Graph) Adjacency() map[string][]string {
	out := make(map[string][]string, len(g))
	for id := range g {
		out[id] = g.Cites(id)
	}
	return out
}

// MarshalJSON encodes the graph as an object of sorted id arrays.
func (g Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Adjacency())
}
