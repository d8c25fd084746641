package httpserver

import (
	"github.com/helixir/literature-harvester/internal/citation"
)

// Response types for JSON serialization.

type networkResponse struct {
	Root      string              `json:"root"`
	Depth     int                 `json:"depth"`
	NodeCount int                 `json:"node_count"`
	EdgeCount int                 `json:"edge_count"`
	Adjacency map[string][]string `json:"adjacency"`
}

type pathsResponse struct {
	From     string     `json:"from"`
	To       string     `json:"to"`
	MaxDepth int        `json:"max_depth"`
	Count    int        `json:"count"`
	Paths    [][]string `json:"paths"`
}

type similarityResponse struct {
	ID    string  `json:"id"`
	Other string  `json:"other"`
	Score float64 `json:"score"`
}

type citationResponse struct {
	CitingID string `json:"citing_id"`
	CitedID  string `json:"cited_id"`
	Created  bool   `json:"created"`
}

type validationErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Converter functions

func graphToResponse(root string, depth int, g citation.Graph) networkResponse {
	return networkResponse{
		Root:      root,
		Depth:     depth,
		NodeCount: nodeCount(g),
		EdgeCount: g.EdgeCount(),
		Adjacency: g.Adjacency(),
	}
}

// nodeCount counts every id in the graph, including cited ids that were
// never expanded.
func nodeCount(g citation.Graph) int {
	seen := make(map[string]struct{}, len(g))
	for id, cites := range g {
		seen[id] = struct{}{}
		for c := range cites {
			seen[c] = struct{}{}
		}
	}
	return len(seen)
}
