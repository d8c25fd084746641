// Package citation answers graph queries over the record store's
// citation edges: bounded network expansion, simple path enumeration and
// neighbourhood similarity. Graphs are built per query and never persisted.
package citation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/literature-harvester/internal/domain"
	"github.com/helixir/literature-harvester/internal/observability"
)

// DefaultMaxDepth bounds network depth and path length when the engine is
// built without an explicit limit.
const DefaultMaxDepth = 10

// Operation names used for query metrics.
const (
	OperationNetwork    = "network"
	OperationPaths      = "paths"
	OperationSimilarity = "similarity"
)

// EdgeReader reads the citation relation of a single id.
type EdgeReader interface {
	// QueryCitationEdges returns the ids cited by id (outgoing) and the ids
	// citing id (incoming).
	QueryCitationEdges(ctx context.Context, id string) (outgoing, incoming []string, err error)
}

// Engine runs citation graph queries against an EdgeReader.
type Engine struct {
	edges    EdgeReader
	maxDepth int
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxDepth caps the depth callers may request.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger.With().Str("component", "citation_engine").Logger()
	}
}

// WithMetrics records query durations.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates an Engine over edges.
func NewEngine(edges EdgeReader, opts ...Option) *Engine {
	e := &Engine{
		edges:    edges,
		maxDepth: DefaultMaxDepth,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxDepth returns the largest depth the engine accepts.
func (e *Engine) MaxDepth() int {
	return e.maxDepth
}

// BuildNetwork explores outgoing and incoming edges breadth first from
// rootID. Ids at level <= depth are expanded; each id is expanded at most
// once, so cycles terminate.
func (e *Engine) BuildNetwork(ctx context.Context, rootID string, depth int) (Graph, error) {
	defer e.observe(OperationNetwork, time.Now())

	rootID = strings.TrimSpace(rootID)
	if err := e.validate("id", rootID, depth); err != nil {
		return nil, err
	}

	type item struct {
		id    string
		level int
	}

	graph := make(Graph)
	visited := make(map[string]struct{})
	queue := []item{{id: rootID, level: 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.level > depth {
			continue
		}
		if _, ok := visited[cur.id]; ok {
			continue
		}
		visited[cur.id] = struct{}{}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		outgoing, incoming, err := e.edges.QueryCitationEdges(ctx, cur.id)
		if err != nil {
			return nil, fmt.Errorf("query edges of %s: %w", cur.id, err)
		}

		graph.ensure(cur.id)
		for _, cited := range outgoing {
			graph.add(cur.id, cited)
			if _, ok := visited[cited]; !ok {
				queue = append(queue, item{id: cited, level: cur.level + 1})
			}
		}
		for _, citing := range incoming {
			graph.add(citing, cur.id)
			if _, ok := visited[citing]; !ok {
				queue = append(queue, item{id: citing, level: cur.level + 1})
			}
		}
	}

	e.logger.Debug().
		Str("root", rootID).
		Int("depth", depth).
		Int("nodes", len(graph)).
		Int("expanded", len(visited)).
		Msg("citation network built")

	return graph, nil
}

// FindPaths returns every simple path of outgoing edges from fromID to
// toID with at most maxDepth edges. A node never repeats within one path
// but may appear on several paths.
func (e *Engine) FindPaths(ctx context.Context, fromID, toID string, maxDepth int) ([][]string, error) {
	defer e.observe(OperationPaths, time.Now())

	fromID = strings.TrimSpace(fromID)
	toID = strings.TrimSpace(toID)
	if err := e.validate("from", fromID, maxDepth); err != nil {
		return nil, err
	}
	if toID == "" {
		return nil, domain.NewValidationError("to", "target id is required")
	}

	f := &pathFinder{
		edges:    e.edges,
		target:   toID,
		maxDepth: maxDepth,
		onPath:   make(map[string]struct{}),
		cache:    make(map[string][]string),
		paths:    [][]string{},
	}
	if err := f.walk(ctx, fromID); err != nil {
		return nil, err
	}

	e.logger.Debug().
		Str("from", fromID).
		Str("to", toID).
		Int("max_depth", maxDepth).
		Int("paths", len(f.paths)).
		Msg("citation paths found")

	return f.paths, nil
}

// pathFinder holds the state of one FindPaths search.
type pathFinder struct {
	edges    EdgeReader
	target   string
	maxDepth int
	onPath   map[string]struct{}
	path     []string
	cache    map[string][]string
	paths    [][]string
}

func (f *pathFinder) walk(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.onPath[id] = struct{}{}
	f.path = append(f.path, id)
	defer func() {
		delete(f.onPath, id)
		f.path = f.path[:len(f.path)-1]
	}()

	if id == f.target {
		f.paths = append(f.paths, append([]string(nil), f.path...))
		return nil
	}
	// Edges taken so far; one more would exceed the bound.
	if len(f.path)-1 >= f.maxDepth {
		return nil
	}

	outgoing, err := f.outgoing(ctx, id)
	if err != nil {
		return err
	}
	for _, next := range outgoing {
		if _, ok := f.onPath[next]; ok {
			continue
		}
		if err := f.walk(ctx, next); err != nil {
			return err
		}
	}
	return nil
}

func (f *pathFinder) outgoing(ctx context.Context, id string) ([]string, error) {
	if out, ok := f.cache[id]; ok {
		return out, nil
	}
	out, _, err := f.edges.QueryCitationEdges(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("query edges of %s: %w", id, err)
	}
	f.cache[id] = out
	return out, nil
}

// Similarity returns the Jaccard similarity of the citation neighbourhoods
// (cites plus cited-by) of a and b. Two empty neighbourhoods score 0.
func (e *Engine) Similarity(ctx context.Context, a, b string) (float64, error) {
	defer e.observe(OperationSimilarity, time.Now())

	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" {
		return 0, domain.NewValidationError("id", "id is required")
	}
	if b == "" {
		return 0, domain.NewValidationError("other", "other id is required")
	}

	na, err := e.neighbourhood(ctx, a)
	if err != nil {
		return 0, err
	}
	nb, err := e.neighbourhood(ctx, b)
	if err != nil {
		return 0, err
	}

	return jaccard(na, nb), nil
}

func (e *Engine) neighbourhood(ctx context.Context, id string) (map[string]struct{}, error) {
	outgoing, incoming, err := e.edges.QueryCitationEdges(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("query edges of %s: %w", id, err)
	}
	set := make(map[string]struct{}, len(outgoing)+len(incoming))
	for _, v := range outgoing {
		set[v] = struct{}{}
	}
	for _, v := range incoming {
		set[v] = struct{}{}
	}
	return set, nil
}

func jaccard(a, b map[string]struct{}) float64 {
	intersection := 0
	for v := range a {
		if _, ok := b[v]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func (e *Engine) validate(field, id string, depth int) error {
	if id == "" {
		return domain.NewValidationError(field, "id is required")
	}
	if depth < 0 {
		return domain.NewValidationError("depth", "depth must be non-negative")
	}
	if depth > e.maxDepth {
		return domain.NewValidationError("depth", fmt.Sprintf("depth must be at most %d", e.maxDepth))
	}
	return nil
}

func (e *Engine) observe(op string, start time.Time) {
	e.metrics.RecordCitationQuery(op, time.Since(start).Seconds())
}
