package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixir/literature-harvester/internal/citation"
	"github.com/helixir/literature-harvester/internal/store"
)

var (
	networkDepth  int
	pathsMaxDepth int
)

var networkCmd = &cobra.Command{
	Use:   "network <paper-id>",
	Short: "Print the citation network around a paper",
	Long: `Breadth-first expansion over both citation directions, up to --depth
edges away from the root.

Examples:
  harvester network 10.1016/j.biortech.2020.123456 --depth 2
  harvester network W2741809807 --human`,
	Args: cobra.ExactArgs(1),
	RunE: runNetwork,
}

var pathsCmd = &cobra.Command{
	Use:   "paths <from-id> <to-id>",
	Short: "List every citation path between two papers",
	Long: `Depth-first enumeration of simple paths following outgoing citations.
Paths longer than --max-depth edges are not explored.`,
	Args: cobra.ExactArgs(2),
	RunE: runPaths,
}

var similarityCmd = &cobra.Command{
	Use:   "similarity <id> <other-id>",
	Short: "Jaccard similarity of two papers' citation neighbourhoods",
	Args:  cobra.ExactArgs(2),
	RunE:  runSimilarity,
}

var citeCmd = &cobra.Command{
	Use:   "cite <citing-id> <cited-id>",
	Short: "Record that one paper cites another",
	Long: `Store a directed citation edge. Adding an existing edge is a no-op.
Self citations are rejected when citation.self_citation is "reject".`,
	Args: cobra.ExactArgs(2),
	RunE: runCite,
}

func init() {
	rootCmd.AddCommand(networkCmd, pathsCmd, similarityCmd, citeCmd)
	networkCmd.Flags().IntVarP(&networkDepth, "depth", "d", 2, "Maximum BFS depth")
	pathsCmd.Flags().IntVarP(&pathsMaxDepth, "max-depth", "d", 0, "Maximum path length in edges (default: citation.max_depth)")
}

// withStore opens the configured store and runs fn against it.
func withStore(ctx context.Context, command string, fn func(context.Context, store.Store, *citation.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, command)

	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close record store")
		}
	}()

	engine := citation.NewEngine(st,
		citation.WithMaxDepth(cfg.Citation.MaxDepth),
		citation.WithLogger(logger),
	)
	return fn(ctx, st, engine)
}

// NetworkResult is the JSON output for the network command.
type NetworkResult struct {
	Root      string              `json:"root"`
	Depth     int                 `json:"depth"`
	EdgeCount int                 `json:"edge_count"`
	Adjacency map[string][]string `json:"adjacency"`
}

func runNetwork(cmd *cobra.Command, args []string) error {
	return withStore(cmd.Context(), "network", func(ctx context.Context, _ store.Store, engine *citation.Engine) error {
		graph, err := engine.BuildNetwork(ctx, args[0], networkDepth)
		if err != nil {
			return err
		}
		if humanOutput {
			for _, id := range graph.Nodes() {
				cites := graph.Cites(id)
				if len(cites) == 0 {
					outputHuman("%s\n", id)
					continue
				}
				outputHuman("%s -> %s\n", id, strings.Join(cites, ", "))
			}
			return nil
		}
		return outputJSON(NetworkResult{
			Root:      strings.TrimSpace(args[0]),
			Depth:     networkDepth,
			EdgeCount: graph.EdgeCount(),
			Adjacency: graph.Adjacency(),
		})
	})
}

// PathsResult is the JSON output for the paths command.
type PathsResult struct {
	From  string     `json:"from"`
	To    string     `json:"to"`
	Paths [][]string `json:"paths"`
}

func runPaths(cmd *cobra.Command, args []string) error {
	return withStore(cmd.Context(), "paths", func(ctx context.Context, _ store.Store, engine *citation.Engine) error {
		maxDepth := pathsMaxDepth
		if maxDepth <= 0 {
			maxDepth = engine.MaxDepth()
		}
		paths, err := engine.FindPaths(ctx, args[0], args[1], maxDepth)
		if err != nil {
			return err
		}
		if humanOutput {
			if len(paths) == 0 {
				outputHuman("no path from %s to %s within %d edges\n", args[0], args[1], maxDepth)
				return nil
			}
			for _, p := range paths {
				outputHuman("%s\n", strings.Join(p, " -> "))
			}
			return nil
		}
		return outputJSON(PathsResult{From: args[0], To: args[1], Paths: paths})
	})
}

// SimilarityResult is the JSON output for the similarity command.
type SimilarityResult struct {
	ID    string  `json:"id"`
	Other string  `json:"other"`
	Score float64 `json:"score"`
}

func runSimilarity(cmd *cobra.Command, args []string) error {
	return withStore(cmd.Context(), "similarity", func(ctx context.Context, _ store.Store, engine *citation.Engine) error {
		score, err := engine.Similarity(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if humanOutput {
			outputHuman("%.4f\n", score)
			return nil
		}
		return outputJSON(SimilarityResult{ID: args[0], Other: args[1], Score: score})
	})
}

// CiteResult is the JSON output for the cite command.
type CiteResult struct {
	CitingID string `json:"citing_id"`
	CitedID  string `json:"cited_id"`
	Created  bool   `json:"created"`
}

func runCite(cmd *cobra.Command, args []string) error {
	return withStore(cmd.Context(), "cite", func(ctx context.Context, st store.Store, _ *citation.Engine) error {
		created, err := st.AddCitation(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if humanOutput {
			if created {
				outputHuman("added %s -> %s\n", args[0], args[1])
			} else {
				outputHuman("%s -> %s already recorded\n", args[0], args[1])
			}
			return nil
		}
		return outputJSON(CiteResult{CitingID: args[0], CitedID: args[1], Created: created})
	})
}
