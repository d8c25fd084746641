package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/helixir/literature-harvester/internal/harvest"
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...any) {
	fmt.Printf(format, args...)
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
}

func printSummary(s *harvest.Summary) error {
	if !humanOutput {
		return outputJSON(s)
	}

	outputHuman("Harvest %s (%s)\n", s.RunID, s.State)
	outputHuman("  query:       %q\n", s.Query)
	outputHuman("  rounds:      %d in %s\n", s.Rounds, s.Duration().Round(time.Millisecond))
	outputHuman("  fetched:     %d\n", s.Fetched)
	outputHuman("  collected:   %d (total %d)\n", s.Collected, s.TotalCollected)
	outputHuman("  imported:    %d (total %d)\n", s.Imported, s.TotalImported)
	outputHuman("  existing:    %d\n", s.Existing)
	outputHuman("  duplicates:  %d\n", s.Duplicates)
	outputHuman("  irrelevant:  %d\n", s.Irrelevant)
	outputHuman("  failed:      %d\n", s.Failed)
	if s.SourceErrors > 0 {
		outputHuman("  source errors: %d\n", s.SourceErrors)
	}
	for _, source := range slices.Sorted(maps.Keys(s.SourceOffsets)) {
		outputHuman("  %-18s offset %d\n", source, s.SourceOffsets[source])
	}
	if s.Error != "" {
		outputHuman("  error: %s\n", s.Error)
	}
	return nil
}
