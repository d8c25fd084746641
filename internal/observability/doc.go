// Package observability provides logging and metrics support for the
// literature harvester.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger = observability.WithRunContext(logger, runID, query)
//	logger.Info().Int("round", 3).Msg("round finished")
//
// # Metrics
//
//	metrics := observability.NewMetrics("literature_harvester")
//	metrics.RecordSourceFetch("pubmed", 20, 1.2, false)
//
// A nil *Metrics is valid and records nothing, so components take it as
// an optional dependency.
//
// # Standard Fields
//
//   - run_id: harvest run identifier
//   - query: harvest search string
//   - source: catalog (pubmed, arxiv, openalex, semantic_scholar)
//   - offset: catalog offset of a page
//   - paper_id: paper identifier
//   - request_id: HTTP request identifier
package observability
