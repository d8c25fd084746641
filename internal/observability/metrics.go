package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the literature harvester.
// A nil *Metrics is a no-op.
type Metrics struct {
	// RoundsTotal counts executed harvest rounds.
	RoundsTotal prometheus.Counter

	// HarvestsFinished counts finished runs, labeled by final state.
	HarvestsFinished *prometheus.CounterVec

	// HarvestState is the numeric state of the current run.
	HarvestState prometheus.Gauge

	// PapersFetched counts records returned by catalogs, labeled by source.
	PapersFetched *prometheus.CounterVec

	// PapersCollected counts relevant non-duplicate records.
	PapersCollected prometheus.Counter

	// PapersImported counts records newly written to the record store.
	PapersImported prometheus.Counter

	// PapersExisting counts records the store already held.
	PapersExisting prometheus.Counter

	// PapersDuplicate counts records rejected by fuzzy dedup.
	PapersDuplicate prometheus.Counter

	// PapersIrrelevant counts records rejected by the relevance filter.
	PapersIrrelevant prometheus.Counter

	// SourceFetchErrors counts failed page fetches, labeled by source.
	SourceFetchErrors *prometheus.CounterVec

	// SourceFetchDuration observes page fetch duration in seconds, labeled by source.
	SourceFetchDuration *prometheus.HistogramVec

	// StoreWriteErrors counts failed record store writes.
	StoreWriteErrors prometheus.Counter

	// CheckpointWrites counts checkpoint writes, labeled by outcome.
	CheckpointWrites *prometheus.CounterVec

	// EventsPublished counts paper-imported events, labeled by outcome.
	EventsPublished *prometheus.CounterVec

	// CitationQueryDuration observes citation query duration in seconds, labeled by operation.
	CitationQueryDuration *prometheus.HistogramVec
}

// NewMetrics creates a Metrics instance registered with the default
// Prometheus registry. The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a Metrics instance registered with reg.
func NewMetricsWithRegistry(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Rounds
		RoundsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Total number of harvest rounds executed",
		}),
		HarvestsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "harvests_finished_total",
			Help:      "Total number of harvest runs finished by final state",
		}, []string{"state"}),
		HarvestState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "harvest_state",
			Help:      "Current harvest coordinator state",
		}),

		// Papers
		PapersFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_fetched_total",
			Help:      "Total number of records returned by catalogs by source",
		}, []string{"source"}),
		PapersCollected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_collected_total",
			Help:      "Total number of relevant non-duplicate records",
		}),
		PapersImported: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_imported_total",
			Help:      "Total number of records written to the record store",
		}),
		PapersExisting: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_existing_total",
			Help:      "Total number of records already present in the record store",
		}),
		PapersDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_duplicate_total",
			Help:      "Total number of records rejected as fuzzy duplicates",
		}),
		PapersIrrelevant: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_irrelevant_total",
			Help:      "Total number of records rejected by the relevance filter",
		}),

		// Sources
		SourceFetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetch_errors_total",
			Help:      "Total number of failed page fetches by source",
		}, []string{"source"}),
		SourceFetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Duration of page fetches in seconds by source",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),

		// Store and checkpoint
		StoreWriteErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_write_errors_total",
			Help:      "Total number of failed record store writes",
		}),
		CheckpointWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoint_writes_total",
			Help:      "Total number of checkpoint writes by outcome",
		}, []string{"outcome"}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of paper-imported events by outcome",
		}, []string{"outcome"}),

		// Citation
		CitationQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "citation_query_duration_seconds",
			Help:      "Duration of citation graph queries in seconds by operation",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"operation"}),
	}
}

func outcome(failed bool) string {
	if failed {
		return "failure"
	}
	return "success"
}

// RecordRound records an executed round.
func (m *Metrics) RecordRound() {
	if m == nil {
		return
	}
	m.RoundsTotal.Inc()
}

// SetHarvestState records the coordinator state.
func (m *Metrics) SetHarvestState(state int) {
	if m == nil {
		return
	}
	m.HarvestState.Set(float64(state))
}

// RecordHarvestFinished records a finished run by its final state name.
func (m *Metrics) RecordHarvestFinished(state string) {
	if m == nil {
		return
	}
	m.HarvestsFinished.WithLabelValues(state).Inc()
}

// RecordSourceFetch records one page fetch.
func (m *Metrics) RecordSourceFetch(source string, papers int, durationSeconds float64, failed bool) {
	if m == nil {
		return
	}
	m.SourceFetchDuration.WithLabelValues(source).Observe(durationSeconds)
	if failed {
		m.SourceFetchErrors.WithLabelValues(source).Inc()
		return
	}
	m.PapersFetched.WithLabelValues(source).Add(float64(papers))
}

// RecordFiltered records the outcome of filtering and dedup for one round.
func (m *Metrics) RecordFiltered(collected, duplicates, irrelevant int) {
	if m == nil {
		return
	}
	m.PapersCollected.Add(float64(collected))
	m.PapersDuplicate.Add(float64(duplicates))
	m.PapersIrrelevant.Add(float64(irrelevant))
}

// RecordPaperImported records a newly stored paper.
func (m *Metrics) RecordPaperImported() {
	if m == nil {
		return
	}
	m.PapersImported.Inc()
}

// RecordPaperExisting records a paper the store already held.
func (m *Metrics) RecordPaperExisting() {
	if m == nil {
		return
	}
	m.PapersExisting.Inc()
}

// RecordStoreWriteError records a failed store write.
func (m *Metrics) RecordStoreWriteError() {
	if m == nil {
		return
	}
	m.StoreWriteErrors.Inc()
}

// RecordCheckpointWrite records a checkpoint write.
func (m *Metrics) RecordCheckpointWrite(failed bool) {
	if m == nil {
		return
	}
	m.CheckpointWrites.WithLabelValues(outcome(failed)).Inc()
}

// RecordEventPublished records a paper-imported event publish attempt.
func (m *Metrics) RecordEventPublished(failed bool) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(outcome(failed)).Inc()
}

// RecordCitationQuery records a citation graph query.
func (m *Metrics) RecordCitationQuery(operation string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.CitationQueryDuration.WithLabelValues(operation).Observe(durationSeconds)
}
