package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return NewMetricsWithRegistry("test_harvester", prometheus.NewRegistry())
}

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("test_literature_harvester_new")

	assert.NotNil(t, m.RoundsTotal)
	assert.NotNil(t, m.HarvestState)
	assert.NotNil(t, m.PapersFetched)
	assert.NotNil(t, m.PapersImported)
	assert.NotNil(t, m.SourceFetchErrors)
	assert.NotNil(t, m.CheckpointWrites)
	assert.NotNil(t, m.CitationQueryDuration)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordRound()
		m.SetHarvestState(2)
		m.RecordHarvestFinished("completed")
		m.RecordSourceFetch("pubmed", 3, 0.1, false)
		m.RecordFiltered(1, 2, 3)
		m.RecordPaperImported()
		m.RecordPaperExisting()
		m.RecordStoreWriteError()
		m.RecordCheckpointWrite(true)
		m.RecordEventPublished(false)
		m.RecordCitationQuery("network", 0.01)
	})
}

func TestRecordRound(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRound()
	m.RecordRound()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.RoundsTotal))
}

func TestHarvestState(t *testing.T) {
	m := newTestMetrics(t)

	m.SetHarvestState(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.HarvestState))

	m.RecordHarvestFinished("completed")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HarvestsFinished.WithLabelValues("completed")))
}

func TestRecordSourceFetch(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordSourceFetch("pubmed", 20, 1.5, false)
	m.RecordSourceFetch("pubmed", 0, 30, true)

	assert.Equal(t, float64(20), testutil.ToFloat64(m.PapersFetched.WithLabelValues("pubmed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceFetchErrors.WithLabelValues("pubmed")))

	count, err := getHistogramSampleCount(m.SourceFetchDuration)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestRecordFiltered(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordFiltered(5, 2, 7)
	assert.Equal(t, float64(5), testutil.ToFloat64(m.PapersCollected))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.PapersDuplicate))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.PapersIrrelevant))
}

func TestRecordStoreOutcomes(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordPaperImported()
	m.RecordPaperImported()
	m.RecordPaperExisting()
	m.RecordStoreWriteError()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.PapersImported))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PapersExisting))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StoreWriteErrors))
}

func TestRecordCheckpointWrite(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordCheckpointWrite(false)
	m.RecordCheckpointWrite(false)
	m.RecordCheckpointWrite(true)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.CheckpointWrites.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CheckpointWrites.WithLabelValues("failure")))
}

func TestRecordEventPublished(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordEventPublished(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsPublished.WithLabelValues("failure")))
}

func TestRecordCitationQuery(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordCitationQuery("paths", 0.02)
	count, err := getHistogramSampleCount(m.CitationQueryDuration)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

// getHistogramSampleCount sums sample counts across every series of c.
func getHistogramSampleCount(c prometheus.Collector) (uint64, error) {
	ch := make(chan prometheus.Metric, 16)
	go func() {
		c.Collect(ch)
		close(ch)
	}()

	var total uint64
	for m := range ch {
		var metric dto.Metric
		if err := m.Write(&metric); err != nil {
			return 0, err
		}
		total += metric.GetHistogram().GetSampleCount()
	}
	return total, nil
}
