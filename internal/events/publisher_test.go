package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/literature-harvester/internal/config"
	"github.com/helixir/literature-harvester/internal/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testEvent() domain.PaperImportedEvent {
	p := &domain.Paper{
		ID:                 uuid.New(),
		CanonicalID:        "doi:10.1/abc",
		Title:              "Graphite brush anodes",
		Source:             domain.SourceTypeOpenAlex,
		HasPerformanceData: true,
	}
	return domain.NewPaperImportedEvent("run-1", p, time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC))
}

func TestKafkaPublisher_PublishPaperImported(t *testing.T) {
	w := &fakeWriter{}
	pub := newPublisher(w, "events.test", zerolog.Nop())
	event := testEvent()

	require.NoError(t, pub.PublishPaperImported(context.Background(), event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "doi:10.1/abc", string(msg.Key))
	assert.Equal(t, event.ImportedAt, msg.Time)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, domain.EventTypePaperImported, headers["event_type"])
	assert.Equal(t, ServiceName, headers["source"])
	assert.NotEmpty(t, headers["event_id"])

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, headers["event_id"], env.EventID)
	assert.Equal(t, "doi:10.1/abc", env.AggregateID)
	assert.Equal(t, AggregateTypePaper, env.AggregateType)
	assert.Equal(t, "run-1", env.CorrelationID)

	var payload domain.PaperImportedEvent
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, event.PaperID, payload.PaperID)
	assert.Equal(t, event.Title, payload.Title)
	assert.True(t, payload.HasPerformanceData)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	boom := errors.New("leader not available")
	pub := newPublisher(&fakeWriter{err: boom}, "events.test", zerolog.Nop())

	err := pub.PublishPaperImported(context.Background(), testEvent())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), domain.EventTypePaperImported)
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	pub := newPublisher(w, "events.test", zerolog.Nop())

	require.NoError(t, pub.Close())
	assert.True(t, w.closed)
}

func TestNewEnvelope_Validation(t *testing.T) {
	_, err := NewEnvelope("", "agg", "", time.Now(), nil)
	assert.Error(t, err)

	_, err = NewEnvelope("paper.imported", "", "", time.Now(), nil)
	assert.Error(t, err)

	_, err = NewEnvelope("paper.imported", "agg", "", time.Now(), func() {})
	assert.Error(t, err)
}

func TestNewKafkaPublisher(t *testing.T) {
	pub := NewKafkaPublisher(config.KafkaConfig{
		Brokers: []string{"localhost:9092"},
		Topic:   "events.literature_harvester.papers",
	}, zerolog.Nop())

	w, ok := pub.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "events.literature_harvester.papers", w.Topic)
	assert.Equal(t, defaultBatchTimeout, w.BatchTimeout)
	assert.NoError(t, pub.Close())
}

func TestNoopPublisher(t *testing.T) {
	var pub NoopPublisher
	assert.NoError(t, pub.PublishPaperImported(context.Background(), testEvent()))
	assert.NoError(t, pub.Close())
}
