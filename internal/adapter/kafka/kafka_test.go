package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/observability"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func newTestWriter(fw *fakeWriter) (*Writer, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return &Writer{
		writer:  fw,
		metrics: m,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     func() time.Time { return time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC) },
	}, m
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	v := domain.Vacancy{
		ID:          1,
		ParcelID:    "P-1001",
		TriageScore: 72,
		BestUse:     domain.BestUseGarden,
	}

	msg, err := serializeToMessage(v, now)
	require.NoError(t, err)

	assert.Equal(t, []byte("P-1001"), msg.Key)
	assert.Contains(t, string(msg.Value), `"bestUse":"garden"`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "best_use", msg.Headers[0].Key)
	assert.Equal(t, []byte("garden"), msg.Headers[0].Value)
	assert.Equal(t, "triage_score", msg.Headers[1].Key)
	assert.Equal(t, []byte("72"), msg.Headers[1].Value)
	assert.Equal(t, "published_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[2].Value)
}

func TestLoadBatch(t *testing.T) {
	fw := &fakeWriter{}
	w, m := newTestWriter(fw)

	err := w.LoadBatch(context.Background(), []domain.Vacancy{{ParcelID: "a"}, {ParcelID: "b"}})
	require.NoError(t, err)

	require.Len(t, fw.msgs, 2)
	assert.Equal(t, []byte("a"), fw.msgs[0].Key)
	assert.Equal(t, []byte("b"), fw.msgs[1].Key)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesProduced))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PublishErrors))
}

func TestLoadBatch_Empty(t *testing.T) {
	fw := &fakeWriter{err: errors.New("must not be called")}
	w, _ := newTestWriter(fw)

	require.NoError(t, w.LoadBatch(context.Background(), nil))
}

func TestLoadBatch_WriteError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("leader not available")}
	w, m := newTestWriter(fw)

	err := w.LoadBatch(context.Background(), []domain.Vacancy{{ParcelID: "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishErrors))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.MessagesProduced))
}

func TestClose(t *testing.T) {
	fw := &fakeWriter{}
	w, _ := newTestWriter(fw)
	require.NoError(t, w.Close())
	assert.True(t, fw.closed)
}
