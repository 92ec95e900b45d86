package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/civic-data-etl/internal/config"
	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/observability"
)

// messageWriter is the subset of *kafkago.Writer the Writer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces triaged vacancies to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer  messageWriter
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, metrics: metrics, logger: logger, now: time.Now}
}

// LoadBatch serializes and publishes multiple vacancies to the sink topic
// in a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, vacancies []domain.Vacancy) error {
	if len(vacancies) == 0 {
		return nil
	}
	publishedAt := w.now()
	msgs := make([]kafkago.Message, len(vacancies))
	for i := range vacancies {
		msg, err := serializeToMessage(vacancies[i], publishedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		w.metrics.PublishErrors.Inc()
		return fmt.Errorf("publish %d vacancies: %w", len(msgs), err)
	}
	w.metrics.MessagesProduced.Add(float64(len(msgs)))
	w.logger.Debug("published batch", "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Vacancy into a Kafka message keyed by
// parcel so updates to one parcel land on one partition.
func serializeToMessage(v domain.Vacancy, publishedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize vacancy %s: %w", v.ParcelID, err)
	}
	return kafkago.Message{
		Key:   []byte(v.ParcelID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "best_use", Value: []byte(v.BestUse)},
			{Key: "triage_score", Value: []byte(strconv.Itoa(v.TriageScore))},
			{Key: "published_at", Value: []byte(publishedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
