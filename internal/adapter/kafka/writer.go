// Package kafka publishes normalized weather records for downstream
// consumers. The sink is optional; the pipeline runs the same without it.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/vigimeteo/meteo-etl/internal/domain"
)

// Record type header values.
const (
	recordTypeCurrent    = "current"
	recordTypeHourly     = "hourly"
	recordTypeDaily      = "daily"
	recordTypeHistorical = "historical"
)

// Writer produces export messages to a Kafka topic. It implements
// pipeline.Exporter.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the export topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Export publishes every record in the batch in a single WriteMessages call.
// Each record becomes its own message keyed by location and timestamp, so a
// re-ingested batch overwrites rather than duplicates on compacted topics.
func (w *Writer) Export(ctx context.Context, batch domain.ExportBatch) error {
	msgs, err := batchMessages(batch)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write export batch for %s: %w", batch.LocationSlug, err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func batchMessages(batch domain.ExportBatch) ([]kafkago.Message, error) {
	size := len(batch.Hourly) + len(batch.Daily) + len(batch.Historical)
	if batch.Current != nil {
		size++
	}
	msgs := make([]kafkago.Message, 0, size)

	if batch.Current != nil {
		msg, err := recordMessage(batch, recordTypeCurrent,
			recordKey(batch.LocationSlug, batch.Current.ObservedAt.Format(domain.TimeLayout)), batch.Current)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	for i := range batch.Hourly {
		rec := &batch.Hourly[i]
		msg, err := recordMessage(batch, recordTypeHourly,
			recordKey(rec.LocationSlug, rec.Timestamp.Format(domain.TimeLayout)), rec)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	for i := range batch.Daily {
		rec := &batch.Daily[i]
		msg, err := recordMessage(batch, recordTypeDaily,
			recordKey(rec.LocationSlug, rec.Date.Format(domain.DateLayout)), rec)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	for i := range batch.Historical {
		rec := &batch.Historical[i]
		msg, err := recordMessage(batch, recordTypeHistorical,
			recordKey(rec.LocationSlug, rec.Date.Format(domain.DateLayout)), rec)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// recordMessage marshals one record into a Kafka message.
func recordMessage(batch domain.ExportBatch, recordType, key string, record any) (kafkago.Message, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s record: %w", recordType, err)
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "record_type", Value: []byte(recordType)},
			{Key: "ingested_at", Value: []byte(batch.IngestedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}

func recordKey(slug, stamp string) string {
	return slug + "|" + stamp
}
