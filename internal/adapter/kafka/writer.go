package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/seoulnow/seoulnow-etl/internal/config"
	"github.com/seoulnow/seoulnow-etl/internal/domain"
)

// Notifier publishes one summary message per successful sync run.
// It implements pipeline.Notifier.
type Notifier struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the configured sync topic.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaSyncTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
	return &Notifier{writer: w, logger: logger}
}

// Notify serializes the result and writes it keyed by feed, so runs of one
// feed stay ordered within a partition.
func (n *Notifier) Notify(ctx context.Context, result domain.SyncResult) error {
	msg, err := serializeToMessage(result)
	if err != nil {
		return err
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s sync result: %w", result.Feed, err)
	}
	n.logger.Debug("sync result published", "feed", result.Feed, "run_id", result.RunID, "topic", n.writer.Topic)
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// syncMessage is the wire form of a sync result.
type syncMessage struct {
	domain.SyncResult
	DurationMS int64 `json:"duration_ms"`
}

// serializeToMessage marshals a SyncResult into a Kafka message.
func serializeToMessage(result domain.SyncResult) (kafkago.Message, error) {
	data, err := json.Marshal(syncMessage{SyncResult: result, DurationMS: result.Duration.Milliseconds()})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize sync result: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(result.Feed),
		Value: data,
		Time:  result.StartedAt,
		Headers: []kafkago.Header{
			{Key: "feed", Value: []byte(result.Feed)},
			{Key: "run_id", Value: []byte(result.RunID)},
			{Key: "started_at", Value: []byte(result.StartedAt.Format(time.RFC3339))},
		},
	}, nil
}
