//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seoulnow/seoulnow-etl/internal/adapter/kafka"
	"github.com/seoulnow/seoulnow-etl/internal/config"
	"github.com/seoulnow/seoulnow-etl/internal/domain"
)

const testSyncTopic = "test-sync-runs"

func TestNotifier_PublishesSyncResult(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSyncTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaSyncTopic: testSyncTopic}
	notifier := kafka.NewNotifier(cfg, discardLogger())
	t.Cleanup(func() { _ = notifier.Close() })

	started := time.Date(2024, 4, 26, 15, 0, 0, 0, time.UTC)
	result := domain.SyncResult{
		Feed:        domain.FeedWeather,
		RunID:       "run-1",
		Fetched:     870,
		Transformed: 3,
		Processed:   3,
		Location:    "서울",
		StartedAt:   started,
		Duration:    1500 * time.Millisecond,
	}
	require.NoError(t, notifier.Notify(ctx, result))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSyncTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	msg, err := consumer.ReadMessage(ctx)
	require.NoError(t, err, "read sync topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "weather", string(msg.Key))
	assert.Equal(t, "weather", headers["feed"])
	assert.Equal(t, "run-1", headers["run_id"])
	assert.Equal(t, "2024-04-26T15:00:00Z", headers["started_at"])

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "서울", body["location"])
	assert.InDelta(t, 870, body["fetched"], 0)
	assert.InDelta(t, 1500, body["duration_ms"], 0)
}
