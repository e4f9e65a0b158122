package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/seoulnow/seoulnow-etl/internal/domain"
	"github.com/seoulnow/seoulnow-etl/internal/observability"
)

// EventChunkSize bounds how many events go into one store transaction.
const EventChunkSize = 500

// EventStore upserts events by ID in a single transaction per call. It returns
// the number of rows affected, or a negative count when the driver cannot tell.
type EventStore interface {
	UpsertEvents(ctx context.Context, events []domain.Event) (int, error)
}

// WeatherStore upserts weather days by (date, location) in a single transaction.
// Count semantics match EventStore.
type WeatherStore interface {
	UpsertWeather(ctx context.Context, days []domain.WeatherDay) (int, error)
}

// UpsertEngine applies normalized batches to the stores.
type UpsertEngine struct {
	events    EventStore
	weather   WeatherStore
	chunkSize int
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewUpsertEngine creates an engine writing events in chunks of EventChunkSize.
func NewUpsertEngine(events EventStore, weather WeatherStore, logger *slog.Logger, metrics *observability.Metrics) *UpsertEngine {
	return &UpsertEngine{
		events:    events,
		weather:   weather,
		chunkSize: EventChunkSize,
		logger:    logger,
		metrics:   metrics,
	}
}

// Events deduplicates by ID (the last occurrence wins), then upserts in chunks,
// one transaction each, in order. Chunks committed before a failure stay
// committed. The result is the sum of per-chunk counts.
func (u *UpsertEngine) Events(ctx context.Context, events []domain.Event) (int, error) {
	events = dedupeEvents(events)

	total := 0
	for start := 0; start < len(events); start += u.chunkSize {
		if err := ctx.Err(); err != nil {
			return total, domain.NewStoreError(domain.FeedEvents, "upsert events", err)
		}
		end := min(start+u.chunkSize, len(events))
		chunk := events[start:end]

		n, err := u.events.UpsertEvents(ctx, chunk)
		if err != nil {
			return total, domain.NewStoreError(domain.FeedEvents,
				fmt.Sprintf("upsert events %d-%d", start, end-1), err)
		}
		u.metrics.UpsertChunks.WithLabelValues("events").Inc()
		total += affected(n, len(chunk))
		u.logger.Debug("event chunk upserted", "offset", start, "size", len(chunk), "affected", n)
	}

	u.metrics.RowsUpserted.WithLabelValues("events").Add(float64(total))
	return total, nil
}

// Weather deduplicates by (date, location), last wins, and upserts the batch in
// one transaction.
func (u *UpsertEngine) Weather(ctx context.Context, days []domain.WeatherDay) (int, error) {
	days = dedupeWeather(days)
	if len(days) == 0 {
		return 0, nil
	}

	n, err := u.weather.UpsertWeather(ctx, days)
	if err != nil {
		return 0, domain.NewStoreError(domain.FeedWeather, "upsert weather", err)
	}
	u.metrics.UpsertChunks.WithLabelValues("weather").Inc()

	total := affected(n, len(days))
	u.metrics.RowsUpserted.WithLabelValues("weather").Add(float64(total))
	return total, nil
}

func affected(n, submitted int) int {
	if n < 0 {
		return submitted
	}
	return n
}

// dedupeEvents keeps first-seen order with the last-seen value. Postgres rejects
// an INSERT ... ON CONFLICT statement that touches the same row twice.
func dedupeEvents(events []domain.Event) []domain.Event {
	pos := make(map[int64]int, len(events))
	out := make([]domain.Event, 0, len(events))
	for _, ev := range events {
		if i, ok := pos[ev.ID]; ok {
			out[i] = ev
			continue
		}
		pos[ev.ID] = len(out)
		out = append(out, ev)
	}
	return out
}

type weatherKey struct {
	date     string
	location string
}

func dedupeWeather(days []domain.WeatherDay) []domain.WeatherDay {
	pos := make(map[weatherKey]int, len(days))
	out := make([]domain.WeatherDay, 0, len(days))
	for _, d := range days {
		k := weatherKey{date: d.Date.UTC().Format("2006-01-02"), location: d.Location}
		if i, ok := pos[k]; ok {
			out[i] = d
			continue
		}
		pos[k] = len(out)
		out = append(out, d)
	}
	return out
}
