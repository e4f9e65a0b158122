package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/seoulnow/seoulnow-etl/internal/domain"
	"github.com/seoulnow/seoulnow-etl/internal/observability"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

// memStore is an in-memory EventStore and WeatherStore with upsert semantics:
// created_at and the weather surrogate id survive updates.
type memStore struct {
	mu         sync.Mutex
	events     map[int64]domain.Event
	weather    map[string]storedWeather
	chunks     []int
	nextID     int
	failChunk  int // 1-based chunk index that fails; 0 never fails
	countUnset bool
}

type storedWeather struct {
	id  int
	day domain.WeatherDay
}

func newMemStore() *memStore {
	return &memStore{
		events:  make(map[int64]domain.Event),
		weather: make(map[string]storedWeather),
	}
}

var errStoreDown = errors.New("connection refused")

func (s *memStore) UpsertEvents(_ context.Context, events []domain.Event) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failChunk == len(s.chunks)+1 {
		return 0, errStoreDown
	}
	s.chunks = append(s.chunks, len(events))

	for _, ev := range events {
		if prev, ok := s.events[ev.ID]; ok {
			ev.CreatedAt = prev.CreatedAt
		}
		s.events[ev.ID] = ev
	}
	if s.countUnset {
		return -1, nil
	}
	return len(events), nil
}

func (s *memStore) UpsertWeather(_ context.Context, days []domain.WeatherDay) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failChunk == len(s.chunks)+1 {
		return 0, errStoreDown
	}
	s.chunks = append(s.chunks, len(days))

	for _, d := range days {
		key := d.Date.Format(time.DateOnly) + "|" + d.Location
		row, ok := s.weather[key]
		if !ok {
			s.nextID++
			row.id = s.nextID
		}
		row.day = d
		s.weather[key] = row
	}
	return len(days), nil
}

func (s *memStore) weatherRow(date, location string) (storedWeather, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.weather[date+"|"+location]
	return row, ok
}

type fakeEventFetcher struct {
	records []domain.RawRecord
	err     error
	calls   int
}

func (f *fakeEventFetcher) FetchEvents(context.Context) ([]domain.RawRecord, error) {
	f.calls++
	return f.records, f.err
}

type fakeForecastFetcher struct {
	samples []domain.ForecastSample
	err     error
	got     []domain.ForecastRequest
}

func (f *fakeForecastFetcher) FetchForecast(_ context.Context, req domain.ForecastRequest) ([]domain.ForecastSample, error) {
	f.got = append(f.got, req)
	return f.samples, f.err
}

type recordingNotifier struct {
	results []domain.SyncResult
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, res domain.SyncResult) error {
	n.results = append(n.results, res)
	return n.err
}
