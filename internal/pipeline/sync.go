package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/seoulnow/seoulnow-etl/internal/config"
	"github.com/seoulnow/seoulnow-etl/internal/domain"
	"github.com/seoulnow/seoulnow-etl/internal/observability"
)

// EventFetcher reads the complete events catalogue.
type EventFetcher interface {
	FetchEvents(ctx context.Context) ([]domain.RawRecord, error)
}

// ForecastFetcher reads one forecast issuance for one grid cell.
type ForecastFetcher interface {
	FetchForecast(ctx context.Context, req domain.ForecastRequest) ([]domain.ForecastSample, error)
}

// Notifier publishes the summary of a successful run.
type Notifier interface {
	Notify(ctx context.Context, result domain.SyncResult) error
}

// LocationResolver maps a location name to its forecast grid cell. An empty
// name resolves to the default location.
type LocationResolver interface {
	Location(name string) (config.GridCell, bool)
}

// reporter carries the bookkeeping shared by both orchestrators.
type reporter struct {
	clock    clockwork.Clock
	notifier Notifier
	logger   *slog.Logger
	metrics  *observability.Metrics
}

func (r *reporter) begin(feed string) domain.SyncResult {
	r.metrics.SyncInProgress.WithLabelValues(feed).Set(1)
	return domain.SyncResult{
		Feed:      feed,
		RunID:     uuid.NewString(),
		StartedAt: r.clock.Now().UTC(),
	}
}

func (r *reporter) fetched(res *domain.SyncResult, n int) {
	res.Fetched = n
	r.metrics.RecordsFetched.WithLabelValues(res.Feed).Add(float64(n))
}

func (r *reporter) skipped(res *domain.SyncResult, n int) {
	res.Skipped = n
	r.metrics.RecordsSkipped.WithLabelValues(res.Feed).Add(float64(n))
}

func (r *reporter) end(res *domain.SyncResult, outcome string) {
	res.Duration = r.clock.Since(res.StartedAt)
	r.metrics.SyncInProgress.WithLabelValues(res.Feed).Set(0)
	r.metrics.SyncRuns.WithLabelValues(res.Feed, outcome).Inc()
	r.metrics.SyncDuration.WithLabelValues(res.Feed).Observe(res.Duration.Seconds())
}

func (r *reporter) fail(res domain.SyncResult, err error) (domain.SyncResult, error) {
	r.end(&res, "error")
	r.logger.Error("sync failed",
		"feed", res.Feed,
		"run_id", res.RunID,
		"fetched", res.Fetched,
		"processed", res.Processed,
		"error", err,
	)
	return res, err
}

func (r *reporter) succeed(ctx context.Context, res domain.SyncResult) (domain.SyncResult, error) {
	r.end(&res, "success")
	r.metrics.LastSyncSuccess.WithLabelValues(res.Feed).Set(float64(r.clock.Now().Unix()))
	r.logger.Info("sync complete",
		"feed", res.Feed,
		"run_id", res.RunID,
		"location", res.Location,
		"fetched", res.Fetched,
		"transformed", res.Transformed,
		"skipped", res.Skipped,
		"processed", res.Processed,
		"duration", res.Duration,
	)

	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, res); err != nil {
			r.logger.Warn("sync notification failed", "feed", res.Feed, "run_id", res.RunID, "error", err)
		}
	}
	return res, nil
}

// EventSync runs fetch, normalize, and upsert for the events feed.
type EventSync struct {
	reporter
	fetcher EventFetcher
	engine  *UpsertEngine
}

// NewEventSync wires an events orchestrator. notifier may be nil.
func NewEventSync(fetcher EventFetcher, engine *UpsertEngine, notifier Notifier, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *EventSync {
	return &EventSync{
		reporter: reporter{clock: clock, notifier: notifier, logger: logger, metrics: metrics},
		fetcher:  fetcher,
		engine:   engine,
	}
}

// Run performs one complete events sync. Records that fail normalization are
// skipped; any other failure aborts the run and is returned as a *domain.SyncError.
// Chunks committed before a store failure are not rolled back.
func (s *EventSync) Run(ctx context.Context) (domain.SyncResult, error) {
	res := s.begin(domain.FeedEvents)
	s.logger.Info("sync started", "feed", res.Feed, "run_id", res.RunID)

	recs, err := s.fetcher.FetchEvents(ctx)
	if err != nil {
		return s.fail(res, err)
	}
	s.fetched(&res, len(recs))

	events, skipped := domain.NormalizeEvents(recs, res.StartedAt)
	for _, err := range skipped {
		s.logger.Warn("skipping event record", "run_id", res.RunID, "error", err)
	}
	res.Transformed = len(events)
	s.skipped(&res, len(skipped))

	res.Processed, err = s.engine.Events(ctx, events)
	if err != nil {
		return s.fail(res, err)
	}
	return s.succeed(ctx, res)
}

// WeatherRequest overrides the defaults of a weather sync. Zero values mean
// "use the default".
type WeatherRequest struct {
	Location  string
	NX, NY    *int
	Reference *time.Time // selects the issuance; defaults to now
}

// WeatherSync runs fetch, aggregate, and upsert for the forecast feed.
type WeatherSync struct {
	reporter
	fetcher   ForecastFetcher
	engine    *UpsertEngine
	locations LocationResolver
}

// NewWeatherSync wires a weather orchestrator. notifier may be nil.
func NewWeatherSync(fetcher ForecastFetcher, engine *UpsertEngine, locations LocationResolver, notifier Notifier, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *WeatherSync {
	return &WeatherSync{
		reporter:  reporter{clock: clock, notifier: notifier, logger: logger, metrics: metrics},
		fetcher:   fetcher,
		engine:    engine,
		locations: locations,
	}
}

// Run performs one weather sync for the requested location and issuance.
func (s *WeatherSync) Run(ctx context.Context, req WeatherRequest) (domain.SyncResult, error) {
	res := s.begin(domain.FeedWeather)

	location, fr := s.resolve(req)
	res.Location = location
	s.logger.Info("sync started",
		"feed", res.Feed,
		"run_id", res.RunID,
		"location", location,
		"base_date", fr.BaseDate,
		"base_time", fr.BaseTime,
		"nx", fr.NX,
		"ny", fr.NY,
	)

	samples, err := s.fetcher.FetchForecast(ctx, fr)
	if err != nil {
		return s.fail(res, err)
	}
	s.fetched(&res, len(samples))

	days, skipped := domain.AggregateForecast(samples, location)
	res.Transformed = len(days)
	s.skipped(&res, skipped)

	res.Processed, err = s.engine.Weather(ctx, days)
	if err != nil {
		return s.fail(res, err)
	}
	return s.succeed(ctx, res)
}

// resolve fills in defaults. A named location known to the resolver supplies
// its own grid cell; an unknown name keeps the default cell.
func (s *WeatherSync) resolve(req WeatherRequest) (string, domain.ForecastRequest) {
	def, _ := s.locations.Location("")

	location := req.Location
	if location == "" {
		location = def.Name
	}
	cell, ok := s.locations.Location(location)
	if !ok {
		s.logger.Debug("no grid cell for location, using default", "location", location, "default", def.Name)
		cell = def
	}

	nx, ny := cell.NX, cell.NY
	if req.NX != nil {
		nx = *req.NX
	}
	if req.NY != nil {
		ny = *req.NY
	}

	ref := s.clock.Now()
	if req.Reference != nil {
		ref = *req.Reference
	}
	iss := domain.SelectIssuance(ref)

	return location, domain.ForecastRequest{BaseDate: iss.BaseDate, BaseTime: iss.BaseTime, NX: nx, NY: ny}
}
