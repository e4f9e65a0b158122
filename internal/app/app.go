// Package app assembles the sync service from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/seoulnow/seoulnow-etl/internal/adapter/feed"
	kafkaadapter "github.com/seoulnow/seoulnow-etl/internal/adapter/kafka"
	"github.com/seoulnow/seoulnow-etl/internal/adapter/kma"
	"github.com/seoulnow/seoulnow-etl/internal/adapter/postgres"
	"github.com/seoulnow/seoulnow-etl/internal/adapter/seoul"
	"github.com/seoulnow/seoulnow-etl/internal/config"
	"github.com/seoulnow/seoulnow-etl/internal/domain"
	"github.com/seoulnow/seoulnow-etl/internal/observability"
	"github.com/seoulnow/seoulnow-etl/internal/pipeline"
)

// App holds the wired components and the resources that need closing.
type App struct {
	Store       *postgres.Store
	EventSync   *pipeline.EventSync
	WeatherSync *pipeline.WeatherSync

	notifier *kafkaadapter.Notifier
	logger   *slog.Logger
}

// New connects to the database, applies the schema, and wires both
// orchestrators.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*App, error) {
	store, err := postgres.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}

	clock := clockwork.NewRealClock()
	a := &App{Store: store, logger: logger}

	var notifier pipeline.Notifier
	if cfg.NotificationsEnabled() {
		a.notifier = kafkaadapter.NewNotifier(cfg, logger)
		notifier = a.notifier
		logger.Info("sync notifications enabled", "topic", cfg.KafkaSyncTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("sync notifications disabled")
	}

	engine := pipeline.NewUpsertEngine(store, store, logger, metrics)

	eventsFeed := feed.NewClient(feedOptions(cfg, domain.FeedEvents, clock, logger, metrics))
	a.EventSync = pipeline.NewEventSync(
		seoul.NewClient(eventsFeed, cfg.SeoulAPIBase, cfg.SeoulAPIKey, logger),
		engine, notifier, clock, logger, metrics,
	)

	weatherFeed := feed.NewClient(feedOptions(cfg, domain.FeedWeather, clock, logger, metrics))
	a.WeatherSync = pipeline.NewWeatherSync(
		kma.NewClient(weatherFeed, cfg.KMAAPIBase, cfg.KMAServiceKey),
		engine, cfg, notifier, clock, logger, metrics,
	)

	if !cfg.VerifySSL {
		logger.Warn("TLS verification disabled for upstream feeds")
	}
	return a, nil
}

func feedOptions(cfg *config.Config, name string, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) feed.Options {
	return feed.Options{
		Feed:         name,
		Timeout:      cfg.FeedTimeout,
		MaxRetries:   cfg.FeedMaxRetries,
		RetryBackoff: cfg.FeedRetryBackoff,
		VerifySSL:    cfg.VerifySSL,
		Clock:        clock,
		Metrics:      metrics,
		Logger:       logger,
	}
}

// Close releases the notifier and the database pool.
func (a *App) Close() {
	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			a.logger.Error("kafka notifier close error", "error", err)
		}
	}
	a.Store.Close()
}
