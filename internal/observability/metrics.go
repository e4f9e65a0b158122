package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "seoulnow_etl"

// Metrics holds the Prometheus collectors for sync runs and feed traffic.
type Metrics struct {
	SyncRuns        *prometheus.CounterVec   // labels: feed={events,weather}, outcome={success,error}
	SyncDuration    *prometheus.HistogramVec // labels: feed
	RecordsFetched  *prometheus.CounterVec   // labels: feed
	RecordsSkipped  *prometheus.CounterVec   // labels: feed
	RowsUpserted    *prometheus.CounterVec   // labels: table={events,weather}
	UpsertChunks    *prometheus.CounterVec   // labels: table
	SyncInProgress  *prometheus.GaugeVec     // labels: feed
	LastSyncSuccess *prometheus.GaugeVec     // labels: feed; unix seconds

	// Upstream feed traffic.
	FeedRequests        *prometheus.CounterVec   // labels: feed, outcome={success,network,shape}
	FeedRequestDuration *prometheus.HistogramVec // labels: feed
}

func newMetrics() *Metrics {
	return &Metrics{
		SyncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Sync runs by feed and outcome.",
		}, []string{"feed", "outcome"}),
		SyncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of a complete fetch-normalize-upsert run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"feed"}),
		RecordsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Raw records and forecast samples read from upstream feeds.",
		}, []string{"feed"}),
		RecordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Records dropped during normalization or aggregation.",
		}, []string{"feed"}),
		RowsUpserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_upserted_total",
			Help:      "Rows inserted or updated by table.",
		}, []string{"table"}),
		UpsertChunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upsert_chunks_total",
			Help:      "Store transactions issued by the upsert engine.",
		}, []string{"table"}),
		SyncInProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_in_progress",
			Help:      "1 while a sync run for the feed is active.",
		}, []string{"feed"}),
		LastSyncSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sync_success_timestamp_seconds",
			Help:      "Unix time of the last successful run per feed.",
		}, []string{"feed"}),
		FeedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_requests_total",
			Help:      "Upstream HTTP requests by feed and outcome.",
		}, []string{"feed", "outcome"}),
		FeedRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_request_duration_seconds",
			Help:      "Upstream HTTP request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"feed"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.SyncRuns,
		m.SyncDuration,
		m.RecordsFetched,
		m.RecordsSkipped,
		m.RowsUpserted,
		m.UpsertChunks,
		m.SyncInProgress,
		m.LastSyncSuccess,
		m.FeedRequests,
		m.FeedRequestDuration,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
