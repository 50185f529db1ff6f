package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the explorer.
type Metrics struct {
	// Upstream API metrics.
	UpstreamRequests *prometheus.CounterVec   // labels: api={categories,events,geocode}, outcome={success,error,empty}
	UpstreamDuration *prometheus.HistogramVec // labels: api={categories,events,geocode}

	// Geocoding metrics.
	GeocodeCache   *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeEnabled prometheus.Gauge

	// Session metrics.
	SessionsActive  prometheus.Gauge
	MarkersRendered prometheus.Histogram
	StaleResponses  prometheus.Counter
	MarkerMisses    prometheus.Counter

	// Layer-set feed metrics.
	FeedQueued        prometheus.Counter
	FeedRejected      prometheus.Counter
	FeedPublished     prometheus.Counter
	FeedPublishErrors prometheus.Counter
	FeedBatchSize     prometheus.Histogram
	FeedRunning       prometheus.Gauge
}

// NewMetrics creates and registers all explorer metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates all explorer metrics and registers them with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := newMetrics()

	reg.MustRegister(
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.GeocodeCache,
		m.GeocodeEnabled,
		m.SessionsActive,
		m.MarkersRendered,
		m.StaleResponses,
		m.MarkerMisses,
		m.FeedQueued,
		m.FeedRejected,
		m.FeedPublished,
		m.FeedPublishErrors,
		m.FeedBatchSize,
		m.FeedRunning,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eonet_explorer",
			Name:      "upstream_requests_total",
			Help:      "Upstream API requests by api and outcome.",
		}, []string{"api", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eonet_explorer",
			Name:      "upstream_duration_seconds",
			Help:      "Upstream API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"api"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eonet_explorer",
			Name:      "geocode_cache_total",
			Help:      "Reverse geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "eonet_explorer",
			Name:      "geocode_enabled",
			Help:      "1 when reverse geocoding is enabled, 0 otherwise.",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "eonet_explorer",
			Name:      "sessions_active",
			Help:      "Number of live explorer sessions.",
		}),
		MarkersRendered: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "eonet_explorer",
			Name:      "markers_rendered",
			Help:      "Number of markers placed per applied query.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}),
		StaleResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eonet_explorer",
			Name:      "stale_responses_total",
			Help:      "Event-list responses discarded because a newer query was issued.",
		}),
		MarkerMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eonet_explorer",
			Name:      "marker_misses_total",
			Help:      "Marker lookups that matched no rendered marker.",
		}),
		FeedQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eonet_explorer",
			Name:      "feed_queued_total",
			Help:      "Layer sets accepted into the feed queue.",
		}),
		FeedRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eonet_explorer",
			Name:      "feed_rejected_total",
			Help:      "Layer sets dropped because the feed queue was full or closed.",
		}),
		FeedPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eonet_explorer",
			Name:      "feed_published_total",
			Help:      "Layer sets written to the feed topic.",
		}),
		FeedPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eonet_explorer",
			Name:      "feed_publish_errors_total",
			Help:      "Failed batch writes to the feed topic.",
		}),
		FeedBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "eonet_explorer",
			Name:      "feed_batch_size",
			Help:      "Number of layer sets per feed write.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		FeedRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "eonet_explorer",
			Name:      "feed_running",
			Help:      "1 while the feed publisher loop is running.",
		}),
	}
}
