package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the tracker.
type Metrics struct {
	SensorEventsConsumed *prometheus.CounterVec // labels: kind={visit,fixes,permission,unknown}
	SensorDecodeErrors   prometheus.Counter
	FeedRunning          prometheus.Gauge

	// Visit lifecycle metrics.
	VisitsStarted  prometheus.Counter
	VisitsEnded    prometheus.Counter
	PointsRecorded prometheus.Counter
	PointsRejected prometheus.Counter
	UpdatesOut     prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,empty,error}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeDuration prometheus.Histogram

	// TrackingMode is 0 for disabled, 1 for visit tracking, 2 for continuous.
	TrackingMode prometheus.Gauge
}

// NewMetrics creates and registers all tracker metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.SensorEventsConsumed,
		m.SensorDecodeErrors,
		m.FeedRunning,
		m.VisitsStarted,
		m.VisitsEnded,
		m.PointsRecorded,
		m.PointsRejected,
		m.UpdatesOut,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeDuration,
		m.TrackingMode,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SensorEventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "visit_tracker",
			Name:      "sensor_events_consumed_total",
			Help:      "Sensor events read from the source topic by kind.",
		}, []string{"kind"}),
		SensorDecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visit_tracker",
			Name:      "sensor_decode_errors_total",
			Help:      "Sensor messages that failed to decode and were skipped.",
		}),
		FeedRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "visit_tracker",
			Name:      "feed_running",
			Help:      "1 when the sensor feed is active, 0 when shut down.",
		}),
		VisitsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visit_tracker",
			Name:      "visits_started_total",
			Help:      "Visits created from arrival events.",
		}),
		VisitsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visit_tracker",
			Name:      "visits_ended_total",
			Help:      "Visits closed by departure events.",
		}),
		PointsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visit_tracker",
			Name:      "points_recorded_total",
			Help:      "Fixes accepted as location points.",
		}),
		PointsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visit_tracker",
			Name:      "points_rejected_total",
			Help:      "Fixes rejected by mode or accuracy gating.",
		}),
		UpdatesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visit_tracker",
			Name:      "visit_updates_published_total",
			Help:      "Visit lifecycle records published to the sink topic.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "visit_tracker",
			Name:      "geocode_requests_total",
			Help:      "Reverse-geocoding provider requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "visit_tracker",
			Name:      "geocode_cache_total",
			Help:      "Place cache lookups by result.",
		}, []string{"result"}),
		GeocodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "visit_tracker",
			Name:      "geocode_duration_seconds",
			Help:      "Reverse-geocoding provider request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		TrackingMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "visit_tracker",
			Name:      "tracking_mode",
			Help:      "Current tracking mode: 0 disabled, 1 visit tracking, 2 continuous.",
		}),
	}
}
