package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// hazard engine.
type Metrics struct {
	SignalsConsumed prometheus.Counter
	SignalsRejected *prometheus.CounterVec // labels: reason={invalid,decode}
	SignalsStored   prometheus.Counter
	EngineRunning   prometheus.Gauge

	// Clustering metrics.
	ClusteringRuns      prometheus.Counter
	ClusteringDuration  prometheus.Histogram
	ClustersFound       prometheus.Histogram
	PartitionContention prometheus.Counter

	// Zone lifecycle metrics.
	ZoneEvents  *prometheus.CounterVec // labels: kind={zone_created,zone_updated,zone_expired}
	ActiveZones prometheus.Gauge

	// Forecast metrics.
	ForecastRequests *prometheus.CounterVec // labels: source={trained,heuristic}
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.SignalsConsumed,
		m.SignalsRejected,
		m.SignalsStored,
		m.EngineRunning,
		m.ClusteringRuns,
		m.ClusteringDuration,
		m.ClustersFound,
		m.PartitionContention,
		m.ZoneEvents,
		m.ActiveZones,
		m.ForecastRequests,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so parallel
// tests never hit "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SignalsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_engine",
			Name:      "signals_consumed_total",
			Help:      "Total raw signal messages read from the source topic.",
		}),
		SignalsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_engine",
			Name:      "signals_rejected_total",
			Help:      "Signals dropped at ingest by reason.",
		}, []string{"reason"}),
		SignalsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_engine",
			Name:      "signals_stored_total",
			Help:      "Normalized signals persisted to the store.",
		}),
		EngineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hazard_engine",
			Name:      "running",
			Help:      "1 when the ingest loop is active, 0 when shut down.",
		}),
		ClusteringRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_engine",
			Name:      "clustering_runs_total",
			Help:      "Completed clustering passes.",
		}),
		ClusteringDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hazard_engine",
			Name:      "clustering_duration_seconds",
			Help:      "Duration of a full clustering pass including zone application.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		ClustersFound: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hazard_engine",
			Name:      "clusters_found",
			Help:      "Clusters produced per clustering pass.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		PartitionContention: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_engine",
			Name:      "partition_contention_total",
			Help:      "Clustering attempts that found their geographic partition busy.",
		}),
		ZoneEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_engine",
			Name:      "zone_events_total",
			Help:      "Zone lifecycle transitions by kind.",
		}, []string{"kind"}),
		ActiveZones: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hazard_engine",
			Name:      "active_zones",
			Help:      "Currently active hazard and advisory zones.",
		}),
		ForecastRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_engine",
			Name:      "forecast_requests_total",
			Help:      "Escalation forecasts served by model source.",
		}, []string{"source"}),
	}
}
