package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion service.
type Metrics struct {
	// Upstream HTTP metrics.
	UpstreamRequests        *prometheus.CounterVec   // labels: endpoint, outcome={success,rejected,exhausted,canceled}
	UpstreamRetries         *prometheus.CounterVec   // labels: endpoint
	UpstreamRequestDuration *prometheus.HistogramVec // labels: endpoint

	// Ingest metrics.
	IngestRuns     *prometheus.CounterVec   // labels: endpoint, outcome={success,fetch_error,error}
	IngestDuration *prometheus.HistogramVec // labels: endpoint
	RecordsWritten *prometheus.CounterVec   // labels: table={current,hourly,daily,historical}
	RecordsDropped *prometheus.CounterVec   // labels: reason

	// Geocoding cache metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,empty,error}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}

	// Export sink metrics.
	ExportBatches prometheus.Counter
	ExportRecords prometheus.Counter
	ExportErrors  prometheus.Counter

	// Derived state.
	VigilanceLevel   *prometheus.GaugeVec // labels: location; value is the numeric level 0-3
	SchedulerRunning prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.UpstreamRequests,
		m.UpstreamRetries,
		m.UpstreamRequestDuration,
		m.IngestRuns,
		m.IngestDuration,
		m.RecordsWritten,
		m.RecordsDropped,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.ExportBatches,
		m.ExportRecords,
		m.ExportErrors,
		m.VigilanceLevel,
		m.SchedulerRunning,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests
// can construct as many instances as they need without "already registered"
// panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meteo_etl",
			Name:      "upstream_requests_total",
			Help:      "Upstream API calls by endpoint and final outcome.",
		}, []string{"endpoint", "outcome"}),
		UpstreamRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meteo_etl",
			Name:      "upstream_retries_total",
			Help:      "Retry attempts against the upstream API.",
		}, []string{"endpoint"}),
		UpstreamRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "meteo_etl",
			Name:      "upstream_request_duration_seconds",
			Help:      "Wall time of one upstream call including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		IngestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meteo_etl",
			Name:      "ingest_runs_total",
			Help:      "Ingest executions by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		IngestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "meteo_etl",
			Name:      "ingest_duration_seconds",
			Help:      "Duration of a complete fetch-parse-store cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		RecordsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meteo_etl",
			Name:      "records_written_total",
			Help:      "Rows upserted into the processed store by table.",
		}, []string{"table"}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meteo_etl",
			Name:      "records_dropped_total",
			Help:      "Rows and fields rejected during cleaning by reason.",
		}, []string{"reason"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meteo_etl",
			Name:      "geocode_requests_total",
			Help:      "Geocoding lookups by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meteo_etl",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		ExportBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meteo_etl",
			Name:      "export_batches_total",
			Help:      "Record batches published to the export topic.",
		}),
		ExportRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meteo_etl",
			Name:      "export_records_total",
			Help:      "Individual records published to the export topic.",
		}),
		ExportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meteo_etl",
			Name:      "export_errors_total",
			Help:      "Failed export publishes.",
		}),
		VigilanceLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "meteo_etl",
			Name:      "vigilance_level",
			Help:      "Current worst vigilance level per location (0 none, 1 yellow, 2 orange, 3 red).",
		}, []string{"location"}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "meteo_etl",
			Name:      "scheduler_running",
			Help:      "1 while the ingest scheduler loop is active.",
		}),
	}
}
