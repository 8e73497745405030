package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "era5_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	YearsProcessed  prometheus.Counter
	RowsFlattened   prometheus.Counter
	RowsMerged      prometheus.Gauge
	PipelineRunning prometheus.Gauge
	LastSuccess     prometheus.Gauge

	// StageDuration is labelled by stage={extract,transform,load,flatten,merge}.
	StageDuration *prometheus.HistogramVec

	// Cells where the dew point exceeds the air temperature (rh > 100).
	Supersaturated prometheus.Counter

	// Gatherer exposes the registry the metrics were registered with.
	Gatherer prometheus.Gatherer
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	m.Gatherer = prometheus.DefaultGatherer
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m.collectors()...)
	m.Gatherer = reg
	return m
}

// WriteTextfile writes the current metric values in the text exposition
// format, for node_exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Gatherer)
}

func newMetrics() *Metrics {
	return &Metrics{
		YearsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "years_processed_total",
			Help:      "Yearly ERA5 files written to the processed directory.",
		}),
		RowsFlattened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_flattened_total",
			Help:      "Rows produced by flattening yearly datasets.",
		}),
		RowsMerged: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rows_merged",
			Help:      "Rows in the last merged CSV.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while the pipeline is running, 0 otherwise.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of a pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"stage"}),
		Supersaturated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rh_supersaturated_cells_total",
			Help:      "Cells with relative humidity above 100 percent.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.YearsProcessed,
		m.RowsFlattened,
		m.RowsMerged,
		m.PipelineRunning,
		m.LastSuccess,
		m.StageDuration,
		m.Supersaturated,
	}
}
