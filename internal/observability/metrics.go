package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for a report
// run. A run is one-shot, so gauges describe the last (usually only) run of
// the process; the debug HTTP listener exposes them while the run executes.
type Metrics struct {
	RowsFetched       prometheus.Gauge
	StatesObserved    prometheus.Gauge
	AnomaliesDetected prometheus.Gauge
	RunsTotal         *prometheus.CounterVec // labels: outcome={success,error}

	StageDuration *prometheus.HistogramVec // labels: stage={fetch,compute,report,render}

	PopulationLookups *prometheus.CounterVec // labels: outcome={found,missing}
	RendersCompleted  *prometheus.CounterVec // labels: renderer
}

// NewMetrics creates and registers all run metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RowsFetched,
		m.StatesObserved,
		m.AnomaliesDetected,
		m.RunsTotal,
		m.StageDuration,
		m.PopulationLookups,
		m.RendersCompleted,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsFetched: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "covid_report",
			Name:      "rows_fetched",
			Help:      "Observation rows fetched from the source snapshot.",
		}),
		StatesObserved: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "covid_report",
			Name:      "states_observed",
			Help:      "Distinct states present in the snapshot.",
		}),
		AnomaliesDetected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "covid_report",
			Name:      "anomalies_detected",
			Help:      "Focus-state rows whose delta z-score crossed the threshold.",
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covid_report",
			Name:      "runs_total",
			Help:      "Completed runs by outcome.",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "covid_report",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		PopulationLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covid_report",
			Name:      "population_lookups_total",
			Help:      "Population table lookups by outcome.",
		}, []string{"outcome"}),
		RendersCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covid_report",
			Name:      "renders_completed_total",
			Help:      "Successful renderer executions by renderer name.",
		}, []string{"renderer"}),
	}
}
