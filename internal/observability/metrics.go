// Package observability exposes Prometheus metrics for the BasinAtlas server.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// visualization core.
type Metrics struct {
	ScaleRebuilds   *prometheus.CounterVec   // labels: dataset, statistic
	SelectionWrites *prometheus.CounterVec   // labels: dataset, action={set,clear}
	RenderDuration  *prometheus.HistogramVec // labels: dataset, kind={legend,map}
	BasinsLoaded    *prometheus.GaugeVec     // labels: dataset
}

// NewMetrics creates and registers all metrics with the default Prometheus
// registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ScaleRebuilds,
		m.SelectionWrites,
		m.RenderDuration,
		m.BasinsLoaded,
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
		ScaleRebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "basinatlas",
			Name:      "scale_rebuilds_total",
			Help:      "Color scale constructions by dataset and statistic.",
		}, []string{"dataset", "statistic"}),
		SelectionWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "basinatlas",
			Name:      "selection_writes_total",
			Help:      "Selection cell writes by dataset and action.",
		}, []string{"dataset", "action"}),
		RenderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "basinatlas",
			Name:      "render_duration_seconds",
			Help:      "PNG render duration by dataset and kind.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}, []string{"dataset", "kind"}),
		BasinsLoaded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "basinatlas",
			Name:      "basins_loaded",
			Help:      "Number of basin features loaded per dataset.",
		}, []string{"dataset"}),
	}
}
