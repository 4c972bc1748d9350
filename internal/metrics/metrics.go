// Package metrics defines the Prometheus collectors of the dashboard server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "yieldgap"

var (
	// Interactions counts user interactions by action.
	Interactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "interactions_total",
		Help:      "Dashboard interactions by action.",
	}, []string{"action"})

	// Exports counts generated downloads by kind and result.
	Exports = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exports_total",
		Help:      "Exports by kind and result.",
	}, []string{"kind", "result"})

	// AnalyticsDeliveries counts analytics posts by result.
	AnalyticsDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analytics_deliveries_total",
		Help:      "Analytics events sent, by result.",
	}, []string{"result"})

	NDVIBuilds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ndvi_builds_total",
		Help:      "NDVI overlays built.",
	})

	NDVISkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ndvi_skipped_shapes_total",
		Help:      "Regions left out of NDVI overlays because their geometry did not parse.",
	})

	// Sessions is the number of live dashboard sessions.
	Sessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions",
		Help:      "Live dashboard sessions.",
	})

	// Records is the number of loaded yield records.
	Records = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dataset_records",
		Help:      "Yield records currently loaded.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
