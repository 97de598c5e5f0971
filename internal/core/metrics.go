package core

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	importsTotal         *prometheus.CounterVec
	importRows           *prometheus.CounterVec
	importDuration       *prometheus.HistogramVec
	activeImports        prometheus.Gauge
	routeOps             *prometheus.CounterVec
	sharedCreated        *prometheus.CounterVec
	sharedReclaimed      *prometheus.CounterVec
	compensationFailures *prometheus.CounterVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		importsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "routeimport",
			Name:      "imports_total",
			Help:      "Total number of finished import operations by final status.",
		}, []string{"status"}),
		importRows: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "routeimport",
			Name:      "import_rows_total",
			Help:      "Rows seen by the importer by outcome (imported, skipped, rejected).",
		}, []string{"outcome"}),
		importDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "routeimport",
			Name:      "import_duration_seconds",
			Help:      "Wall time of import operations.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"status"}),
		activeImports: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "routeimport",
			Name:      "active_imports",
			Help:      "Imports currently holding a limiter slot.",
		}),
		routeOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "routeimport",
			Name:      "route_operations_total",
			Help:      "Route lifecycle operations by kind and result.",
		}, []string{"op", "result"}),
		sharedCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "routeimport",
			Name:      "shared_entities_created_total",
			Help:      "Shared entities persisted by find-or-create.",
		}, []string{"entity"}),
		sharedReclaimed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "routeimport",
			Name:      "shared_entities_reclaimed_total",
			Help:      "Shared entities deleted after their usage count reached zero.",
		}, []string{"entity"}),
		compensationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "routeimport",
			Name:      "compensation_failures_total",
			Help:      "Best-effort compensation steps that failed and need manual audit.",
		}, []string{"step"}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
