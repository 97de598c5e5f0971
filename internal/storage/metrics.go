package storage

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var operations = sync.OnceValue(func() *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routeimport",
		Name:      "object_store_operations_total",
		Help:      "Object store gateway calls by operation and result.",
	}, []string{"op", "result"})
})

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	operations().WithLabelValues(op, result).Inc()
}
