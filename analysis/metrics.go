package analysis

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// tracerName is the OTel tracer name used when no tracer is supplied.
const tracerName = "cxxsema.analysis"

// Package-level Prometheus metrics for analyzer queries.
var (
	// queriesTotal counts analyzer queries.
	//
	// Labels:
	//   - operation: "final_overriders", "subobjects", "classify_constructor", "report"
	//   - status: "success" or "error"
	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cxxsema",
			Subsystem: "analysis",
			Name:      "queries_total",
			Help:      "Total number of analyzer queries.",
		},
		[]string{"operation", "status"},
	)

	// queryDuration measures analyzer query latency.
	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cxxsema",
			Subsystem: "analysis",
			Name:      "query_duration_seconds",
			Help:      "Duration of analyzer queries in seconds.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation"},
	)

	// cacheLookups counts result cache lookups by outcome ("hit", "miss").
	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cxxsema",
			Subsystem: "analysis",
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by outcome.",
		},
		[]string{"result"},
	)

	// ambiguousOverriders counts ambiguous final overriders found.
	ambiguousOverriders = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cxxsema",
			Subsystem: "analysis",
			Name:      "ambiguous_overriders_total",
			Help:      "Ambiguous final overriders found by fresh computations.",
		},
	)
)

func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	queriesTotal.WithLabelValues(operation, status).Inc()
	queryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
