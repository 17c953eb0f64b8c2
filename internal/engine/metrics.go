package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationsTotal counts operations by name and result.
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqtrace_operations_total",
		Help: "Total traceability operations by operation and result",
	}, []string{"operation", "result"})

	// operationDuration tracks end-to-end operation latency, fetch included.
	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reqtrace_operation_duration_seconds",
		Help:    "Traceability operation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"operation"})

	// matrixRequirements tracks the size of each built matrix.
	matrixRequirements = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reqtrace_matrix_requirements",
		Help:    "Number of registered requirements per built matrix",
		Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
	})
)
