package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		sagaOperationsTotal,
		sagaOperationDuration,
		sagaRetriesTotal,
	)
}

var (
	// result: ok|rule|invalid|not_found|forbidden|payment|conflict|error
	sagaOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saga_operations_total",
			Help:      "Purchase saga operations by operation and result.",
		},
		[]string{"op", "result"},
	)

	sagaOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "saga_operation_duration_seconds",
			Help:      "Duration of purchase saga operations including retries.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"op"},
	)

	sagaRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saga_retries_total",
			Help:      "Storage transactions retried after a serialization conflict.",
		},
		[]string{"op"},
	)
)

func ObserveSagaOperation(op, result string, elapsed time.Duration) {
	sagaOperationsTotal.WithLabelValues(norm(op), norm(result)).Inc()
	sagaOperationDuration.WithLabelValues(norm(op)).Observe(elapsed.Seconds())
}

func IncSagaRetry(op string) {
	sagaRetriesTotal.WithLabelValues(norm(op)).Inc()
}
