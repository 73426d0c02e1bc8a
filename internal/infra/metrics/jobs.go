package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobRunsTotal, accessTokensPurgedTotal, notificationsTotal) }

var (
	jobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_processed_total",
			Help:      "Total number of scheduled job runs, labeled by job and status.",
		},
		[]string{"job", "status"}, // ok|failed|skipped
	)

	accessTokensPurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_tokens_purged_total",
			Help:      "Total number of spent access tokens removed by the purge job.",
		},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications by type and delivery status.",
		},
		[]string{"type", "status"}, // status: sent|error|duplicate
	)
)

func IncJobRun(job, status string) {
	jobRunsTotal.WithLabelValues(norm(job), norm(status)).Inc()
}

func AddAccessTokensPurged(n int64) {
	accessTokensPurgedTotal.Add(float64(n))
}

func IncNotification(kind, status string) {
	notificationsTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}
