package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(buildInfo, dbPool, cacheRequests) }

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Constant 1, labeled with the running version and commit.",
		},
		[]string{"version", "commit"},
	)
	dbPool = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_pool_connections",
			Help:      "Postgres pool connections by state.",
		},
		[]string{"state"}, // total|idle|in_use|max
	)
	cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Read-through cache lookups by cache and result (hit|miss|bypass).",
		},
		[]string{"cache", "result"},
	)
)

func SetBuildInfo(version, commit string) {
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, commit).Set(1)
}

func SetDBPoolStats(total, idle, inUse, max int32) {
	dbPool.WithLabelValues("total").Set(float64(total))
	dbPool.WithLabelValues("idle").Set(float64(idle))
	dbPool.WithLabelValues("in_use").Set(float64(inUse))
	dbPool.WithLabelValues("max").Set(float64(max))
}

func IncCacheRequest(cache, result string) {
	cacheRequests.WithLabelValues(norm(cache), norm(result)).Inc()
}
