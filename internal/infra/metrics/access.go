package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		accessTokensIssuedTotal,
		accessTokenChecksTotal,
		accessRateLimitedTotal,
		disputesTotal,
	)
}

var (
	accessTokensIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_tokens_issued_total",
			Help:      "Total number of access tokens generated.",
		},
	)

	// result: ok|invalid|expired|used
	accessTokenChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_token_checks_total",
			Help:      "Access token verifications by result.",
		},
		[]string{"result"},
	)

	accessRateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_rate_limited_total",
			Help:      "Total number of access requests rejected by the rate limiter.",
		},
	)

	// event: opened|resolved|closed
	disputesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disputes_total",
			Help:      "Dispute lifecycle events.",
		},
		[]string{"event"},
	)
)

func IncAccessTokenIssued() { accessTokensIssuedTotal.Inc() }

func IncAccessTokenCheck(result string) {
	accessTokenChecksTotal.WithLabelValues(norm(result)).Inc()
}

func IncAccessRateLimited() { accessRateLimitedTotal.Inc() }

func IncDispute(event string) {
	disputesTotal.WithLabelValues(norm(event)).Inc()
}
