package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "locallink", Name: "http_requests_total", Help: "Number of handled HTTP requests by route, method, and status."},
		[]string{"route", "method", "status"},
	)
	RateLimitAllowed = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "locallink", Name: "rate_limit_allowed_total", Help: "Number of requests admitted by the public rate limiter."},
	)
	RateLimitRejected = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "locallink", Name: "rate_limit_rejected_total", Help: "Number of requests rejected by the public rate limiter."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(HTTPRequests)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
