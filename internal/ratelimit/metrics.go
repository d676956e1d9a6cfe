package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RateLimitDecisionsTotal counts admission decisions.
var RateLimitDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_ratelimit_decisions_total",
		Help: "Total number of rate limit admission decisions",
	},
	[]string{"result"},
)

func recordDecision(allowed bool) {
	result := "allowed"
	if !allowed {
		result = "rejected"
	}
	RateLimitDecisionsTotal.WithLabelValues(result).Inc()
}
