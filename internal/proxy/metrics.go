package proxy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamRequestsTotal counts forwarded upstream calls by outcome.
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_upstream_requests_total",
			Help: "Total number of forwarded upstream calls",
		},
		[]string{"upstream", "outcome"},
	)

	// UpstreamDuration observes upstream call latency.
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_upstream_duration_seconds",
			Help:    "Upstream call duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"upstream"},
	)

	// FallbackResponsesTotal counts fallback responses by reason.
	FallbackResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_fallback_responses_total",
			Help: "Total number of fallback responses served",
		},
		[]string{"upstream", "reason"},
	)
)

func recordUpstreamRequest(upstream, outcome string) {
	UpstreamRequestsTotal.WithLabelValues(upstream, outcome).Inc()
}

func recordUpstreamDuration(upstream string, d time.Duration) {
	UpstreamDuration.WithLabelValues(upstream).Observe(d.Seconds())
}

func recordFallback(upstream, reason string) {
	FallbackResponsesTotal.WithLabelValues(upstream, reason).Inc()
}
