package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthValidationsTotal counts token validations by result and reason.
	AuthValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_auth_validations_total",
			Help: "Total number of token validations",
		},
		[]string{"result", "reason"},
	)

	// AuthValidationDuration observes token validation latency.
	AuthValidationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_auth_validation_duration_seconds",
			Help:    "Token validation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func recordValidation(result, reason string, d time.Duration) {
	AuthValidationsTotal.WithLabelValues(result, reason).Inc()
	AuthValidationDuration.Observe(d.Seconds())
}
