package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nuruhealth/nurugw/internal/observability"
	"github.com/nuruhealth/nurugw/internal/ratelimit"
)

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	// Limiter performs the admission check.
	Limiter ratelimit.Limiter

	// KeyFunc extracts the admission key from the request.
	KeyFunc ratelimit.KeyFunc

	// RetryAfter is the fixed Retry-After hint in seconds. When zero
	// the remaining window duration is used instead.
	RetryAfter int

	Logger observability.Logger
}

// RateLimit returns the admission control stage. Rejected requests
// terminate with a 429 response carrying a Retry-After hint; on a
// limiter error the request is admitted rather than blocked.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.NewNoopLimiter()
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ratelimit.ClientRouteKeyFunc
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger()
	}

	return func(c *gin.Context) {
		key := cfg.KeyFunc(c.Request)

		result, err := cfg.Limiter.Allow(c.Request.Context(), key)
		if err != nil {
			cfg.Logger.Error("rate limit check failed",
				observability.String("key", key),
				observability.Error(err),
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			retryAfter := cfg.RetryAfter
			if retryAfter == 0 {
				retryAfter = int(result.RetryAfter.Seconds())
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))

			cfg.Logger.Warn("rate limit exceeded",
				observability.String("key", key),
				observability.Int("limit", result.Limit),
			)

			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				errorBody("Rate limit exceeded", "Too many requests, please try again later"))
			return
		}

		c.Next()
	}
}
