package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nuruhealth/nurugw/internal/observability"
)

// redactedHeaders are request headers whose values never reach the log.
var redactedHeaders = map[string]bool{
	"Authorization": true,
	"Cookie":        true,
}

// sanitizeHeaders flattens the request headers for logging, masking
// credential-bearing values.
func sanitizeHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if redactedHeaders[name] {
			out[name] = "[REDACTED]"
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// AccessLog returns the access logging stage. It records a start event
// before dispatch and an end event with the final status and latency.
// The stage runs after authentication and admission control, so only
// requests that cleared both produce a start event.
func AccessLog(logger observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		logger.Info("request started",
			observability.String("requestID", c.GetString(RequestIDKey)),
			observability.String("method", c.Request.Method),
			observability.String("path", path),
			observability.String("query", c.Request.URL.RawQuery),
			observability.String("clientIP", c.ClientIP()),
			observability.String("userAgent", c.Request.UserAgent()),
			observability.Any("headers", sanitizeHeaders(c.Request.Header)),
		)

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		fields := []observability.Field{
			observability.String("requestID", c.GetString(RequestIDKey)),
			observability.String("method", c.Request.Method),
			observability.String("path", path),
			observability.Int("status", status),
			observability.Duration("latency", latency),
			observability.Int("bodySize", c.Writer.Size()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, observability.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Error("request completed", fields...)
		case status >= 400:
			logger.Warn("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}
