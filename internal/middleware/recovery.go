package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/nuruhealth/nurugw/internal/observability"
)

// Recovery returns a middleware that converts panics into a 500 JSON
// response. No internal detail reaches the client.
func Recovery(logger observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					observability.String("requestID", c.GetString(RequestIDKey)),
					observability.String("method", c.Request.Method),
					observability.String("path", c.Request.URL.Path),
					observability.Any("error", err),
					observability.String("stack", string(debug.Stack())),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError,
					errorBody("Internal server error", "An unexpected error occurred"))
			}
		}()

		c.Next()
	}
}
