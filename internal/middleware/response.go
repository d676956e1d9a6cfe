// Package middleware provides the gin middleware stages of the gateway
// request pipeline.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// errorBody builds the JSON error shape shared by every terminal
// middleware response.
func errorBody(errName, message string) gin.H {
	return gin.H{
		"error":     errName,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
}
