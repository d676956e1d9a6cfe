package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// handleFallbackProbe serves the degraded payload for manual probing
// of the fallback path. It is reachable without authentication.
func (g *Gateway) handleFallbackProbe(c *gin.Context) {
	service := c.Param("service")
	c.JSON(http.StatusServiceUnavailable, g.fallback.Body(service))
}

// handleServiceHealth reports the breaker-derived health of one
// configured upstream.
func (g *Gateway) handleServiceHealth(c *gin.Context) {
	service := c.Param("service")

	cb := g.registry.Get(service)
	if cb == nil {
		c.JSON(http.StatusNotFound, notFoundBody("unknown service "+service))
		return
	}

	stats := cb.Stats()
	status := "UP"
	switch stats.State {
	case "open":
		status = "DOWN"
	case "half-open":
		status = "DEGRADED"
	}

	c.JSON(http.StatusOK, gin.H{
		"service":        service,
		"status":         status,
		"circuitBreaker": stats,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

// handleServiceInfo reports the route table entry and breaker state of
// one configured upstream.
func (g *Gateway) handleServiceInfo(c *gin.Context) {
	service := c.Param("service")

	up := g.cfg.UpstreamByName(service)
	if up == nil {
		c.JSON(http.StatusNotFound, notFoundBody("unknown service "+service))
		return
	}

	info := gin.H{
		"service": up.Name,
		"prefix":  up.Prefix,
		"url":     up.URL,
		"public":  up.Public,
	}
	if cb := g.registry.Get(service); cb != nil {
		info["circuitBreaker"] = cb.Stats()
	}

	c.JSON(http.StatusOK, info)
}

// handleNoRoute terminates requests that match no route table entry.
func (g *Gateway) handleNoRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, notFoundBody("no route for "+c.Request.URL.Path))
}

func notFoundBody(message string) gin.H {
	return gin.H{
		"error":     "Not found",
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
}
