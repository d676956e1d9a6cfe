package ratelimit

import (
	"net/http"
	"strings"
)

// KeyFunc extracts an admission key from an HTTP request.
type KeyFunc func(r *http.Request) string

// ClientIP resolves the client address, preferring the first entry of
// X-Forwarded-For, then X-Real-IP, then the transport peer address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	ip = strings.TrimPrefix(ip, "[")
	ip = strings.TrimSuffix(ip, "]")

	if ip == "" {
		return "unknown"
	}
	return ip
}

// ClientRouteKeyFunc keys admission by client address and request
// path, so one client's quota on one route does not affect another.
func ClientRouteKeyFunc(r *http.Request) string {
	return ClientIP(r) + ":" + r.URL.Path
}
