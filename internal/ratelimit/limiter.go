// Package ratelimit provides admission control for the gateway using a
// fixed-window counter keyed by (client, route).
package ratelimit

import (
	"context"
	"time"
)

// Limiter is the interface for admission control.
type Limiter interface {
	// Allow checks whether a request for the given key is admitted.
	Allow(ctx context.Context, key string) (*Result, error)
}

// Result is the outcome of an admission check.
type Result struct {
	// Allowed indicates whether the request is admitted.
	Allowed bool

	// Limit is the maximum number of requests per window.
	Limit int

	// Remaining is the number of requests left in the current window.
	Remaining int

	// RetryAfter is the duration until the current window expires;
	// zero when the request was admitted.
	RetryAfter time.Duration
}

// NoopLimiter admits every request.
type NoopLimiter struct{}

// NewNoopLimiter creates a limiter that never rejects.
func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

// Allow implements Limiter.
func (l *NoopLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	return &Result{Allowed: true}, nil
}
