package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/nuruhealth/nurugw/internal/observability"
)

// FixedWindowLimiter implements a fixed-window counter. Each key gets
// its own window anchored at its first request; the counter resets
// when the elapsed time since the window start exceeds the window
// length. Because the window is fixed rather than sliding, a client
// can burst up to twice the nominal quota across a window boundary.
// That is the admission behavior clients already observe and it is
// kept deliberately.
type FixedWindowLimiter struct {
	limit  int
	window time.Duration
	logger observability.Logger

	counters sync.Map // key -> *windowCounter

	// now is swappable for tests.
	now func() time.Time
}

// windowCounter tracks one key's count within the current window.
type windowCounter struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
}

// FixedWindowOption is a functional option for the limiter.
type FixedWindowOption func(*FixedWindowLimiter)

// WithLimiterLogger sets the logger for the limiter.
func WithLimiterLogger(logger observability.Logger) FixedWindowOption {
	return func(l *FixedWindowLimiter) {
		l.logger = logger
	}
}

// WithClock sets the time source. Used by tests.
func WithClock(now func() time.Time) FixedWindowOption {
	return func(l *FixedWindowLimiter) {
		l.now = now
	}
}

// NewFixedWindowLimiter creates a new fixed window limiter.
func NewFixedWindowLimiter(limit int, window time.Duration, opts ...FixedWindowOption) *FixedWindowLimiter {
	l := &FixedWindowLimiter{
		limit:  limit,
		window: window,
		logger: observability.NopLogger(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Allow implements Limiter. Creation of a counter for a new key is
// race-free (single winner via LoadOrStore); increments and the
// expiry check-then-reset run under the counter's own mutex, so
// concurrent requests for one key cannot lose updates or double-count
// a reset.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	now := l.now()

	value, _ := l.counters.LoadOrStore(key, &windowCounter{windowStart: now})
	wc := value.(*windowCounter)

	wc.mu.Lock()
	if now.Sub(wc.windowStart) > l.window {
		wc.count = 0
		wc.windowStart = now
	}

	wc.count++
	allowed := wc.count <= l.limit

	remaining := l.limit - wc.count
	if remaining < 0 {
		remaining = 0
	}

	var retryAfter time.Duration
	if !allowed {
		retryAfter = wc.windowStart.Add(l.window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
	}
	wc.mu.Unlock()

	recordDecision(allowed)
	if !allowed {
		l.logger.Debug("rate limit exceeded",
			observability.String("key", key),
			observability.Int("limit", l.limit),
		)
	}

	return &Result{
		Allowed:    allowed,
		Limit:      l.limit,
		Remaining:  remaining,
		RetryAfter: retryAfter,
	}, nil
}

// Reset clears the window for a key.
func (l *FixedWindowLimiter) Reset(key string) {
	l.counters.Delete(key)
}

// Cleanup removes counters whose window expired before the cutoff.
// The table is otherwise never evicted; callers that care about
// memory growth under high key cardinality should run this
// periodically.
func (l *FixedWindowLimiter) Cleanup() {
	now := l.now()
	l.counters.Range(func(key, value interface{}) bool {
		wc := value.(*windowCounter)
		wc.mu.Lock()
		stale := now.Sub(wc.windowStart) > l.window
		wc.mu.Unlock()
		if stale {
			l.counters.Delete(key)
		}
		return true
	})
}
