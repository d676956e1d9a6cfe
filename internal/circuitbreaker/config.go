// Package circuitbreaker guards upstream calls with a per-upstream
// circuit breaker. Failure rates are evaluated over a rolling window
// of the most recent call outcomes.
package circuitbreaker

import (
	"fmt"
	"time"
)

// Config holds configuration for a circuit breaker.
type Config struct {
	// FailureRateThreshold is the failure ratio (0.0 to 1.0] at or above
	// which the circuit opens.
	FailureRateThreshold float64

	// WindowSize is the number of most recent call outcomes retained for
	// failure rate evaluation.
	WindowSize int

	// MinCalls is the minimum number of recorded outcomes required before
	// the failure rate is evaluated.
	MinCalls int

	// OpenStateWait is how long the circuit stays open before admitting
	// half-open probes.
	OpenStateWait time.Duration

	// HalfOpenMaxCalls is the maximum number of in-flight probe calls
	// while half-open.
	HalfOpenMaxCalls int

	// SuccessThreshold is the number of consecutive probe successes needed
	// to close the circuit from half-open.
	SuccessThreshold int

	// IsSuccessful determines whether an error counts as a success.
	// If nil, all non-nil errors are counted as failures.
	IsSuccessful func(err error) bool

	// OnStateChange is called when the circuit breaker changes state.
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		FailureRateThreshold: 0.5,
		WindowSize:           10,
		MinCalls:             5,
		OpenStateWait:        30 * time.Second,
		HalfOpenMaxCalls:     3,
		SuccessThreshold:     3,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.FailureRateThreshold <= 0 || c.FailureRateThreshold > 1 {
		return fmt.Errorf("failure rate threshold must be in (0, 1], got %v", c.FailureRateThreshold)
	}
	if c.WindowSize < 1 {
		return fmt.Errorf("window size must be at least 1, got %d", c.WindowSize)
	}
	if c.MinCalls < 1 {
		return fmt.Errorf("min calls must be at least 1, got %d", c.MinCalls)
	}
	if c.MinCalls > c.WindowSize {
		return fmt.Errorf("min calls (%d) cannot exceed window size (%d)", c.MinCalls, c.WindowSize)
	}
	if c.OpenStateWait <= 0 {
		return fmt.Errorf("open state wait must be positive, got %v", c.OpenStateWait)
	}
	if c.HalfOpenMaxCalls < 1 {
		return fmt.Errorf("half-open max calls must be at least 1, got %d", c.HalfOpenMaxCalls)
	}
	if c.SuccessThreshold < 1 {
		return fmt.Errorf("success threshold must be at least 1, got %d", c.SuccessThreshold)
	}
	return nil
}
