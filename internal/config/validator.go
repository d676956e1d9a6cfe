package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoUpstreams is returned when the route table is empty.
var ErrNoUpstreams = errors.New("at least one upstream is required")

// Validate checks the configuration for structural errors. It assumes
// ApplyDefaults has already run.
func (c *GatewayConfig) Validate() error {
	if c.Server.HTTPPort < 1 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid httpPort %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort < 1 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metricsPort %d", c.Server.MetricsPort)
	}
	if c.Server.MetricsPort == c.Server.HTTPPort {
		return fmt.Errorf("metricsPort must differ from httpPort (%d)", c.Server.HTTPPort)
	}

	if c.Auth.Secret == "" {
		return errors.New("auth.secret is required")
	}
	for _, p := range c.Auth.PublicPaths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("public path %q must start with /", p)
		}
	}

	if c.RateLimit.MaxRequests < 1 {
		return fmt.Errorf("rateLimit.maxRequests must be positive, got %d", c.RateLimit.MaxRequests)
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("rateLimit.window must be positive")
	}

	if err := c.CircuitBreaker.validate("circuitBreaker"); err != nil {
		return err
	}

	if len(c.Upstreams) == 0 {
		return ErrNoUpstreams
	}

	seenNames := make(map[string]bool, len(c.Upstreams))
	seenPrefixes := make(map[string]bool, len(c.Upstreams))
	for i := range c.Upstreams {
		u := &c.Upstreams[i]
		if u.Name == "" {
			return fmt.Errorf("upstream %d: name is required", i)
		}
		if seenNames[u.Name] {
			return fmt.Errorf("duplicate upstream name %q", u.Name)
		}
		seenNames[u.Name] = true

		if !strings.HasPrefix(u.Prefix, "/") {
			return fmt.Errorf("upstream %s: prefix %q must start with /", u.Name, u.Prefix)
		}
		if seenPrefixes[u.Prefix] {
			return fmt.Errorf("duplicate upstream prefix %q", u.Prefix)
		}
		seenPrefixes[u.Prefix] = true

		parsed, err := url.Parse(u.URL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("upstream %s: invalid url %q", u.Name, u.URL)
		}

		if u.CircuitBreaker != nil {
			if err := u.CircuitBreaker.validate("upstream " + u.Name); err != nil {
				return err
			}
		}
	}

	return nil
}

func (c *CircuitBreakerConfig) validate(scope string) error {
	if c.FailureRateThreshold <= 0 || c.FailureRateThreshold > 1 {
		return fmt.Errorf("%s: failureRateThreshold must be in (0, 1], got %v", scope, c.FailureRateThreshold)
	}
	if c.WindowSize < 1 {
		return fmt.Errorf("%s: windowSize must be positive, got %d", scope, c.WindowSize)
	}
	if c.MinCalls < 1 {
		return fmt.Errorf("%s: minCalls must be positive, got %d", scope, c.MinCalls)
	}
	if c.MinCalls > c.WindowSize {
		return fmt.Errorf("%s: minCalls %d exceeds windowSize %d", scope, c.MinCalls, c.WindowSize)
	}
	if c.OpenStateWait <= 0 {
		return fmt.Errorf("%s: openStateWait must be positive", scope)
	}
	if c.HalfOpenMaxCalls < 1 {
		return fmt.Errorf("%s: halfOpenMaxCalls must be positive, got %d", scope, c.HalfOpenMaxCalls)
	}
	if c.SuccessThreshold < 1 {
		return fmt.Errorf("%s: successThreshold must be positive, got %d", scope, c.SuccessThreshold)
	}
	return nil
}
