// Package config provides configuration management for the edge gateway.
// Configuration is loaded from a YAML file with environment variable
// substitution; the route table, auth settings, and resilience policies
// are immutable after startup.
package config

import (
	"time"
)

// GatewayConfig is the root configuration for the gateway process.
type GatewayConfig struct {
	Server         ServerConfig         `json:"server" yaml:"server"`
	Log            LogConfig            `json:"log" yaml:"log"`
	Tracing        TracingConfig        `json:"tracing" yaml:"tracing"`
	Auth           AuthConfig           `json:"auth" yaml:"auth"`
	RateLimit      RateLimitConfig      `json:"rateLimit" yaml:"rateLimit"`
	CircuitBreaker CircuitBreakerConfig `json:"circuitBreaker" yaml:"circuitBreaker"`
	Upstreams      []Upstream           `json:"upstreams" yaml:"upstreams"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	HTTPPort    int `json:"httpPort" yaml:"httpPort"`
	MetricsPort int `json:"metricsPort" yaml:"metricsPort"`

	ReadTimeout     Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout    Duration `json:"writeTimeout" yaml:"writeTimeout"`
	IdleTimeout     Duration `json:"idleTimeout" yaml:"idleTimeout"`
	ShutdownTimeout Duration `json:"shutdownTimeout" yaml:"shutdownTimeout"`

	// UpstreamTimeout bounds a single proxied call. The breaker's open
	// wait governs re-admission, not call duration, so this is a
	// separate knob.
	UpstreamTimeout Duration `json:"upstreamTimeout" yaml:"upstreamTimeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	Output string `json:"output" yaml:"output"`
}

// TracingConfig holds tracing settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"serviceName" yaml:"serviceName"`
}

// AuthConfig holds JWT authentication settings.
type AuthConfig struct {
	// Secret is the HMAC signing secret shared with the token issuer.
	Secret string `json:"secret" yaml:"secret"`

	// Issuer, when set, must match the token's iss claim.
	Issuer string `json:"issuer" yaml:"issuer"`

	// CookieName is the fallback cookie checked when no Authorization
	// header is present.
	CookieName string `json:"cookieName" yaml:"cookieName"`

	// DefaultRole is assigned when a valid token carries no role claim.
	DefaultRole string `json:"defaultRole" yaml:"defaultRole"`

	// Propagated identity headers.
	IdentityHeader string `json:"identityHeader" yaml:"identityHeader"`
	RoleHeader     string `json:"roleHeader" yaml:"roleHeader"`
	EmailHeader    string `json:"emailHeader" yaml:"emailHeader"`

	ClockSkew Duration `json:"clockSkew" yaml:"clockSkew"`

	// PublicPaths are exact path prefixes that bypass authentication.
	PublicPaths []string `json:"publicPaths" yaml:"publicPaths"`
}

// RateLimitConfig holds admission control settings.
type RateLimitConfig struct {
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	MaxRequests int      `json:"maxRequests" yaml:"maxRequests"`
	Window      Duration `json:"window" yaml:"window"`
	RetryAfter  Duration `json:"retryAfter" yaml:"retryAfter"`
}

// CircuitBreakerConfig holds circuit breaker settings, either the
// process-wide defaults or a per-upstream override.
type CircuitBreakerConfig struct {
	// FailureRateThreshold is the failure ratio (0.0-1.0) over the
	// rolling window at which the breaker opens.
	FailureRateThreshold float64 `json:"failureRateThreshold" yaml:"failureRateThreshold"`

	// WindowSize is the number of recent call outcomes retained.
	WindowSize int `json:"windowSize" yaml:"windowSize"`

	// MinCalls is the minimum number of recorded calls before the
	// failure ratio is evaluated.
	MinCalls int `json:"minCalls" yaml:"minCalls"`

	// OpenStateWait is how long the breaker stays open before probing.
	OpenStateWait Duration `json:"openStateWait" yaml:"openStateWait"`

	// HalfOpenMaxCalls caps concurrent probe calls in half-open state.
	HalfOpenMaxCalls int `json:"halfOpenMaxCalls" yaml:"halfOpenMaxCalls"`

	// SuccessThreshold is the number of consecutive probe successes
	// required to close the breaker.
	SuccessThreshold int `json:"successThreshold" yaml:"successThreshold"`
}

// Upstream is one entry of the static route table.
type Upstream struct {
	// Name identifies the upstream; it keys the circuit breaker and
	// the fallback message.
	Name string `json:"name" yaml:"name"`

	// Prefix is the path prefix routed to this upstream.
	Prefix string `json:"prefix" yaml:"prefix"`

	// URL is the base address of the upstream.
	URL string `json:"url" yaml:"url"`

	// Public marks the whole prefix as reachable without a credential.
	Public bool `json:"public" yaml:"public"`

	// CircuitBreaker overrides the process-wide breaker defaults.
	CircuitBreaker *CircuitBreakerConfig `json:"circuitBreaker" yaml:"circuitBreaker"`
}

// Default values applied by ApplyDefaults.
const (
	DefaultHTTPPort    = 8085
	DefaultMetricsPort = 9090

	DefaultCookieName  = "jwt"
	DefaultRole        = "PARENT"
	DefaultIdentityHdr = "X-User-Id"
	DefaultRoleHdr     = "X-User-Role"
	DefaultEmailHdr    = "X-User-Email"

	DefaultRateLimitRequests = 100

	DefaultBreakerFailureRate      = 0.5
	DefaultBreakerWindowSize       = 10
	DefaultBreakerMinCalls         = 5
	DefaultBreakerHalfOpenMax      = 3
	DefaultBreakerSuccessThreshold = 3
)

// ApplyDefaults fills in zero-valued fields with defaults.
func (c *GatewayConfig) ApplyDefaults() {
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = DefaultHTTPPort
	}
	if c.Server.MetricsPort == 0 {
		c.Server.MetricsPort = DefaultMetricsPort
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(15 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(30 * time.Second)
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = Duration(60 * time.Second)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if c.Server.UpstreamTimeout == 0 {
		c.Server.UpstreamTimeout = Duration(15 * time.Second)
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	if c.Auth.CookieName == "" {
		c.Auth.CookieName = DefaultCookieName
	}
	if c.Auth.DefaultRole == "" {
		c.Auth.DefaultRole = DefaultRole
	}
	if c.Auth.IdentityHeader == "" {
		c.Auth.IdentityHeader = DefaultIdentityHdr
	}
	if c.Auth.RoleHeader == "" {
		c.Auth.RoleHeader = DefaultRoleHdr
	}
	if c.Auth.EmailHeader == "" {
		c.Auth.EmailHeader = DefaultEmailHdr
	}

	if c.RateLimit.MaxRequests == 0 {
		c.RateLimit.MaxRequests = DefaultRateLimitRequests
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = Duration(time.Minute)
	}
	if c.RateLimit.RetryAfter == 0 {
		c.RateLimit.RetryAfter = Duration(time.Minute)
	}

	c.CircuitBreaker.applyDefaults()
	for i := range c.Upstreams {
		if c.Upstreams[i].CircuitBreaker != nil {
			c.Upstreams[i].CircuitBreaker.applyDefaults()
		}
	}
}

func (c *CircuitBreakerConfig) applyDefaults() {
	if c.FailureRateThreshold == 0 {
		c.FailureRateThreshold = DefaultBreakerFailureRate
	}
	if c.WindowSize == 0 {
		c.WindowSize = DefaultBreakerWindowSize
	}
	if c.MinCalls == 0 {
		c.MinCalls = DefaultBreakerMinCalls
	}
	if c.OpenStateWait == 0 {
		c.OpenStateWait = Duration(30 * time.Second)
	}
	if c.HalfOpenMaxCalls == 0 {
		c.HalfOpenMaxCalls = DefaultBreakerHalfOpenMax
	}
	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = DefaultBreakerSuccessThreshold
	}
}

// BreakerConfigFor returns the effective breaker configuration for an
// upstream, merging the per-upstream override over the defaults.
func (c *GatewayConfig) BreakerConfigFor(name string) CircuitBreakerConfig {
	for i := range c.Upstreams {
		if c.Upstreams[i].Name == name && c.Upstreams[i].CircuitBreaker != nil {
			return *c.Upstreams[i].CircuitBreaker
		}
	}
	return c.CircuitBreaker
}

// UpstreamByName returns the route table entry for an upstream name.
func (c *GatewayConfig) UpstreamByName(name string) *Upstream {
	for i := range c.Upstreams {
		if c.Upstreams[i].Name == name {
			return &c.Upstreams[i]
		}
	}
	return nil
}
