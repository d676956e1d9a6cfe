package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func validConfig() *GatewayConfig {
	cfg := &GatewayConfig{
		Auth: AuthConfig{Secret: "test-secret"},
		Upstreams: []Upstream{
			{Name: "parent-service", Prefix: "/api/parents", URL: "http://localhost:8082"},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := &GatewayConfig{}
	cfg.ApplyDefaults()

	assert.Equal(t, DefaultHTTPPort, cfg.Server.HTTPPort)
	assert.Equal(t, DefaultMetricsPort, cfg.Server.MetricsPort)
	assert.Equal(t, 15*time.Second, cfg.Server.UpstreamTimeout.Duration())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.Equal(t, DefaultCookieName, cfg.Auth.CookieName)
	assert.Equal(t, DefaultRole, cfg.Auth.DefaultRole)
	assert.Equal(t, DefaultIdentityHdr, cfg.Auth.IdentityHeader)

	assert.Equal(t, DefaultRateLimitRequests, cfg.RateLimit.MaxRequests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window.Duration())
	assert.Equal(t, time.Minute, cfg.RateLimit.RetryAfter.Duration())

	assert.Equal(t, DefaultBreakerFailureRate, cfg.CircuitBreaker.FailureRateThreshold)
	assert.Equal(t, DefaultBreakerWindowSize, cfg.CircuitBreaker.WindowSize)
	assert.Equal(t, DefaultBreakerMinCalls, cfg.CircuitBreaker.MinCalls)
	assert.Equal(t, 30*time.Second, cfg.CircuitBreaker.OpenStateWait.Duration())
	assert.Equal(t, DefaultBreakerHalfOpenMax, cfg.CircuitBreaker.HalfOpenMaxCalls)
}

func TestApplyDefaults_DoesNotOverrideExplicitValues(t *testing.T) {
	cfg := &GatewayConfig{
		Server:    ServerConfig{HTTPPort: 9000},
		RateLimit: RateLimitConfig{MaxRequests: 5, Window: Duration(time.Second)},
	}
	cfg.ApplyDefaults()

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, 5, cfg.RateLimit.MaxRequests)
	assert.Equal(t, time.Second, cfg.RateLimit.Window.Duration())
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*GatewayConfig)
	}{
		{"missing secret", func(c *GatewayConfig) { c.Auth.Secret = "" }},
		{"no upstreams", func(c *GatewayConfig) { c.Upstreams = nil }},
		{"duplicate upstream name", func(c *GatewayConfig) {
			c.Upstreams = append(c.Upstreams, Upstream{
				Name: "parent-service", Prefix: "/api/other", URL: "http://localhost:8083",
			})
		}},
		{"duplicate prefix", func(c *GatewayConfig) {
			c.Upstreams = append(c.Upstreams, Upstream{
				Name: "other-service", Prefix: "/api/parents", URL: "http://localhost:8083",
			})
		}},
		{"invalid upstream url", func(c *GatewayConfig) { c.Upstreams[0].URL = "not a url" }},
		{"prefix without slash", func(c *GatewayConfig) { c.Upstreams[0].Prefix = "api/parents" }},
		{"public path without slash", func(c *GatewayConfig) { c.Auth.PublicPaths = []string{"auth/login"} }},
		{"zero rate limit", func(c *GatewayConfig) { c.RateLimit.MaxRequests = -1 }},
		{"bad failure rate", func(c *GatewayConfig) { c.CircuitBreaker.FailureRateThreshold = 1.5 }},
		{"min calls above window", func(c *GatewayConfig) { c.CircuitBreaker.MinCalls = 20 }},
		{"metrics port collision", func(c *GatewayConfig) { c.Server.MetricsPort = c.Server.HTTPPort }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestBreakerConfigFor(t *testing.T) {
	cfg := validConfig()
	override := &CircuitBreakerConfig{MinCalls: 2}
	override.applyDefaults()
	cfg.Upstreams = append(cfg.Upstreams, Upstream{
		Name: "chat-service", Prefix: "/api/chat", URL: "http://localhost:8089",
		CircuitBreaker: override,
	})

	assert.Equal(t, DefaultBreakerMinCalls, cfg.BreakerConfigFor("parent-service").MinCalls)
	assert.Equal(t, 2, cfg.BreakerConfigFor("chat-service").MinCalls)
	assert.Equal(t, DefaultBreakerWindowSize, cfg.BreakerConfigFor("chat-service").WindowSize)
	assert.Equal(t, DefaultBreakerMinCalls, cfg.BreakerConfigFor("unknown").MinCalls)
}

func TestUpstreamByName(t *testing.T) {
	cfg := validConfig()
	require.NotNil(t, cfg.UpstreamByName("parent-service"))
	assert.Nil(t, cfg.UpstreamByName("missing-service"))
}

func TestDuration_YAML(t *testing.T) {
	var d Duration
	require.NoError(t, yaml.Unmarshal([]byte(`"1h30m"`), &d))
	assert.Equal(t, 90*time.Minute, d.Duration())

	out, err := yaml.Marshal(Duration(30 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, "30s\n", string(out))

	require.NoError(t, yaml.Unmarshal([]byte(`""`), &d))
	assert.Equal(t, time.Duration(0), d.Duration())

	assert.Error(t, yaml.Unmarshal([]byte(`"bogus"`), &d))
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"45s"`), &d))
	assert.Equal(t, 45*time.Second, d.Duration())

	out, err := json.Marshal(Duration(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, `"1m0s"`, string(out))

	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.Equal(t, time.Duration(0), d.Duration())
}
