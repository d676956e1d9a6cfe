// Package gateway wires the request pipeline together: recovery,
// request IDs, metrics, authentication, admission control, access
// logging and the breaker-guarded dispatch to upstream services.
package gateway

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/nuruhealth/nurugw/internal/auth"
	"github.com/nuruhealth/nurugw/internal/circuitbreaker"
	"github.com/nuruhealth/nurugw/internal/config"
	"github.com/nuruhealth/nurugw/internal/middleware"
	"github.com/nuruhealth/nurugw/internal/observability"
	"github.com/nuruhealth/nurugw/internal/proxy"
	"github.com/nuruhealth/nurugw/internal/ratelimit"
)

// ginModeOnce ensures gin.SetMode is only called once.
var ginModeOnce sync.Once

// Gateway is the assembled request pipeline.
type Gateway struct {
	cfg      *config.GatewayConfig
	logger   observability.Logger
	engine   *gin.Engine
	registry *circuitbreaker.Registry
	limiter  ratelimit.Limiter
	proxies  map[string]*proxy.UpstreamProxy
	fallback *proxy.FallbackResponder
}

// New builds a gateway from its configuration. The middleware stages
// run in a fixed order: recovery, request ID, metrics, authentication,
// rate limiting, access logging, then dispatch. Authentication before
// rate limiting keeps unauthenticated clients from consuming quota,
// and both reject before the access log starts.
func New(cfg *config.GatewayConfig, logger observability.Logger) (*Gateway, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	g := &Gateway{
		cfg:      cfg,
		logger:   logger,
		registry: circuitbreaker.NewRegistry(breakerConfig(cfg.CircuitBreaker), logger),
		proxies:  make(map[string]*proxy.UpstreamProxy),
		fallback: proxy.NewFallbackResponder(),
	}

	if err := g.buildProxies(); err != nil {
		return nil, err
	}
	g.buildLimiter()
	g.buildEngine()

	return g, nil
}

// breakerConfig maps the configured breaker settings onto the breaker
// package's config type.
func breakerConfig(cc config.CircuitBreakerConfig) *circuitbreaker.Config {
	return &circuitbreaker.Config{
		FailureRateThreshold: cc.FailureRateThreshold,
		WindowSize:           cc.WindowSize,
		MinCalls:             cc.MinCalls,
		OpenStateWait:        cc.OpenStateWait.Duration(),
		HalfOpenMaxCalls:     cc.HalfOpenMaxCalls,
		SuccessThreshold:     cc.SuccessThreshold,
	}
}

// buildProxies registers one circuit breaker and one proxy per
// configured upstream.
func (g *Gateway) buildProxies() error {
	for _, up := range g.cfg.Upstreams {
		target, err := url.Parse(up.URL)
		if err != nil {
			return fmt.Errorf("upstream %s: invalid url %q: %w", up.Name, up.URL, err)
		}

		cb := g.registry.RegisterWithConfig(up.Name, breakerConfig(g.cfg.BreakerConfigFor(up.Name)))

		g.proxies[up.Name] = proxy.NewUpstreamProxy(up.Name, target, cb,
			proxy.WithProxyLogger(g.logger),
			proxy.WithTimeout(g.cfg.Server.UpstreamTimeout.Duration()),
		)

		g.logger.Info("registered upstream",
			observability.String("name", up.Name),
			observability.String("prefix", up.Prefix),
			observability.String("url", up.URL),
			observability.Bool("public", up.Public),
		)
	}
	return nil
}

// buildLimiter creates the admission limiter, or a noop one when rate
// limiting is disabled.
func (g *Gateway) buildLimiter() {
	if !g.cfg.RateLimit.Enabled {
		g.limiter = ratelimit.NewNoopLimiter()
		return
	}
	g.limiter = ratelimit.NewFixedWindowLimiter(
		g.cfg.RateLimit.MaxRequests,
		g.cfg.RateLimit.Window.Duration(),
		ratelimit.WithLimiterLogger(g.logger),
	)
}

// publicPaths builds the full authentication bypass list: configured
// prefixes, prefixes of public upstreams, and the gateway's own probe
// and status endpoints.
func (g *Gateway) publicPaths() []string {
	paths := make([]string, 0, len(g.cfg.Auth.PublicPaths)+len(g.cfg.Upstreams)+2)
	paths = append(paths, g.cfg.Auth.PublicPaths...)
	for _, up := range g.cfg.Upstreams {
		if up.Public {
			paths = append(paths, up.Prefix)
		}
	}
	paths = append(paths, "/fallback/", "/api/gateway/")
	return paths
}

// buildEngine assembles the gin engine with the pipeline's stage order
// and the route table.
func (g *Gateway) buildEngine() {
	validator := auth.NewValidator(g.cfg.Auth, auth.WithValidatorLogger(g.logger))

	engine := gin.New()
	engine.Use(
		middleware.Recovery(g.logger),
		middleware.RequestID(),
		middleware.Metrics(),
		middleware.Auth(middleware.AuthConfig{
			Validator:      validator,
			PublicPaths:    g.publicPaths(),
			IdentityHeader: g.cfg.Auth.IdentityHeader,
			RoleHeader:     g.cfg.Auth.RoleHeader,
			EmailHeader:    g.cfg.Auth.EmailHeader,
			Logger:         g.logger,
		}),
		middleware.RateLimit(middleware.RateLimitConfig{
			Limiter:    g.limiter,
			KeyFunc:    ratelimit.ClientRouteKeyFunc,
			RetryAfter: int(g.cfg.RateLimit.RetryAfter.Duration().Seconds()),
			Logger:     g.logger,
		}),
		middleware.AccessLog(g.logger),
	)

	engine.GET("/fallback/:service", g.handleFallbackProbe)
	engine.GET("/api/gateway/:service/health", g.handleServiceHealth)
	engine.GET("/api/gateway/:service/info", g.handleServiceInfo)

	for _, up := range g.cfg.Upstreams {
		p := g.proxies[up.Name]
		prefix := strings.TrimSuffix(up.Prefix, "/")
		handler := gin.WrapH(p)
		engine.Any(prefix, handler)
		engine.Any(prefix+"/*proxyPath", handler)
	}

	engine.NoRoute(g.handleNoRoute)

	g.engine = engine
}

// Handler returns the gateway as an http.Handler.
func (g *Gateway) Handler() http.Handler {
	return g.engine
}

// Registry returns the circuit breaker registry.
func (g *Gateway) Registry() *circuitbreaker.Registry {
	return g.registry
}
