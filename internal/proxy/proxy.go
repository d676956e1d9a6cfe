// Package proxy dispatches requests to upstream services through a
// circuit breaker and synthesizes fallback responses when an upstream
// is unavailable.
package proxy

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nuruhealth/nurugw/internal/circuitbreaker"
	"github.com/nuruhealth/nurugw/internal/observability"
)

// TracerName is the name of the tracer.
const TracerName = "nurugw"

// outcomeKey carries the breaker's Outcome through the request context
// so that the response hooks report against the admitting generation.
type outcomeKey struct{}

// hopHeaders are headers that should not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// UpstreamProxy forwards requests to a single upstream service. Every
// call passes through the upstream's circuit breaker: a rejected call
// receives the fallback response without any network attempt, and the
// outcome of a forwarded call is recorded into the breaker's rolling
// window. Responses with a 5xx status are passed through to the client
// but counted as failures; transport errors and timeouts produce the
// fallback response.
type UpstreamProxy struct {
	name     string
	target   *url.URL
	breaker  *circuitbreaker.CircuitBreaker
	fallback *FallbackResponder
	logger   observability.Logger
	timeout  time.Duration

	rp *httputil.ReverseProxy
}

// Option configures an UpstreamProxy.
type Option func(*UpstreamProxy)

// WithProxyLogger sets the logger.
func WithProxyLogger(logger observability.Logger) Option {
	return func(p *UpstreamProxy) {
		p.logger = logger
	}
}

// WithTransport sets the transport used for upstream calls.
func WithTransport(transport http.RoundTripper) Option {
	return func(p *UpstreamProxy) {
		p.rp.Transport = transport
	}
}

// WithTimeout sets the per-call upstream timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(p *UpstreamProxy) {
		p.timeout = timeout
	}
}

// WithFallback sets the fallback responder.
func WithFallback(fallback *FallbackResponder) Option {
	return func(p *UpstreamProxy) {
		p.fallback = fallback
	}
}

// NewUpstreamProxy creates a proxy for the named upstream.
func NewUpstreamProxy(name string, target *url.URL, breaker *circuitbreaker.CircuitBreaker, opts ...Option) *UpstreamProxy {
	p := &UpstreamProxy{
		name:     name,
		target:   target,
		breaker:  breaker,
		fallback: NewFallbackResponder(),
		logger:   observability.NopLogger(),
	}

	p.rp = &httputil.ReverseProxy{
		Director:       p.director,
		ModifyResponse: p.modifyResponse,
		ErrorHandler:   p.handleError,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name returns the upstream name.
func (p *UpstreamProxy) Name() string {
	return p.name
}

// ServeHTTP implements http.Handler.
func (p *UpstreamProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(r.Context(), "proxy "+p.name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("upstream.name", p.name),
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
			attribute.String("http.host", p.target.Host),
		),
	)
	defer span.End()
	r = r.WithContext(ctx)

	done, err := p.breaker.Allow()
	if err != nil {
		reason := "open"
		if errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			reason = "probe_budget"
		}
		recordFallback(p.name, reason)
		span.SetAttributes(
			attribute.Bool("fallback", true),
			attribute.String("fallback.reason", reason),
		)

		p.logger.Warn("short-circuiting upstream call",
			observability.String("upstream", p.name),
			observability.String("path", r.URL.Path),
			observability.Error(err),
		)
		p.fallback.Respond(w, p.name)
		return
	}

	r = r.WithContext(context.WithValue(r.Context(), outcomeKey{}, done))

	if p.timeout > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), p.timeout)
		defer cancel()
		r = r.WithContext(ctx)
	}

	start := time.Now()
	p.rp.ServeHTTP(w, r)
	recordUpstreamDuration(p.name, time.Since(start))
}

// director rewrites the request for the upstream target. The request
// path is forwarded unchanged.
func (p *UpstreamProxy) director(req *http.Request) {
	req.URL.Scheme = p.target.Scheme
	req.URL.Host = p.target.Host

	for _, h := range hopHeaders {
		req.Header.Del(h)
	}

	if clientIP, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		if prior := req.Header.Get("X-Forwarded-For"); prior != "" {
			clientIP = prior + ", " + clientIP
		}
		req.Header.Set("X-Forwarded-For", clientIP)
	}

	if req.TLS != nil {
		req.Header.Set("X-Forwarded-Proto", "https")
	} else {
		req.Header.Set("X-Forwarded-Proto", "http")
	}
	req.Header.Set("X-Forwarded-Host", req.Host)

	req.Host = p.target.Host
}

// outcomeFromContext retrieves the Outcome stored by ServeHTTP.
func outcomeFromContext(ctx context.Context) circuitbreaker.Outcome {
	if done, ok := ctx.Value(outcomeKey{}).(circuitbreaker.Outcome); ok {
		return done
	}
	return func(bool) {}
}

// modifyResponse records the call outcome. A 5xx status counts as a
// failure but the response still reaches the client.
func (p *UpstreamProxy) modifyResponse(resp *http.Response) error {
	done := outcomeFromContext(resp.Request.Context())
	span := trace.SpanFromContext(resp.Request.Context())
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= http.StatusInternalServerError {
		done(false)
		recordUpstreamRequest(p.name, "failure")
		span.SetAttributes(attribute.Bool("error", true))
	} else {
		done(true)
		recordUpstreamRequest(p.name, "success")
	}
	return nil
}

// handleError records a transport failure and serves the fallback.
func (p *UpstreamProxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	outcomeFromContext(r.Context())(false)
	recordUpstreamRequest(p.name, errorOutcome(err))
	recordFallback(p.name, "upstream_error")

	span := trace.SpanFromContext(r.Context())
	span.RecordError(err)
	span.SetAttributes(attribute.Bool("error", true))

	p.logger.Error("upstream call failed",
		observability.String("upstream", p.name),
		observability.String("path", r.URL.Path),
		observability.Error(err),
	)
	p.fallback.Respond(w, p.name)
}

// errorOutcome classifies a transport error for metrics.
func errorOutcome(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
