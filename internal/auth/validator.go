// Package auth provides credential extraction and JWT validation for
// the gateway. An identity is derived per request from a validated
// token and propagated to upstreams via headers only; nothing is
// persisted.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/nuruhealth/nurugw/internal/config"
	"github.com/nuruhealth/nurugw/internal/observability"
)

// Identity is the per-request principal derived from a validated token.
type Identity struct {
	// Subject is the principal identifier (username).
	Subject string

	// Role is the token's role claim, or the configured default when
	// the token carries none.
	Role string

	// Email is the token's email claim. When the token carries none it
	// mirrors the subject, so the email header is always populated.
	Email string
}

// Validator validates bearer tokens and derives identities.
type Validator struct {
	secret      []byte
	issuer      string
	defaultRole string
	clockSkew   time.Duration
	extractor   TokenExtractor
	logger      observability.Logger
}

// ValidatorOption is a functional option for the validator.
type ValidatorOption func(*Validator)

// WithValidatorLogger sets the logger for the validator.
func WithValidatorLogger(logger observability.Logger) ValidatorOption {
	return func(v *Validator) {
		v.logger = logger
	}
}

// WithExtractor sets the token extractor.
func WithExtractor(extractor TokenExtractor) ValidatorOption {
	return func(v *Validator) {
		v.extractor = extractor
	}
}

// NewValidator creates a new validator from auth configuration.
func NewValidator(cfg config.AuthConfig, opts ...ValidatorOption) *Validator {
	v := &Validator{
		secret:      []byte(cfg.Secret),
		issuer:      cfg.Issuer,
		defaultRole: cfg.DefaultRole,
		clockSkew:   cfg.ClockSkew.Duration(),
		extractor:   DefaultExtractor(cfg.CookieName),
		logger:      observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Validate verifies a raw token and returns the derived identity.
// Any failure, whatever its cause, resolves to an *Error.
func (v *Validator) Validate(ctx context.Context, token string) (*Identity, error) {
	start := time.Now()

	if token == "" {
		recordValidation("error", string(ReasonMissing), time.Since(start))
		return nil, NewError(ReasonMissing, "token is empty", nil)
	}

	if strings.Count(token, ".") != 2 {
		recordValidation("error", string(ReasonMalformed), time.Since(start))
		return nil, NewError(ReasonMalformed, "token is malformed", nil)
	}

	parseOpts := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, v.secret),
		jwt.WithValidate(true),
		jwt.WithContext(ctx),
		jwt.WithAcceptableSkew(v.clockSkew),
	}
	if v.issuer != "" {
		parseOpts = append(parseOpts, jwt.WithIssuer(v.issuer))
	}

	tok, err := jwt.Parse([]byte(token), parseOpts...)
	if err != nil {
		reason := classify(err)
		recordValidation("error", string(reason), time.Since(start))
		return nil, NewError(reason, "token validation failed", err)
	}

	identity := &Identity{
		Subject: tok.Subject(),
		Role:    v.defaultRole,
	}
	if role, ok := tok.Get("role"); ok {
		if s, ok := role.(string); ok && s != "" {
			identity.Role = s
		}
	}
	if email, ok := tok.Get("email"); ok {
		if s, ok := email.(string); ok {
			identity.Email = s
		}
	}
	if identity.Email == "" {
		identity.Email = identity.Subject
	}

	recordValidation("success", "", time.Since(start))
	v.logger.Debug("token validated",
		observability.String("subject", identity.Subject),
		observability.String("role", identity.Role),
	)

	return identity, nil
}

// Authenticate extracts and validates the request's credential. It is
// the single entry point used by the pipeline: a request either yields
// an identity or an *Error.
func (v *Validator) Authenticate(r *http.Request) (*Identity, error) {
	token, err := v.extractor.Extract(r)
	if err != nil {
		recordValidation("error", string(ReasonMissing), 0)
		return nil, NewError(ReasonMissing, "missing authentication token", err)
	}

	return v.Validate(r.Context(), token)
}

// classify maps a validation error to a failure reason. Everything
// that is not recognizably an expiry or timing problem collapses into
// ReasonInvalid, matching the gateway's historical behavior.
func classify(err error) Reason {
	if errors.Is(err, jwt.ErrTokenExpired()) || errors.Is(err, jwt.ErrTokenNotYetValid()) {
		return ReasonExpired
	}
	return ReasonInvalid
}
