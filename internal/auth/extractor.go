package auth

import (
	"errors"
	"net/http"
	"strings"
)

// TokenExtractor extracts a raw credential from an HTTP request.
type TokenExtractor interface {
	Extract(r *http.Request) (string, error)
}

// HeaderExtractor extracts tokens from an HTTP header with a prefix,
// typically "Authorization: Bearer <token>".
type HeaderExtractor struct {
	header string
	prefix string
}

// NewHeaderExtractor creates a new header extractor. An empty header
// defaults to "Authorization" and an empty prefix to "Bearer ".
func NewHeaderExtractor(header, prefix string) *HeaderExtractor {
	if header == "" {
		header = "Authorization"
	}
	if prefix == "" {
		prefix = "Bearer "
	}
	return &HeaderExtractor{header: header, prefix: prefix}
}

// Extract extracts the token from the header.
func (e *HeaderExtractor) Extract(r *http.Request) (string, error) {
	authHeader := r.Header.Get(e.header)
	if authHeader == "" {
		return "", ErrMissingHeader
	}

	if len(authHeader) < len(e.prefix) || !strings.EqualFold(authHeader[:len(e.prefix)], e.prefix) {
		return "", ErrInvalidPrefix
	}

	return strings.TrimSpace(authHeader[len(e.prefix):]), nil
}

// CookieExtractor extracts tokens from a named cookie.
type CookieExtractor struct {
	cookie string
}

// NewCookieExtractor creates a new cookie extractor.
func NewCookieExtractor(cookie string) *CookieExtractor {
	return &CookieExtractor{cookie: cookie}
}

// Extract extracts the token from the cookie.
func (e *CookieExtractor) Extract(r *http.Request) (string, error) {
	cookie, err := r.Cookie(e.cookie)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrMissingCookie
		}
		return "", err
	}
	if cookie.Value == "" {
		return "", ErrMissingCookie
	}
	return cookie.Value, nil
}

// ChainExtractor tries multiple extractors in order and returns the
// first token found.
type ChainExtractor struct {
	extractors []TokenExtractor
}

// NewChainExtractor creates a new chain extractor.
func NewChainExtractor(extractors ...TokenExtractor) *ChainExtractor {
	return &ChainExtractor{extractors: extractors}
}

// Extract tries each extractor in order.
func (e *ChainExtractor) Extract(r *http.Request) (string, error) {
	for _, extractor := range e.extractors {
		if token, err := extractor.Extract(r); err == nil {
			return token, nil
		}
	}
	return "", ErrNoTokenFound
}

// DefaultExtractor returns the gateway's credential chain: the bearer
// header first, then the named cookie.
func DefaultExtractor(cookieName string) TokenExtractor {
	return NewChainExtractor(
		NewHeaderExtractor("", ""),
		NewCookieExtractor(cookieName),
	)
}
