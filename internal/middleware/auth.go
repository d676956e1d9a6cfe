package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nuruhealth/nurugw/internal/auth"
	"github.com/nuruhealth/nurugw/internal/observability"
)

// IdentityKey is the gin context key under which the authenticated
// identity is stored.
const IdentityKey = "identity"

// Default identity propagation headers.
const (
	DefaultIdentityHeader = "X-User-Id"
	DefaultRoleHeader     = "X-User-Role"
	DefaultEmailHeader    = "X-User-Email"
)

// AuthConfig holds configuration for the authentication middleware.
type AuthConfig struct {
	// Validator authenticates the request credential.
	Validator *auth.Validator

	// PublicPaths is the prefix allow-list that bypasses authentication.
	PublicPaths []string

	// IdentityHeader, RoleHeader and EmailHeader name the headers the
	// derived identity is propagated under.
	IdentityHeader string
	RoleHeader     string
	EmailHeader    string

	Logger observability.Logger
}

// Auth returns the authentication stage. Requests matching a public
// path prefix or using the OPTIONS method pass through unchecked.
// Authenticated requests carry the derived identity to the upstream in
// request headers; everything else terminates with a 401 response.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger()
	}
	if cfg.IdentityHeader == "" {
		cfg.IdentityHeader = DefaultIdentityHeader
	}
	if cfg.RoleHeader == "" {
		cfg.RoleHeader = DefaultRoleHeader
	}
	if cfg.EmailHeader == "" {
		cfg.EmailHeader = DefaultEmailHeader
	}

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || isPublicPath(cfg.PublicPaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		identity, err := cfg.Validator.Authenticate(c.Request)
		if err != nil {
			message := "Invalid or expired token"
			if auth.IsMissing(err) {
				message = "Missing authentication token"
			}

			cfg.Logger.Warn("authentication failed",
				observability.String("path", c.Request.URL.Path),
				observability.String("clientIP", c.ClientIP()),
				observability.Error(err),
			)

			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("Unauthorized", message))
			return
		}

		// Stale identity headers from the client are never trusted.
		c.Request.Header.Set(cfg.IdentityHeader, identity.Subject)
		c.Request.Header.Set(cfg.RoleHeader, identity.Role)
		c.Request.Header.Set(cfg.EmailHeader, identity.Email)

		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// isPublicPath reports whether the path matches any allow-list prefix.
func isPublicPath(prefixes []string, path string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
