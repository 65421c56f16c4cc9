// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller's identity once per request and stashes the
// outcome in the Gin context. Most endpoints accept anonymous callers and
// degrade to demo behavior, so resolution never aborts the request here;
// handlers that require identity consult the stashed outcome and reject.
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pitchloop/sales-coach-backend/internal/auth"
)

const (
	ctxKeyIdentity   = "auth.identity"
	ctxKeyAuthErr    = "auth.error"
	ctxKeyAuthMethod = "auth.method"
	ctxKeyRateKey    = "userID" // consumed by the rate limiter's key function
)

// IdentityResolver is the credential-resolution surface this middleware
// needs; tests substitute a stub.
type IdentityResolver interface {
	Resolve(ctx context.Context, req *http.Request) (*auth.Identity, error)
}

// ResolveIdentity tries the cookie and bearer credential strategies and
// records the result. Three outcomes are distinguished downstream:
// a verified identity, anonymous (no credentials), and failed credentials.
func ResolveIdentity(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, err := resolver.Resolve(c.Request.Context(), c.Request)
		if err != nil {
			c.Set(ctxKeyAuthErr, true)
		}
		if ident != nil {
			c.Set(ctxKeyIdentity, ident)
			c.Set(ctxKeyAuthMethod, ident.Method)
			c.Set(ctxKeyRateKey, ident.UserID)
		}
		c.Next()
	}
}

// IdentityFrom returns the verified identity, or nil for anonymous callers
// and failed credentials.
func IdentityFrom(c *gin.Context) *auth.Identity {
	if v, ok := c.Get(ctxKeyIdentity); ok {
		if id, ok := v.(*auth.Identity); ok {
			return id
		}
	}
	return nil
}

// CredentialsFailed reports whether the caller presented credentials that
// did not verify. Endpoints requiring auth respond 401 on this rather than
// treating the caller as anonymous.
func CredentialsFailed(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyAuthErr)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
