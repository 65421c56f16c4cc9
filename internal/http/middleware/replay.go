// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements replay detection for the analyze endpoint. A repeat
// analyze request for a conversation that already has a cached analysis is
// a cheap read, not a billable LLM call, so the detector marks it and lets
// it bypass the rate limiter. The mark is advisory: the analyzer performs
// its own cache lookup and remains correct without it.
package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// Context keys used internally to stash replay state.
const (
	ctxKeyReplay     = "replay.cached"
	ctxKeyRateBypass = "rate.bypass"
)

// CacheLookup answers whether a stored analysis already exists for the
// conversation id at the given time. Lookup failures must not block normal
// processing; return an error only for diagnostics.
type CacheLookup func(ctx context.Context, conversationID string, now time.Time) (exists bool, err error)

// IsReplay reports whether the detector found a cached analysis for this
// request's conversation.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// ReplayDetector marks analyze requests whose conversation already has a
// cached result. Detection is keyed on the :id route parameter; requests
// without one pass through untouched.
func ReplayDetector(lookup CacheLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("id")
		if conversationID == "" || lookup == nil {
			c.Next()
			return
		}
		if exists, _ := lookup(c.Request.Context(), conversationID, time.Now().UTC()); exists {
			c.Set(ctxKeyReplay, true)
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	}
}
