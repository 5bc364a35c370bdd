package demo

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CodeDemoMode is the error code of a write refused in demo mode.
const CodeDemoMode = "demo_mode"

// Middleware keeps the broker read-only in demo builds: attempts and
// settings changes are refused so the sample database stays pristine.
type Middleware struct {
	enabled bool
}

func NewMiddleware(enabled bool) *Middleware {
	return &Middleware{enabled: enabled}
}

func (m *Middleware) IsEnabled() bool {
	return m.enabled
}

// Handler returns a gin middleware that rejects every request that is not
// GET, HEAD or OPTIONS while demo mode is on.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.enabled {
			c.Next()
			return
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "this action is disabled in demo mode",
			"code":  CodeDemoMode,
		})
	}
}

// ContextKeyDemoMode stores the demo flag in the gin context.
const ContextKeyDemoMode = "demo_mode"

// InjectContext exposes the demo flag to handlers, which report it in
// /health.
func (m *Middleware) InjectContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextKeyDemoMode, m.enabled)
		c.Next()
	}
}
