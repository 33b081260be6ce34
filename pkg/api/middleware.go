package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ai-council/councild/pkg/config"
)

// Context keys set by the identity middleware.
const (
	ctxPrincipal = "principal"
	ctxRole      = "role"
)

// Caller identity headers. Authentication itself happens upstream (API
// gateway); the control plane trusts these headers for quota tiering.
const (
	headerPrincipal = "X-Principal"
	headerRole      = "X-Role"
)

// identity resolves the caller's principal and role from request
// headers. Missing or unknown values degrade to the anonymous demo
// tier.
func identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := c.GetHeader(headerPrincipal)
		if principal == "" {
			principal = "anonymous"
		}

		role := config.Role(c.GetHeader(headerRole))
		if !role.IsValid() {
			role = config.RoleDemo
		}

		c.Set(ctxPrincipal, principal)
		c.Set(ctxRole, role)
		c.Next()
	}
}

// caller returns the identity placed on the context by the middleware.
func caller(c *gin.Context) (string, config.Role) {
	principal := c.GetString(ctxPrincipal)
	if principal == "" {
		principal = "anonymous"
	}
	role, ok := c.Get(ctxRole)
	if !ok {
		return principal, config.RoleDemo
	}
	return principal, role.(config.Role)
}

// requestLogger logs one line per request with latency and status.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		slog.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"principal", c.GetString(ctxPrincipal))
	}
}
