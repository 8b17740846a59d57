package middleware

import (
	"github.com/gin-gonic/gin"

	"lms/internal/core/security"
)

// RequirePermission middleware checks if user has required permission.
// Superusers and "<resource>:manage" holders pass.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := security.RequirePermission(c.Request.Context(), permission); err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAnyPermission middleware checks if user has any of the required permissions.
func RequireAnyPermission(permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var last error
		for _, p := range permissions {
			if last = security.RequirePermission(c.Request.Context(), p); last == nil {
				c.Next()
				return
			}
		}
		_ = c.Error(last)
		c.Abort()
	}
}
