package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context keys set by the middleware
const (
	ContextUserID = "user_id"
	ContextRole   = "user_role"
)

// Middleware authenticates the bearer token and loads the caller's identity
// into the request context.
func Middleware(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Please login to access this resource",
			})
			return
		}

		claims, err := m.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Authentication failed",
			})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// RequireRoles rejects authenticated callers whose role is not listed.
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(c *gin.Context) {
		role := c.GetString(ContextRole)
		if !allowed[role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "Role (" + role + ") is not allowed to access this resource",
			})
			return
		}
		c.Next()
	}
}

// CallerID returns the authenticated user's ID from the context
func CallerID(c *gin.Context) int64 {
	return c.GetInt64(ContextUserID)
}

// CallerRole returns the authenticated user's role from the context
func CallerRole(c *gin.Context) string {
	return c.GetString(ContextRole)
}
