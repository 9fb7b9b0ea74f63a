package admin

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chatrelay/chatrelay/internal/http/api/admin/handlers"
	"github.com/chatrelay/chatrelay/internal/quota"
)

// RegisterAdminRoutes registers privileged entitlement and reset endpoints.
// Callers authenticate with a bearer token matching the configured secret.
func RegisterAdminRoutes(r *gin.Engine, store *quota.Store, secret string) {
	if r == nil || store == nil {
		return
	}

	adminGroup := r.Group("/v0/admin")
	adminGroup.Use(adminAuthMiddleware(secret))

	entitlementHandler := handlers.NewEntitlementHandler(store)
	adminGroup.PUT("/users/:id/entitlement", entitlementHandler.Update)

	usageHandler := handlers.NewUsageHandler(store)
	adminGroup.POST("/usage/reset", usageHandler.Reset)
}

// adminAuthMiddleware validates the shared admin secret.
func adminAuthMiddleware(secret string) gin.HandlerFunc {
	secret = strings.TrimSpace(secret)
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin api disabled"})
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)

		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid credential"})
			return
		}
		c.Next()
	}
}
