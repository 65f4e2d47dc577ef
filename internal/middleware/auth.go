package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "fairdice-backend/internal/errors"
	"fairdice-backend/internal/services"
)

func abortWith(c *gin.Context, code apperrors.Code, message string) {
	c.AbortWithStatusJSON(code.HTTPStatus(), gin.H{
		"success": false,
		"code":    code,
		"error":   message,
	})
}

// ServiceAuth admits requests carrying a valid service token. The ledger
// trusts deposit, withdrawal, mint and exchange proofs unconditionally, so
// only the upstream service that confirmed the transaction may submit them.
func ServiceAuth(jwtService *services.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWith(c, apperrors.CodeUnauthorized, "Authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWith(c, apperrors.CodeUnauthorized, "Invalid authorization format")
			return
		}

		claims, err := jwtService.ValidateToken(parts[1])
		if err != nil {
			abortWith(c, apperrors.CodeUnauthorized, "Invalid or expired token")
			return
		}

		c.Set("service", claims.Service)
		c.Next()
	}
}

// RateLimit caps requests per client IP and route.
func RateLimit(limiter services.RateLimiter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("ip:%s:%s", c.ClientIP(), c.FullPath())

		allowed, err := limiter.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			// fail open, the ledger does not depend on the limiter
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%.0f", window.Seconds()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"code":        apperrors.CodeRateLimited,
				"error":       "Rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			return
		}

		c.Next()
	}
}
