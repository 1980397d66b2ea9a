package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"casei/internal/logger"
)

// PermissionChecker reports whether a user holds a permission codename such
// as "api_app.change_change".
type PermissionChecker interface {
	HasPermission(ctx context.Context, userID, codename string) (bool, error)
}

// RequirePermission rejects authenticated users whose groups do not grant
// codename. It must run after AuthMiddleware.
func RequirePermission(checker PermissionChecker, codename string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": detailNotAuthenticated})
			return
		}

		ok, err := checker.HasPermission(c.Request.Context(), userID, codename)
		if err != nil {
			logger.Get().Errorw("permission check failed",
				"error", err.Error(),
				"user_id", userID,
				"permission", codename,
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "A server error occurred."})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": detailForbidden})
			return
		}
		c.Next()
	}
}
