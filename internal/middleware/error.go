package middleware

import (
	"github.com/gin-gonic/gin"

	apperrors "casei/internal/errors"
	"casei/internal/logger"
)

// failure is the envelope of an unsuccessful response.
func failure(code, message string) gin.H {
	return gin.H{
		"success": false,
		"message": message,
		"data":    nil,
		"code":    code,
	}
}

// ErrorHandler writes the envelope for an error a handler pushed with
// c.Error without responding itself. Only the last error is reported.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr, known := apperrors.Resolve(c.Errors.Last().Err)
		if !known || appErr.Internal != nil {
			logger.Named("http").Errorw("request failed",
				"code", appErr.Code,
				"error", appErr.Internal,
				"method", c.Request.Method,
				"route", c.FullPath(),
			)
		}
		c.AbortWithStatusJSON(appErr.StatusCode, failure(appErr.Code, appErr.Message))
	}
}
