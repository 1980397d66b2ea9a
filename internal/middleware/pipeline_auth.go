package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"casei/internal/logger"
)

const (
	pipelineKeyHeader = "X-API-Key"
	apiKeyScheme      = "Api-Key "
)

// PipelineKey guards the machine-to-machine routes that scheduled jobs call
// (the GCMD keyword sync). The key is read from X-API-Key or from an
// "Authorization: Api-Key <key>" header.
func PipelineKey(expected string) gin.HandlerFunc {
	log := logger.Named("pipeline")
	return func(c *gin.Context) {
		if expected == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				failure("PIPELINE_NOT_CONFIGURED", "Pipeline endpoints are not configured"))
			return
		}

		presented := pipelineKeyFrom(c.Request)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) != 1 {
			log.Warnw("rejected pipeline call",
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP(),
				"key_present", presented != "")
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				failure("INVALID_API_KEY", "Invalid or missing API key"))
			return
		}
		c.Next()
	}
}

func pipelineKeyFrom(r *http.Request) string {
	if key := r.Header.Get(pipelineKeyHeader); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, apiKeyScheme) {
		return strings.TrimSpace(strings.TrimPrefix(auth, apiKeyScheme))
	}
	return ""
}
