package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pdfqa-backend/internal/shared/telemetry"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		reqID := RequestIDFromContext(c)

		fields := map[string]any{
			"request_id":  reqID,
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      status,
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if userID := UserIDFromContext(c); userID != "" {
			fields["user_id"] = userID
		}
		if key := APIKeyFromContext(c); key != "" {
			fields["api_key_prefix"] = keyPrefix(key)
		}
		if ns, ok := c.Get("namespace"); ok {
			fields["namespace"] = ns
		}

		telemetry.Info("request.complete", fields)
	}
}

// keyPrefix truncates a credential for logging. Full keys never hit the logs.
func keyPrefix(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8] + "..."
}
