package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pdfqa-backend/internal/shared/server/respond"
)

const (
	apiKeyHeader = "X-API-Key"

	apiKeyKey = "apiKey"
	userIDKey = "userId"
)

// CredentialValidator checks an API key and returns the owning user ID.
type CredentialValidator interface {
	Validate(ctx context.Context, key string) (string, error)
}

// APIKeyAuth validates the X-API-Key header and stores the credential and its
// owner in the request context.
func APIKeyAuth(validator CredentialValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		key := strings.TrimSpace(c.GetHeader(apiKeyHeader))
		if key == "" {
			respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "API key required", nil)
			return
		}

		userID, err := validator.Validate(c.Request.Context(), key)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Invalid or expired API key", nil)
			return
		}

		c.Set(apiKeyKey, key)
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// APIKeyFromContext fetches the API key set by APIKeyAuth.
func APIKeyFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(apiKeyKey)
	if key, ok := val.(string); ok {
		return key
	}
	return ""
}

// UserIDFromContext fetches the user ID set by APIKeyAuth.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}
