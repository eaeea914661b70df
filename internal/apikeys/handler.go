package apikeys

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	sharedauth "pdfqa-backend/internal/shared/auth"
	"pdfqa-backend/internal/shared/metrics"
	"pdfqa-backend/internal/shared/server/respond"
	"pdfqa-backend/internal/shared/telemetry"
	"pdfqa-backend/internal/users"
)

type Handler struct {
	svc   *Service
	users users.Repo
}

func NewHandler(svc *Service, repo users.Repo) *Handler {
	return &Handler{svc: svc, users: repo}
}

// RegisterRoutes attaches the key-issuance endpoint. Rate limiting is applied
// by the router, keyed per client address.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/create-api-key", h.create)
}

type createResponse struct {
	APIKey    string `json:"api_key"`
	ExpiresAt string `json:"expires_at"`
}

// create verifies the bearer identity token, upserts the account and issues a
// fresh key. Token verification failure is the single 401 path here; malformed
// and expired tokens are not distinguished.
func (h *Handler) create(c *gin.Context) {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Authentication required", nil)
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

	claims, err := sharedauth.VerifyIdentityToken(token)
	if err != nil {
		respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Invalid authentication token", nil)
		return
	}

	ctx := c.Request.Context()
	userID := claims.Subject
	now := time.Now().UTC()

	if _, err := h.users.GetByID(ctx, userID); err != nil {
		if !errors.Is(err, users.ErrNotFound) {
			respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "Failed to load account", nil)
			return
		}
		account := users.Account{
			ID:           userID,
			Email:        claims.Email,
			DisplayName:  displayName(claims),
			AuthProvider: provider(claims),
			CreatedAt:    now,
			LastLogin:    now,
		}
		if err := h.users.Create(ctx, account); err != nil {
			respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "Failed to create account", nil)
			return
		}
		telemetry.Info("user.created", map[string]any{"user_id": userID, "email": claims.Email})
	} else {
		if err := h.users.UpdateLastLogin(ctx, userID, now); err != nil {
			telemetry.Warn("user.last_login_update_failed", map[string]any{
				"user_id": userID,
				"err":     err.Error(),
			})
		}
		telemetry.Info("user.login", map[string]any{"user_id": userID})
	}

	rec, err := h.svc.Issue(ctx, userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "Failed to create API key", nil)
		return
	}

	metrics.IncKeyIssued()
	respond.JSON(c, http.StatusOK, createResponse{
		APIKey:    rec.Key,
		ExpiresAt: rec.ExpiresAt.Format(time.RFC3339),
	})
}

func displayName(claims sharedauth.Claims) string {
	if claims.Name != "" {
		return claims.Name
	}
	if at := strings.IndexByte(claims.Email, '@'); at > 0 {
		return claims.Email[:at]
	}
	return claims.Email
}

func provider(claims sharedauth.Claims) string {
	if claims.Provider != "" {
		return claims.Provider
	}
	return "email"
}
