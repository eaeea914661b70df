package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pdfqa-backend/internal/apikeys"
	"pdfqa-backend/internal/auth"
	"pdfqa-backend/internal/ingest"
	"pdfqa-backend/internal/query"
	"pdfqa-backend/internal/services/health"
	"pdfqa-backend/internal/shared/config"
	"pdfqa-backend/internal/shared/metrics"
	"pdfqa-backend/internal/shared/server/middleware"
)

type routeDeps struct {
	cfg    config.Config
	health *health.Service
	keySvc *apikeys.Service
	keys   *apikeys.Handler
	google *auth.GoogleService
	ingest *ingest.Handler
	query  *query.Handler
}

// credentialValidator adapts the credential service to the auth middleware,
// which only needs the owning user ID.
type credentialValidator struct {
	svc *apikeys.Service
}

func (v credentialValidator) Validate(ctx context.Context, key string) (string, error) {
	rec, err := v.svc.Validate(ctx, key)
	if err != nil {
		return "", err
	}
	return rec.UserID, nil
}

func newEngine(deps routeDeps) *gin.Engine {
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.cfg.CORSAllowOrigin),
	)

	registerRoutes(engine, deps)
	return engine
}

func registerRoutes(r *gin.Engine, deps routeDeps) {
	limiter := middleware.NewFixedWindowLimiter(nil)
	perCredential := middleware.WindowRule{Window: time.Minute, Limit: deps.cfg.RateLimitPerMinute}
	perAddress := middleware.WindowRule{Window: 24 * time.Hour, Limit: deps.cfg.IssuePerDay}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, deps.health.Status())
	})

	deps.google.RegisterRoutes(&r.RouterGroup)

	issue := r.Group("/")
	issue.Use(middleware.RateLimit(limiter, perAddress, middleware.ClientAddressKey))
	deps.keys.RegisterRoutes(issue)

	authed := r.Group("/")
	authed.Use(
		middleware.APIKeyAuth(credentialValidator{svc: deps.keySvc}),
		middleware.RateLimit(limiter, perCredential, middleware.CredentialKey),
	)
	deps.ingest.RegisterRoutes(authed)
	deps.query.RegisterRoutes(authed)

	// Debug and metrics surfaces stay off production deployments.
	if deps.cfg.Environment() != "production" {
		debug := r.Group("/")
		debug.Use(middleware.APIKeyAuth(credentialValidator{svc: deps.keySvc}))
		deps.ingest.RegisterDebugRoutes(debug)

		r.GET("/metrics", metrics.Handler())
	}
}
