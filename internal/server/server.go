package server

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gin-gonic/gin"

	"pdfqa-backend/internal/apikeys"
	"pdfqa-backend/internal/auth"
	"pdfqa-backend/internal/ingest"
	"pdfqa-backend/internal/llm/gemini"
	"pdfqa-backend/internal/pdfextract"
	"pdfqa-backend/internal/query"
	"pdfqa-backend/internal/services/health"
	"pdfqa-backend/internal/session"
	"pdfqa-backend/internal/shared/config"
	"pdfqa-backend/internal/shared/storage/db"
	"pdfqa-backend/internal/shared/telemetry"
	"pdfqa-backend/internal/users"
	"pdfqa-backend/internal/vectorstore/pinecone"
)

// App owns the composed HTTP surface and the resources behind it.
type App struct {
	Engine *gin.Engine

	database *sql.DB
	gemini   *gemini.Client
}

// NewApp wires configuration into a ready-to-serve application: storage,
// external clients, services and routes. Postgres is used when DATABASE_URL is
// set and reachable; otherwise the credential and account stores fall back to
// process memory, which loses issued keys on restart.
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	gin.SetMode(gin.ReleaseMode)

	app := &App{}

	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
		if err != nil {
			telemetry.Warn("db.unavailable", map[string]any{"err": err.Error()})
		} else if err := db.RunMigrations(ctx, database); err != nil {
			database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		} else {
			app.database = database
		}
	}

	var keyStore apikeys.Store
	var userRepo users.Repo
	if app.database != nil {
		keyStore = apikeys.NewPGStore(app.database)
		userRepo = &users.PGRepo{DB: app.database}
		telemetry.Info("storage.mode", map[string]any{"mode": "postgres"})
	} else {
		keyStore = apikeys.NewMemoryStore()
		userRepo = users.NewMemoryRepo()
		telemetry.Info("storage.mode", map[string]any{"mode": "memory"})
	}

	keySvc := apikeys.NewService(keyStore, cfg.Durability, nil)
	if warmed, err := keySvc.WarmCache(ctx); err != nil {
		telemetry.Warn("apikey.warm_cache_failed", map[string]any{"err": err.Error()})
	} else {
		telemetry.Info("apikey.warm_cache", map[string]any{"keys": warmed})
	}

	geminiClient, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiEmbedModel)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("gemini: %w", err)
	}
	app.gemini = geminiClient

	index, err := pinecone.NewClient(cfg.PineconeAPIKey, cfg.PineconeIndexHost)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("pinecone: %w", err)
	}

	sessions := session.NewManager()

	ingestPipeline := &ingest.Pipeline{
		Extractor: pdfextract.Extractor{},
		Chunker:   ingest.NewChunker(),
		Embedder:  geminiClient,
		Index:     index,
		Meter:     keySvc,
		Session:   sessions,
	}
	queryPipeline := &query.Pipeline{
		Embedder: geminiClient,
		Index:    index,
		Chat:     geminiClient,
		Session:  sessions,
	}

	deps := routeDeps{
		cfg:      cfg,
		health:   health.NewService(cfg.Environment()),
		keySvc:   keySvc,
		keys:     apikeys.NewHandler(keySvc, userRepo),
		google:   auth.NewGoogleService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, cfg.UIRedirectURL),
		ingest:   ingest.NewHandler(ingestPipeline, index, sessions),
		query:    query.NewHandler(queryPipeline),
	}

	app.Engine = newEngine(deps)
	return app, nil
}

// Close releases the database pool and the model client.
func (a *App) Close() {
	if a.database != nil {
		a.database.Close()
	}
	if a.gemini != nil {
		a.gemini.Close()
	}
}

// Addr returns a normalized listen address for the given port.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
