package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"pdfqa-backend/internal/apikeys"
	"pdfqa-backend/internal/auth"
	"pdfqa-backend/internal/ingest"
	"pdfqa-backend/internal/pdfextract"
	"pdfqa-backend/internal/query"
	"pdfqa-backend/internal/services/health"
	"pdfqa-backend/internal/session"
	sharedauth "pdfqa-backend/internal/shared/auth"
	"pdfqa-backend/internal/shared/config"
	"pdfqa-backend/internal/users"
)

func testEngine(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := apikeys.NewMemoryStore()
	keySvc := apikeys.NewService(store, cfg.Durability, nil)
	userRepo := users.NewMemoryRepo()
	sessions := session.NewManager()

	ingestPipeline := &ingest.Pipeline{
		Extractor: pdfextract.Extractor{},
		Chunker:   ingest.NewChunker(),
		Meter:     keySvc,
		Session:   sessions,
	}
	queryPipeline := &query.Pipeline{Session: sessions}

	return newEngine(routeDeps{
		cfg:    cfg,
		health: health.NewService(cfg.Environment()),
		keySvc: keySvc,
		keys:   apikeys.NewHandler(keySvc, userRepo),
		google: auth.NewGoogleService("", "", "", ""),
		ingest: ingest.NewHandler(ingestPipeline, nil, sessions),
		query:  query.NewHandler(queryPipeline),
	})
}

func devConfig() config.Config {
	return config.Config{
		Env:                "dev",
		RateLimitPerMinute: 60,
		IssuePerDay:        2,
		Durability:         config.DurabilityBestEffort,
	}
}

func TestHealthEndpoint(t *testing.T) {
	r := testEngine(t, devConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "healthy" || body["environment"] != "development" {
		t.Fatalf("unexpected health payload: %v", body)
	}
}

func TestProtectedRoutesRequireAPIKey(t *testing.T) {
	r := testEngine(t, devConfig())

	for _, path := range []string{"/upload", "/ask"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "unauthorized") {
			t.Fatalf("%s: expected unauthorized code, got %s", path, rec.Body.String())
		}
	}
}

func TestCreateKeyRateLimitedPerAddress(t *testing.T) {
	cfg := devConfig()
	cfg.IssuePerDay = 2
	r := testEngine(t, cfg)

	// The limiter sits in front of authentication, so unauthenticated probes
	// consume the daily allowance too.
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/create-api-key", nil)
		req.RemoteAddr = "10.1.2.3:1234"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusUnauthorized || codes[1] != http.StatusUnauthorized {
		t.Fatalf("expected first two attempts to reach auth, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected third attempt rate limited, got %v", codes)
	}
}

func TestIssueAndUseKey(t *testing.T) {
	t.Setenv("JWT_SECRET", "routes-test-secret")
	r := testEngine(t, devConfig())

	token, err := sharedauth.SignIdentityToken(sharedauth.Claims{
		Email:    "dana@example.com",
		Name:     "Dana",
		Provider: "google",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "google:123",
		},
	})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/create-api-key", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		APIKey    string `json:"api_key"`
		ExpiresAt string `json:"expires_at"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.APIKey == "" || resp.ExpiresAt == "" {
		t.Fatalf("incomplete response: %+v", resp)
	}

	// The fresh key authenticates; with no upload yet, /ask reports the
	// missing document rather than an auth failure.
	askReq := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"hi"}`))
	askReq.Header.Set("Content-Type", "application/json")
	askReq.Header.Set("X-API-Key", resp.APIKey)
	askRec := httptest.NewRecorder()
	r.ServeHTTP(askRec, askReq)

	if askRec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", askRec.Code, askRec.Body.String())
	}
	if !strings.Contains(askRec.Body.String(), "no_active_document") {
		t.Fatalf("expected no_active_document, got %s", askRec.Body.String())
	}
}

func TestDebugRoutesHiddenInProduction(t *testing.T) {
	cfg := devConfig()
	cfg.Env = "production"
	r := testEngine(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for /metrics in production, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/debug/index-info", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for debug route in production, got %d", rec.Code)
	}
}

func TestMetricsExposedInDevelopment(t *testing.T) {
	r := testEngine(t, devConfig())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "pdf_uploads_total") {
		t.Fatalf("metrics body missing counters: %s", rec.Body.String())
	}
}

func TestAddr(t *testing.T) {
	cases := map[string]string{
		"":      ":8080",
		"9090":  ":9090",
		":7070": ":7070",
	}
	for in, want := range cases {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
