package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakeValidator struct {
	userID string
	err    error
	seen   []string
}

func (f *fakeValidator) Validate(ctx context.Context, key string) (string, error) {
	f.seen = append(f.seen, key)
	if f.err != nil {
		return "", f.err
	}
	return f.userID, nil
}

func authRouter(v CredentialValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKeyAuth(v))
	r.POST("/upload", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"api_key": APIKeyFromContext(c),
			"user_id": UserIDFromContext(c),
		})
	})
	return r
}

func TestAPIKeyAuthMissingHeader(t *testing.T) {
	v := &fakeValidator{}
	r := authRouter(v)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/upload", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(v.seen) != 0 {
		t.Fatalf("validator must not run without a key")
	}
	if !strings.Contains(rec.Body.String(), "API key required") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestAPIKeyAuthInvalidKey(t *testing.T) {
	v := &fakeValidator{err: errors.New("unauthorized")}
	r := authRouter(v)

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.Header.Set("X-API-Key", "bogus")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid or expired API key") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestAPIKeyAuthValidKeyPopulatesContext(t *testing.T) {
	v := &fakeValidator{userID: "u42"}
	r := authRouter(v)

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.Header.Set("X-API-Key", "good-key")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"api_key":"good-key"`) {
		t.Fatalf("api key missing from context: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"user_id":"u42"`) {
		t.Fatalf("user id missing from context: %s", rec.Body.String())
	}
	if len(v.seen) != 1 || v.seen[0] != "good-key" {
		t.Fatalf("validator saw %v", v.seen)
	}
}

func TestAPIKeyAuthSkipsPreflight(t *testing.T) {
	v := &fakeValidator{err: errors.New("unauthorized")}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKeyAuth(v))
	r.OPTIONS("/upload", func(c *gin.Context) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/upload", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(v.seen) != 0 {
		t.Fatalf("validator must not run for preflight")
	}
}
