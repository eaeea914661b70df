package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestAllowWithinWindow(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewFixedWindowLimiter(func() time.Time { return now })
	rule := WindowRule{Window: time.Minute, Limit: 2}

	for i := 0; i < 2; i++ {
		if ok, _ := limiter.Allow("k", rule); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	ok, retryAfter := limiter.Allow("k", rule)
	if ok {
		t.Fatalf("third request should be rejected")
	}
	if retryAfter != time.Minute {
		t.Fatalf("expected full window remaining, got %v", retryAfter)
	}
}

func TestAllowWindowRollover(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewFixedWindowLimiter(func() time.Time { return now })
	rule := WindowRule{Window: time.Minute, Limit: 1}

	if ok, _ := limiter.Allow("k", rule); !ok {
		t.Fatalf("first request should be allowed")
	}
	if ok, _ := limiter.Allow("k", rule); ok {
		t.Fatalf("second request should be rejected")
	}

	now = now.Add(time.Minute)
	if ok, _ := limiter.Allow("k", rule); !ok {
		t.Fatalf("request after rollover should be allowed")
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	limiter := NewFixedWindowLimiter(nil)
	rule := WindowRule{Window: time.Minute, Limit: 1}

	if ok, _ := limiter.Allow("a", rule); !ok {
		t.Fatalf("key a should be allowed")
	}
	if ok, _ := limiter.Allow("b", rule); !ok {
		t.Fatalf("key b should be allowed")
	}
	if ok, _ := limiter.Allow("a", rule); ok {
		t.Fatalf("key a should now be rejected")
	}
}

func TestAllowRuleVariantsSharedLimiter(t *testing.T) {
	limiter := NewFixedWindowLimiter(nil)
	perMinute := WindowRule{Window: time.Minute, Limit: 1}
	perDay := WindowRule{Window: 24 * time.Hour, Limit: 2}

	// One limiter instance serves both rules as long as keys differ per site.
	if ok, _ := limiter.Allow("cred:x", perMinute); !ok {
		t.Fatalf("per-minute first request should be allowed")
	}
	if ok, _ := limiter.Allow("addr:x", perDay); !ok {
		t.Fatalf("per-day first request should be allowed")
	}
	if ok, _ := limiter.Allow("addr:x", perDay); !ok {
		t.Fatalf("per-day second request should be allowed")
	}
	if ok, _ := limiter.Allow("addr:x", perDay); ok {
		t.Fatalf("per-day third request should be rejected")
	}
}

func TestRateLimitMiddleware429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewFixedWindowLimiter(func() time.Time { return now })

	r := gin.New()
	r.Use(RateLimit(limiter, WindowRule{Window: time.Minute, Limit: 1}, ClientAddressKey))
	r.POST("/upload", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/upload", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request 200, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/upload", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(second.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Error.Code != "rate_limited" {
		t.Fatalf("expected rate_limited code, got %q", payload.Error.Code)
	}
}

func TestCredentialKeyFallsBackToAddress(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/upload", nil)
	c.Request.RemoteAddr = "10.0.0.9:4321"

	if got := CredentialKey(c); got != "10.0.0.9" {
		t.Fatalf("expected client address fallback, got %q", got)
	}

	c.Set("apiKey", "key-123")
	if got := CredentialKey(c); got != "key-123" {
		t.Fatalf("expected credential key, got %q", got)
	}
}
