package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"pdfqa-backend/internal/shared/server/respond"
)

// KeyFunc extracts the limiter key for a request. An empty key skips limiting.
type KeyFunc func(*gin.Context) string

// WindowRule bounds request counts inside a fixed window.
type WindowRule struct {
	Window time.Duration
	Limit  int
}

// FixedWindowLimiter counts requests per key inside fixed, non-sliding windows.
// A single limiter instance is parameterized per use site by a KeyFunc and a
// WindowRule, so the per-credential and per-address cases share one mechanism.
type FixedWindowLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	start time.Time
	count int
}

// NewFixedWindowLimiter constructs a limiter with an injectable clock for tests.
func NewFixedWindowLimiter(now func() time.Time) *FixedWindowLimiter {
	if now == nil {
		now = time.Now
	}
	return &FixedWindowLimiter{
		windows: make(map[string]*window),
		now:     now,
	}
}

// Allow records a request under key and reports whether it fits the rule.
// On rejection it returns the time remaining until the window rolls over.
func (l *FixedWindowLimiter) Allow(key string, rule WindowRule) (bool, time.Duration) {
	if l == nil || rule.Limit <= 0 || rule.Window <= 0 {
		return true, 0
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= rule.Window {
		w = &window{start: now}
		l.windows[key] = w
	}
	if w.count < rule.Limit {
		w.count++
		return true, 0
	}
	return false, rule.Window - now.Sub(w.start)
}

// RateLimit enforces a fixed-window rule keyed by keyFor. The 429 body carries
// the rate_limited code so clients can tell it apart from auth and quota errors.
func RateLimit(limiter *FixedWindowLimiter, rule WindowRule, keyFor KeyFunc) gin.HandlerFunc {
	if limiter == nil {
		limiter = NewFixedWindowLimiter(nil)
	}
	return func(c *gin.Context) {
		key := ""
		if keyFor != nil {
			key = strings.TrimSpace(keyFor(c))
		}
		if key == "" {
			key = strings.TrimSpace(c.ClientIP())
		}
		allowed, retryAfter := limiter.Allow(key, rule)
		if allowed {
			c.Next()
			return
		}
		retryAfterSeconds := int(math.Ceil(retryAfter.Seconds()))
		if retryAfterSeconds <= 0 {
			retryAfterSeconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		respond.Error(c, http.StatusTooManyRequests, respond.CodeRateLimited,
			"Rate limit exceeded. Please try again later.", nil)
	}
}

// CredentialKey keys the limiter by the authenticated API key, falling back to
// the client address for unauthenticated probes.
func CredentialKey(c *gin.Context) string {
	if key := APIKeyFromContext(c); key != "" {
		return key
	}
	return c.ClientIP()
}

// ClientAddressKey keys the limiter by caller network address. Used for key
// issuance, where the caller by definition holds no credential yet.
func ClientAddressKey(c *gin.Context) string {
	return c.ClientIP()
}
