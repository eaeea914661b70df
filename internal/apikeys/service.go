package apikeys

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"pdfqa-backend/internal/shared/config"
	"pdfqa-backend/internal/shared/telemetry"
)

// Service combines the durable credential store with a process-local cache and
// enforces the daily usage quota. The cache is read-through: entries appear at
// issuance (write-through) or on first validation, and are only ever dropped by
// the expiry check. Usage counters in the cache are authoritative between
// successful store writes.
type Service struct {
	store      Store
	durability string
	now        func() time.Time

	mu    sync.Mutex
	cache map[string]Record
}

// NewService constructs a Service. durability selects how store-write failures
// during usage metering are handled (config.DurabilityBestEffort swallows and
// logs, config.DurabilityStrict surfaces them). now is injectable for tests;
// nil means time.Now.
func NewService(store Store, durability string, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	if durability != config.DurabilityStrict {
		durability = config.DurabilityBestEffort
	}
	return &Service{
		store:      store,
		durability: durability,
		now:        now,
		cache:      make(map[string]Record),
	}
}

// Issue generates a fresh key for userID, persists it and write-through caches
// it so the new credential is usable without a store round-trip.
func (s *Service) Issue(ctx context.Context, userID string) (Record, error) {
	now := s.now().UTC()
	rec := Record{
		Key:        uuid.NewString(),
		UserID:     userID,
		DailyUsage: 0,
		LastReset:  now,
		ExpiresAt:  now.Add(KeyTTL),
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("persist api key: %w", err)
	}

	s.mu.Lock()
	s.cache[rec.Key] = rec
	s.mu.Unlock()

	telemetry.Info("apikey.issued", map[string]any{
		"user_id":    userID,
		"expires_at": rec.ExpiresAt.Format(time.RFC3339),
	})
	return rec, nil
}

// Validate checks the cache first and falls back to the store, populating the
// cache on a hit. Absent or expired keys fail with ErrUnauthorized in either
// source.
func (s *Service) Validate(ctx context.Context, key string) (Record, error) {
	now := s.now().UTC()

	s.mu.Lock()
	rec, ok := s.cache[key]
	s.mu.Unlock()
	if ok {
		if rec.Expired(now) {
			telemetry.Warn("apikey.expired", map[string]any{"key_prefix": prefix(key)})
			return Record{}, ErrUnauthorized
		}
		return rec, nil
	}

	rec, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			telemetry.Error("apikey.store_read_failed", map[string]any{
				"key_prefix": prefix(key),
				"err":        err.Error(),
			})
		}
		return Record{}, ErrUnauthorized
	}
	if rec.Expired(now) {
		telemetry.Warn("apikey.expired", map[string]any{"key_prefix": prefix(key)})
		return Record{}, ErrUnauthorized
	}

	s.mu.Lock()
	s.cache[key] = rec
	s.mu.Unlock()
	return rec, nil
}

// CheckQuota fails with ErrQuotaExceeded once the cached daily usage is past
// the ceiling. It runs before the current request's bytes are added, so a
// request may push usage over the limit and only the next one is rejected: the
// quota is a soft ceiling with at most one overshoot per window.
func (s *Service) CheckQuota(key string) error {
	s.mu.Lock()
	rec, ok := s.cache[key]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if rec.DailyUsage > DailyQuota {
		return ErrQuotaExceeded
	}
	return nil
}

// TouchUsage adds bytes to the key's usage, resetting the counter when the
// 24-hour window since last_reset has elapsed, and writes the counters back to
// the store. Under the best-effort durability policy a failed store write is
// logged and swallowed; the cached counters stay authoritative until the next
// successful write, so durable usage can drift during store outages.
func (s *Service) TouchUsage(ctx context.Context, key string, bytes int64) error {
	now := s.now().UTC()

	s.mu.Lock()
	rec, ok := s.cache[key]
	if !ok {
		s.mu.Unlock()
		loaded, err := s.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Degraded path: no cached or durable record. Metering proceeds
				// from zero but must not be trusted for billing.
				telemetry.Warn("apikey.usage_degraded_default", map[string]any{
					"key_prefix": prefix(key),
				})
			} else {
				// Store outage is not the same as a missing record: the durable
				// counters may exist and must not be silently replaced by a
				// zeroed default under the strict policy.
				telemetry.Error("apikey.usage_read_failed", map[string]any{
					"key_prefix": prefix(key),
					"err":        err.Error(),
				})
				if s.durability == config.DurabilityStrict {
					return fmt.Errorf("load usage: %w", err)
				}
			}
			loaded = Record{Key: key, DailyUsage: 0, LastReset: now}
		}
		s.mu.Lock()
		if cached, exists := s.cache[key]; exists {
			rec = cached
		} else {
			rec = loaded
		}
	}
	if now.Sub(rec.LastReset) > resetInterval {
		rec.DailyUsage = 0
		rec.LastReset = now
	}
	rec.DailyUsage += bytes
	s.cache[key] = rec
	s.mu.Unlock()

	telemetry.Info("apikey.usage", map[string]any{
		"key_prefix":  prefix(key),
		"daily_usage": rec.DailyUsage,
	})

	if err := s.store.UpdateUsage(ctx, key, rec.DailyUsage, rec.LastReset); err != nil {
		if s.durability == config.DurabilityStrict {
			return fmt.Errorf("persist usage: %w", err)
		}
		telemetry.Error("apikey.usage_write_failed", map[string]any{
			"key_prefix": prefix(key),
			"err":        err.Error(),
		})
	}
	return nil
}

// WarmCache streams every store record into the cache so a freshly started
// process is authoritative without per-request store reads.
func (s *Service) WarmCache(ctx context.Context) (int, error) {
	recs, err := s.store.All(ctx)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	for _, rec := range recs {
		s.cache[rec.Key] = rec
	}
	s.mu.Unlock()
	return len(recs), nil
}

// CachedRecord returns the cached record for a key, if present.
func (s *Service) CachedRecord(key string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.cache[key]
	return rec, ok
}

func prefix(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8] + "..."
}
