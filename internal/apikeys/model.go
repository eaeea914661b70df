package apikeys

import "time"

const (
	// KeyTTL is how long an issued key stays valid.
	KeyTTL = 30 * 24 * time.Hour

	// DailyQuota is the per-key byte ceiling per usage window.
	DailyQuota = 50 << 20

	// resetInterval is the rolling usage window, relative to each key's
	// last_reset rather than aligned to midnight.
	resetInterval = 24 * time.Hour
)

// Record is the durable state of one issued API key. daily_usage counts bytes
// processed since last_reset; expiry is checked at read time, never purged.
type Record struct {
	Key        string    `json:"key"`
	UserID     string    `json:"user_id"`
	DailyUsage int64     `json:"daily_usage"`
	LastReset  time.Time `json:"last_reset"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the record is past its expiry at the given instant.
func (r Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
