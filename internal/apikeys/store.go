package apikeys

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key has no durable record.
var ErrNotFound = errors.New("api key not found")

// ErrUnauthorized is returned for missing, unknown or expired credentials.
var ErrUnauthorized = errors.New("invalid or expired API key")

// ErrQuotaExceeded is returned when a key is over its daily byte ceiling.
var ErrQuotaExceeded = errors.New("daily quota exceeded")

// Store is the durable record of issued API keys.
type Store interface {
	Insert(ctx context.Context, rec Record) error
	Get(ctx context.Context, key string) (Record, error)
	UpdateUsage(ctx context.Context, key string, dailyUsage int64, lastReset time.Time) error
	All(ctx context.Context) ([]Record, error)
}
