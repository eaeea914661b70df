package apikeys

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the fallback credential store used when no database is
// configured. State does not survive a restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Record)}
}

func (s *MemoryStore) Insert(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rec.Key] = rec
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) UpdateUsage(ctx context.Context, key string, dailyUsage int64, lastReset time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data[key]
	if !ok {
		return ErrNotFound
	}
	rec.DailyUsage = dailyUsage
	rec.LastReset = lastReset
	s.data[key] = rec
	return nil
}

func (s *MemoryStore) All(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.data))
	for _, rec := range s.data {
		out = append(out, rec)
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
