package users

import (
	"context"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Account
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Account)}
}

func (r *MemoryRepo) Create(ctx context.Context, account Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[account.ID] = account
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.data[userID]
	if !ok {
		return Account{}, ErrNotFound
	}
	return account, nil
}

func (r *MemoryRepo) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.data[userID]
	if !ok {
		return ErrNotFound
	}
	account.LastLogin = at
	r.data[userID] = account
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
