package users

import (
	"context"
	"time"
)

var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "user not found" }

type Repo interface {
	Create(ctx context.Context, account Account) error
	GetByID(ctx context.Context, userID string) (Account, error)
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}
