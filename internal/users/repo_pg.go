package users

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, account Account) error {
	const query = `
INSERT INTO users (id, email, display_name, auth_provider, created_at, last_login)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
  email = EXCLUDED.email,
  display_name = EXCLUDED.display_name,
  last_login = EXCLUDED.last_login`
	_, err := r.DB.ExecContext(ctx, query,
		account.ID,
		account.Email,
		account.DisplayName,
		account.AuthProvider,
		account.CreatedAt,
		account.LastLogin,
	)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (Account, error) {
	const query = `
SELECT id, email, display_name, auth_provider, created_at, last_login
FROM users
WHERE id = $1
LIMIT 1`
	var account Account
	err := r.DB.QueryRowContext(ctx, query, userID).Scan(
		&account.ID,
		&account.Email,
		&account.DisplayName,
		&account.AuthProvider,
		&account.CreatedAt,
		&account.LastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return account, nil
}

func (r *PGRepo) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	const query = `UPDATE users SET last_login = $1 WHERE id = $2`
	res, err := r.DB.ExecContext(ctx, query, at, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)
