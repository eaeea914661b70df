package apikeys

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type PGStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed credential store.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{DB: db}
}

func (s *PGStore) Insert(ctx context.Context, rec Record) error {
	const query = `
INSERT INTO api_keys (key, user_id, daily_usage, last_reset, expires_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := s.DB.ExecContext(ctx, query,
		rec.Key,
		rec.UserID,
		rec.DailyUsage,
		rec.LastReset,
		rec.ExpiresAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, key string) (Record, error) {
	const query = `
SELECT key, user_id, daily_usage, last_reset, expires_at
FROM api_keys
WHERE key = $1
LIMIT 1`
	var rec Record
	err := s.DB.QueryRowContext(ctx, query, key).Scan(
		&rec.Key,
		&rec.UserID,
		&rec.DailyUsage,
		&rec.LastReset,
		&rec.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

func (s *PGStore) UpdateUsage(ctx context.Context, key string, dailyUsage int64, lastReset time.Time) error {
	const query = `
UPDATE api_keys SET daily_usage = $1, last_reset = $2 WHERE key = $3`
	res, err := s.DB.ExecContext(ctx, query, dailyUsage, lastReset, key)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) All(ctx context.Context) ([]Record, error) {
	const query = `
SELECT key, user_id, daily_usage, last_reset, expires_at FROM api_keys`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Key, &rec.UserID, &rec.DailyUsage, &rec.LastReset, &rec.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

var _ Store = (*PGStore)(nil)
