package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPool(dbURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)

	if err != nil {
		return nil, err
	}

	cfg.MaxConns = 5

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)

	if err != nil {
		return nil, err
	}

	err = pool.Ping(ctx)

	if err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// EnsureSchema creates the users table on first run. The unique email
// constraint is load-bearing: duplicate signups surface as 23505, not as a
// lost race between a read and an insert.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id            text PRIMARY KEY,
			email         text NOT NULL UNIQUE,
			password_hash text NOT NULL,
			name          text NOT NULL DEFAULT '',
			portfolio     jsonb NOT NULL DEFAULT '[]',
			watchlist     jsonb NOT NULL DEFAULT '[]',
			notifications jsonb NOT NULL DEFAULT '[]',
			created_at    timestamptz NOT NULL,
			updated_at    timestamptz NOT NULL
		)
	`)

	return err
}
