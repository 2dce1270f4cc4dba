package repository

import (
	"context"

	"github.com/dimpoz/backend/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// NewDB opens the pgx pool backing the postgres tree store.
func NewDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "Cannot parse database URL")
	}

	// Watch streams each hold one extra connection in LISTEN mode.
	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.ConnConfig.RuntimeParams["application_name"] = "dimpoz-backend"

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "Cannot create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "Cannot reach database")
	}
	return pool, nil
}

// RunMigrations creates the kv_nodes table and its parent index.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, store.Schema); err != nil {
		return errors.Wrap(err, "Cannot apply tree schema")
	}
	return nil
}
