package repository

import (
	"context"

	"github.com/dimpoz/backend/internal/config"
	"github.com/dimpoz/backend/internal/store"
	"go.uber.org/zap"
)

// OpenStore connects the configured backend, running migrations for
// postgres. The returned func releases the connection.
func OpenStore(ctx context.Context, cfg *config.Config, keys *store.KeyGenerator, logger *zap.Logger) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store.NewPostgresStore(pool, keys, logger), pool.Close, nil

	case config.BackendRedis:
		client, err := store.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		st := store.NewRedisStore(client, cfg.RedisPrefix, keys, logger)
		return st, func() { _ = st.Close() }, nil

	default:
		logger.Warn("Using in-memory store; data is lost on restart")
		return store.NewMemoryStore(keys), func() {}, nil
	}
}
