package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greenhouse-labs/catalog-bff/internal/config"
	"github.com/greenhouse-labs/catalog-bff/internal/db"
)

// Backend is a Store together with the resources it owns
type Backend struct {
	Store

	pool *pgxpool.Pool
}

// Close releases the resources held by the backend
func (b *Backend) Close() {
	if b.pool != nil {
		slog.Info("Closing database connection")
		b.pool.Close()
	}
}

// NewFromConfig builds the store selected by cfg
func NewFromConfig(ctx context.Context, cfg *config.StorageConfig) (*Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage configuration is required")
	}

	switch cfg.GetType() {
	case config.StorageTypeMemory:
		slog.Info("Using in-memory catalog store")
		return &Backend{Store: NewMemoryStore()}, nil
	case config.StorageTypePostgres:
		pool, err := db.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		st, err := NewPostgresStore(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		slog.Info("Using PostgreSQL catalog store")
		return &Backend{Store: st, pool: pool}, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
