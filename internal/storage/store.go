package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/terra-clan/contest-client/internal/config"
)

// ErrNotFound is returned by Get when a key has never been written
var ErrNotFound = errors.New("key not found")

// Store is a plain text key-value store for state that outlives a session:
// participant identity, last contest id and code drafts.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}

// Open creates the backend selected by the configuration
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendFile:
		return NewFileStore(cfg.Storage.Path)
	case config.BackendRedis:
		return NewRedisStore(ctx, RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	case config.BackendPostgres:
		return NewPostgresStore(ctx, PostgresConfig{
			DSN:          cfg.Database.DSN,
			MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}
}
