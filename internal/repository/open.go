package repository

import (
	"context"

	"go.uber.org/zap"
)

type Options struct {
	DatabaseDSN     string
	Redis           RedisOptions
	SQLiteURL       string
	FileStoragePath string
}

// Backend names the store Open selects for the given options.
func (o Options) Backend() string {
	switch {
	case o.DatabaseDSN != "":
		return "postgres"
	case o.Redis.Addr != "":
		return "redis"
	case o.SQLiteURL != "":
		return "sqlite"
	default:
		return "memory"
	}
}

// Open builds the configured store: postgres, then redis, then sqlite, and
// the in-memory store when nothing else is set.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (LinkStore, error) {
	var (
		store LinkStore
		err   error
	)

	switch opts.Backend() {
	case "postgres":
		store, err = NewPostgresRepository(ctx, opts.DatabaseDSN, logger)
	case "redis":
		store, err = NewRedisRepository(ctx, opts.Redis, logger)
	case "sqlite":
		store, err = NewSQLiteRepository(ctx, opts.SQLiteURL, logger)
	default:
		store, err = NewMemoryRepository(opts.FileStoragePath, logger)
	}

	if err != nil {
		return nil, err
	}
	return store, nil
}
