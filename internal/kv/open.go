package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/hackgods/dental-clinic-records/internal/config"
	"github.com/hackgods/dental-clinic-records/internal/db"
	redisclient "github.com/hackgods/dental-clinic-records/internal/redis"
)

// Open connects the backend selected by cfg.StorageDriver.
func Open(ctx context.Context, cfg config.Config) (Backend, error) {
	switch Driver(cfg.StorageDriver) {
	case DriverSQLite:
		return OpenSQLite(cfg.SQLitePath)
	case DriverMemory:
		return NewMemoryBackend(), nil
	case DriverRedis:
		rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		return NewRedisBackend(rdb), nil
	case DriverPostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		backend := NewPostgresBackend(pool)
		if err := backend.EnsureSchema(pgCtx); err != nil {
			pool.Close()
			return nil, err
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
