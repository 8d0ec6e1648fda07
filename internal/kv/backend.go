package kv

import (
	"context"
	"errors"
)

// Driver identifies a storage backend implementation.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverRedis    Driver = "redis"
	DriverMemory   Driver = "memory"
)

var ErrNotFound = errors.New("key not found")

// Backend is the durable byte store behind the Adapter. Get returns
// ErrNotFound when nothing is stored under key. Deleting a missing key is
// not an error.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
	Driver() Driver
}
