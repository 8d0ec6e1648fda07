package kv

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgTable = "clinic_kv"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PgConn is the subset of *pgxpool.Pool the postgres backend needs.
type PgConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type PostgresBackend struct {
	conn PgConn
}

func NewPostgresBackend(conn PgConn) *PostgresBackend {
	return &PostgresBackend{conn: conn}
}

// EnsureSchema creates the key-value table when it does not exist yet.
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	_, err := b.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS clinic_kv (
			key        TEXT PRIMARY KEY,
			payload    BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create %s: %w", pgTable, err)
	}
	return nil
}

func (b *PostgresBackend) Driver() Driver { return DriverPostgres }

func (b *PostgresBackend) Get(ctx context.Context, key string) ([]byte, error) {
	query, args, err := psql.Select("payload").From(pgTable).Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var payload []byte
	if err := b.conn.QueryRow(ctx, query, args...).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select %s: %w", key, err)
	}
	return payload, nil
}

func (b *PostgresBackend) Set(ctx context.Context, key string, value []byte) error {
	query, args, err := psql.Insert(pgTable).
		Columns("key", "payload", "updated_at").
		Values(key, value, sq.Expr("now()")).
		Suffix("ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := b.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (b *PostgresBackend) Delete(ctx context.Context, key string) error {
	query, args, err := psql.Delete(pgTable).Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	if _, err := b.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (b *PostgresBackend) Ping(ctx context.Context) error { return b.conn.Ping(ctx) }

func (b *PostgresBackend) Close() error {
	b.conn.Close()
	return nil
}
