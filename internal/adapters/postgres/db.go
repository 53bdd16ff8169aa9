package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is the subset of pgxpool.Pool the repositories use.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// DB wraps a connection pool shared by the repositories.
type DB struct {
	Pool Pool
	raw  *pgxpool.Pool
}

// New creates a new DB connection pool.
func New(ctx context.Context, dsn string, maxConns int32) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &DB{Pool: pool, raw: pool}, nil
}

// NewWithPool wraps an existing pool, such as a pgxmock pool in tests.
func NewWithPool(p Pool) *DB {
	db := &DB{Pool: p}
	if raw, ok := p.(*pgxpool.Pool); ok {
		db.raw = raw
	}
	return db
}

// Stat returns pool statistics, or nil when the pool is not a pgxpool.
func (db *DB) Stat() any {
	if db.raw == nil {
		return nil
	}
	return db.raw.Stat()
}

// Close releases pool resources.
func (db *DB) Close() {
	db.Pool.Close()
}
