// Package postgres implements repository.Store on PostgreSQL through a
// pgx connection pool. It is the production backend: the dataset views
// live here, maintained by the ingestion pipeline.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/filpulse/internal/query"
	"github.com/sakif/filpulse/internal/repository"
)

// compile-time check that *DB is a complete storage backend
var _ repository.Store = (*DB)(nil)

// PgxPool is the subset of *pgxpool.Pool the repositories use. It is
// implemented by *pgxpool.Pool and pgxmock.PgxPoolIface.
//
// Every call checks a connection out of the pool for one statement and
// returns it when the statement (or its Rows) is done, on every exit path.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// DB wraps the pool. It is created once in main and injected; nothing in
// this package holds a process-wide pool.
type DB struct{ Pool PgxPool }

// Options tune the pool.
type Options struct {
	// MaxConns caps open connections. Zero keeps pgxpool's default.
	MaxConns int32
}

// New creates a pool for dsn and verifies it with a ping.
func New(ctx context.Context, dsn string, opts Options) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parsing dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}
	return &DB{Pool: pool}, nil
}

// Close closes the underlying pool.
func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

// Ping checks that the database is reachable. Used by /healthz.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// Dialect reports the SQL dialect the query planner must render.
func (db *DB) Dialect() query.Dialect {
	return query.Postgres
}

// isUniqueViolation reports whether the error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23505"
}

// isForeignKeyViolation reports whether the error is a foreign key
// violation (SQLSTATE 23503).
func isForeignKeyViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23503"
}
