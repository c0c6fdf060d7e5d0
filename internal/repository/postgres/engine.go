package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sakif/filpulse/internal/query"
)

// QueryCount runs a single-value COUNT statement.
func (db *DB) QueryCount(ctx context.Context, sql string, args ...any) (int64, error) {
	var n int64
	if err := db.Pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count: %w", err)
	}
	return n, nil
}

// QueryRows runs sql and collects every row into a column→value map.
// CollectRows closes rows, which returns the connection to the pool.
func (db *DB) QueryRows(ctx context.Context, sql string, args ...any) ([]query.Row, error) {
	rows, err := db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("postgres: collecting rows: %w", err)
	}
	return out, nil
}
