package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/filpulse/internal/query"
)

// QueryCount runs a single-value COUNT statement.
func (db *DB) QueryCount(ctx context.Context, stmt string, args ...any) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count: %w", err)
	}
	return n, nil
}

// QueryRows runs stmt and returns every row as a column→value map.
//
// SCANNING UNKNOWN COLUMNS:
// The dataset views are projected with "v.*", so the column set is only
// known at runtime. We scan each row into a []any of the right width and
// zip it with rows.Columns(). TEXT can come back as []byte, which would
// JSON-encode as base64, so it is converted to string.
func (db *DB) QueryRows(ctx context.Context, stmt string, args ...any) ([]query.Row, error) {
	rows, err := db.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading columns: %w", err)
	}

	out := []query.Row{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlite: scanning row: %w", err)
		}

		row := make(query.Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating rows: %w", err)
	}
	return out, nil
}
