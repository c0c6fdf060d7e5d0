package query

import (
	"context"
	"errors"
)

// sqlStateQueryCanceled is Postgres' SQLSTATE for a statement cancelled by
// statement_timeout or a cancel request.
const sqlStateQueryCanceled = "57014"

// sqlStater matches driver errors that expose a SQLSTATE (pgconn.PgError
// does) without importing the driver here.
type sqlStater interface {
	SQLState() string
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var st sqlStater
	if errors.As(err, &st) && st.SQLState() == sqlStateQueryCanceled {
		return true
	}
	return false
}
