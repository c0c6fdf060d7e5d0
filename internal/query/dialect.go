package query

import "strconv"

// Dialect renders the handful of SQL fragments that differ between the
// storage engines we run against. Everything else the package emits is
// portable SQL.
type Dialect interface {
	// Name is used in logs and tests only.
	Name() string
	// Placeholder returns the bind marker for the n-th argument (1-based).
	Placeholder(n int) string
	// IMatch renders a case-insensitive pattern match of column against the
	// bound pattern placeholder.
	IMatch(column, placeholder string) string
}

// Postgres numbers its bind markers and has a native case-insensitive
// regex operator.
var Postgres Dialect = postgresDialect{}

// SQLite uses positional "?" markers. REGEXP is backed by the Go function
// registered in repository/sqlite; the (?i) flag makes it case-insensitive.
var SQLite Dialect = sqliteDialect{}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) IMatch(column, placeholder string) string {
	return column + " ~* " + placeholder
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) IMatch(column, placeholder string) string {
	return column + " REGEXP ('(?i)' || " + placeholder + ")"
}
