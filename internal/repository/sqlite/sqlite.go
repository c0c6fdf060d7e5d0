// Package sqlite implements repository.Store on an embedded SQLite file.
//
// WHEN IS SQLITE USED?
// Production runs on Postgres, where the ingestion pipeline maintains the
// dataset views (tab_commits_view, tab_prs_view, ...). SQLite is the
// single-binary development and test backend: set DB_DRIVER=sqlite and
// point DB_DSN at a file (or ":memory:"). This package only creates the
// tables the API itself owns (users, watchlist); the dataset views are
// whatever the file already contains.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// modernc.org/sqlite is a pure Go translation of the SQLite C code, so no C
// compiler is needed. It also lets us register Go functions as SQL
// functions, which is how REGEXP works here (see regexp.go).
//
// DATABASE/SQL OVERVIEW:
//   - sql.DB:   a connection pool (NOT a single connection!)
//   - sql.Row:  a single result row
//   - sql.Rows: multiple result rows (must be closed!)
//
// Every method acquires a connection from the pool for exactly one
// statement. database/sql returns it to the pool when the statement (or
// its Rows) is closed, on success and on error alike.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/sakif/filpulse/internal/query"
	"github.com/sakif/filpulse/internal/repository"
)

// compile-time check that *DB is a complete storage backend
var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the SQLite database and runs migrations.
//
// dbPath examples:
//   - "data/filpulse.db"  → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests; lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new connection to ":memory:" is a brand new, empty database.
	// Pin the pool to one connection so all queries see the same data.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode allows concurrent reads WHILE a write is happening.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. watchlist.user_id
	// references users.id.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable. Used by /healthz.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// Dialect reports the SQL dialect the query planner must render.
func (db *DB) Dialect() query.Dialect {
	return query.SQLite
}

// Exec runs a raw statement. Used by tests and local tooling to load
// dataset fixtures.
func (db *DB) Exec(ctx context.Context, stmt string, args ...any) error {
	if _, err := db.conn.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

// migrate creates the tables the API owns.
//
// CREATE TABLE IF NOT EXISTS is safe to run on every start. The schema
// mirrors the Postgres one in repository/postgres/schema.go.
func (db *DB) migrate() error {
	// github_id is a nullable UNIQUE column: SQLite allows any number of
	// NULLs in a UNIQUE column, so every password account can leave it
	// empty while each GitHub account still maps to exactly one row.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			question      TEXT NOT NULL DEFAULT '',
			answer_hash   TEXT NOT NULL DEFAULT '',
			github_id     INTEGER UNIQUE,
			avatar_url    TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// The UNIQUE key is what makes a concurrent duplicate follow
	// impossible; Follow relies on it with ON CONFLICT DO NOTHING.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS watchlist (
			user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			number       INTEGER NOT NULL,
			repo         TEXT NOT NULL,
			organisation TEXT NOT NULL,
			viewed_at    DATETIME,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, number, repo, organisation)
		);
		CREATE INDEX IF NOT EXISTS idx_watchlist_user_id ON watchlist(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating watchlist table: %w", err)
	}

	return nil
}
