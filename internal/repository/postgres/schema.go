package postgres

import (
	"context"
	"fmt"
)

// schema creates the tables the API owns. The dataset views are not
// created here; they belong to the ingestion pipeline.
//
// github_id is nullable and UNIQUE: Postgres treats NULLs as distinct, so
// every password account leaves it empty while each GitHub account maps to
// exactly one row.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		question      TEXT NOT NULL DEFAULT '',
		answer_hash   TEXT NOT NULL DEFAULT '',
		github_id     BIGINT UNIQUE,
		avatar_url    TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS watchlist (
		user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		number       BIGINT NOT NULL,
		repo         TEXT NOT NULL,
		organisation TEXT NOT NULL,
		viewed_at    TIMESTAMPTZ,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, number, repo, organisation)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_watchlist_user_id ON watchlist (user_id)`,
}

// EnsureSchema creates the API's own tables if they do not exist. It is
// safe to run on every start.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: ensuring schema: %w", err)
		}
	}
	return nil
}
