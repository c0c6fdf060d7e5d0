package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/filpulse/internal/apperror"
	"github.com/sakif/filpulse/internal/model"
)

// Follow is an atomic conditional insert: the UNIQUE key plus ON CONFLICT
// DO NOTHING means concurrent duplicate follows leave exactly one row.
// A user id with no users row returns apperror.ErrNotFound.
func (db *DB) Follow(ctx context.Context, userID string, item model.WatchItem) error {
	const q = `
INSERT INTO watchlist (user_id, number, repo, organisation, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, number, repo, organisation) DO NOTHING`
	_, err := db.Pool.Exec(ctx, q, userID, item.Number, item.Repo, item.Organisation, time.Now().UTC())
	if isForeignKeyViolation(err) {
		return apperror.NotFound("user", userID)
	}
	if err != nil {
		return fmt.Errorf("postgres: following %s/%s#%d: %w", item.Organisation, item.Repo, item.Number, err)
	}
	return nil
}

// Unfollow deletes the row if present.
func (db *DB) Unfollow(ctx context.Context, userID string, item model.WatchItem) error {
	const q = `
DELETE FROM watchlist
WHERE user_id = $1 AND number = $2 AND repo = $3 AND organisation = $4`
	if _, err := db.Pool.Exec(ctx, q, userID, item.Number, item.Repo, item.Organisation); err != nil {
		return fmt.Errorf("postgres: unfollowing %s/%s#%d: %w", item.Organisation, item.Repo, item.Number, err)
	}
	return nil
}

// MarkViewed stamps viewed_at on a followed item. Zero affected rows is
// not an error.
func (db *DB) MarkViewed(ctx context.Context, userID string, item model.WatchItem) error {
	const q = `
UPDATE watchlist SET viewed_at = $5
WHERE user_id = $1 AND number = $2 AND repo = $3 AND organisation = $4`
	if _, err := db.Pool.Exec(ctx, q, userID, item.Number, item.Repo, item.Organisation, time.Now().UTC()); err != nil {
		return fmt.Errorf("postgres: marking %s/%s#%d viewed: %w", item.Organisation, item.Repo, item.Number, err)
	}
	return nil
}
