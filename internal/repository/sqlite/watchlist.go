package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/filpulse/internal/apperror"
	"github.com/sakif/filpulse/internal/model"
)

// Follow adds item to the user's watchlist. Following twice is a no-op:
// the UNIQUE key turns the second INSERT into nothing. A user id with no
// users row fails the foreign key and returns apperror.ErrNotFound.
func (db *DB) Follow(ctx context.Context, userID string, item model.WatchItem) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO watchlist (user_id, number, repo, organisation, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, number, repo, organisation) DO NOTHING`,
		userID, item.Number, item.Repo, item.Organisation, time.Now().UTC(),
	)
	if isForeignKeyViolation(err) {
		return apperror.NotFound("user", userID)
	}
	if err != nil {
		return fmt.Errorf("sqlite: following %s/%s#%d: %w", item.Organisation, item.Repo, item.Number, err)
	}
	return nil
}

// Unfollow removes item from the user's watchlist, if present.
func (db *DB) Unfollow(ctx context.Context, userID string, item model.WatchItem) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM watchlist
		 WHERE user_id = ? AND number = ? AND repo = ? AND organisation = ?`,
		userID, item.Number, item.Repo, item.Organisation,
	)
	if err != nil {
		return fmt.Errorf("sqlite: unfollowing %s/%s#%d: %w", item.Organisation, item.Repo, item.Number, err)
	}
	return nil
}

// MarkViewed stamps viewed_at on a followed item. Nothing happens for an
// item that is not followed.
func (db *DB) MarkViewed(ctx context.Context, userID string, item model.WatchItem) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE watchlist SET viewed_at = ?
		 WHERE user_id = ? AND number = ? AND repo = ? AND organisation = ?`,
		time.Now().UTC(), userID, item.Number, item.Repo, item.Organisation,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking %s/%s#%d viewed: %w", item.Organisation, item.Repo, item.Number, err)
	}
	return nil
}
