package sqlite

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/filpulse/internal/apperror"
	"github.com/sakif/filpulse/internal/model"
)

var lotus42 = model.WatchItem{Number: 42, Repo: "lotus", Organisation: "filecoin-project"}

func countWatchlist(t *testing.T, db *DB, userID string) int64 {
	t.Helper()
	n, err := db.QueryCount(context.Background(), `SELECT COUNT(*) FROM watchlist WHERE user_id = ?`, userID)
	require.NoError(t, err)
	return n
}

func TestFollow_Idempotent(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")
	ctx := context.Background()

	require.NoError(t, db.Follow(ctx, user.ID, lotus42))
	require.NoError(t, db.Follow(ctx, user.ID, lotus42))

	assert.Equal(t, int64(1), countWatchlist(t, db, user.ID))
}

func TestFollow_ConcurrentDuplicatesCreateOneRow(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, db.Follow(context.Background(), user.ID, lotus42))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), countWatchlist(t, db, user.ID))
}

func TestFollow_PerUser(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	ctx := context.Background()

	require.NoError(t, db.Follow(ctx, alice.ID, lotus42))
	require.NoError(t, db.Follow(ctx, bob.ID, lotus42))

	assert.Equal(t, int64(1), countWatchlist(t, db, alice.ID))
	assert.Equal(t, int64(1), countWatchlist(t, db, bob.ID))
}

func TestUnfollow(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")
	ctx := context.Background()

	require.NoError(t, db.Follow(ctx, user.ID, lotus42))
	require.NoError(t, db.Unfollow(ctx, user.ID, lotus42))
	assert.Equal(t, int64(0), countWatchlist(t, db, user.ID))

	// Unfollowing something not followed succeeds.
	require.NoError(t, db.Unfollow(ctx, user.ID, lotus42))
}

func TestMarkViewed(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")
	ctx := context.Background()

	require.NoError(t, db.Follow(ctx, user.ID, lotus42))
	require.NoError(t, db.MarkViewed(ctx, user.ID, lotus42))

	n, err := db.QueryCount(ctx,
		`SELECT COUNT(*) FROM watchlist WHERE user_id = ? AND viewed_at IS NOT NULL`, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMarkViewed_NotFollowedIsNoop(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")

	require.NoError(t, db.MarkViewed(context.Background(), user.ID, lotus42))

	assert.Equal(t, int64(0), countWatchlist(t, db, user.ID))
}

func TestFollow_UnknownUserIsNotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.Follow(context.Background(), "ghost-user-id", lotus42)
	require.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Equal(t, int64(0), countWatchlist(t, db, "ghost-user-id"))
}
