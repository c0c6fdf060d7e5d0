// Package repository declares the storage interfaces the service layer
// depends on. Implementations live in the postgres and sqlite subpackages;
// both also implement query.Engine for the read-only dataset views.
package repository

import (
	"context"

	"github.com/sakif/filpulse/internal/model"
	"github.com/sakif/filpulse/internal/query"
)

// UserRepository stores accounts. Usernames are passed in already
// lowercased.
type UserRepository interface {
	// CreateUser inserts a password account and fills in ID and
	// timestamps. A taken username is apperror.ErrConflict.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	// UpdatePassword replaces the password hash of an existing account.
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	// UpsertGitHubUser creates or refreshes the account bound to
	// user.GitHubID. A new GitHub account whose username is already owned
	// by another account is apperror.ErrConflict.
	UpsertGitHubUser(ctx context.Context, user *model.User) error
}

// WatchlistRepository mutates the per-user watchlist. Every operation is a
// single statement, so concurrent calls resolve atomically in the engine.
type WatchlistRepository interface {
	// Follow is idempotent: following an already-followed item is a no-op.
	Follow(ctx context.Context, userID string, item model.WatchItem) error
	// Unfollow succeeds whether or not the item was followed.
	Unfollow(ctx context.Context, userID string, item model.WatchItem) error
	// MarkViewed stamps viewed_at on a followed item. It succeeds with no
	// effect when the item is not followed.
	MarkViewed(ctx context.Context, userID string, item model.WatchItem) error
}

// Store is everything the server needs from one storage engine.
type Store interface {
	UserRepository
	WatchlistRepository
	query.Engine

	// Dialect is the SQL dialect the planner must render for this engine.
	Dialect() query.Dialect
	Ping(ctx context.Context) error
	Close() error
}
