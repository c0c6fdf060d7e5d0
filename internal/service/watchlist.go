package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/sakif/filpulse/internal/apperror"
	"github.com/sakif/filpulse/internal/model"
	"github.com/sakif/filpulse/internal/repository"
)

// AccountLookup resolves a token's user id to an account.
// repository.UserRepository satisfies it.
type AccountLookup interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// WatchlistService follows, unfollows and marks watchlist items viewed.
//
// Order of checks, for every operation:
//  1. identity present, else ErrUnauthenticated
//  2. item fields present, else ErrValidation
//  3. the account still exists, else ErrUnauthenticated
//  4. one watchlist statement
//
// A signed token can outlive its account, so step 3 is a real lookup.
// Every operation is idempotent and safe for the client to retry.
type WatchlistService struct {
	accounts  AccountLookup
	watchlist repository.WatchlistRepository
	logger    *slog.Logger
}

func NewWatchlistService(accounts AccountLookup, watchlist repository.WatchlistRepository, logger *slog.Logger) *WatchlistService {
	return &WatchlistService{accounts: accounts, watchlist: watchlist, logger: logger}
}

// Follow adds item to the user's watchlist when follow is true and removes
// it otherwise.
func (s *WatchlistService) Follow(ctx context.Context, userID string, item model.WatchItem, follow bool) error {
	item, err := s.check(ctx, userID, item)
	if err != nil {
		return err
	}

	op := "follow"
	if follow {
		err = s.watchlist.Follow(ctx, userID, item)
	} else {
		op = "unfollow"
		err = s.watchlist.Unfollow(ctx, userID, item)
	}
	if err != nil {
		return s.storageError(op, err)
	}

	s.logger.Debug("watchlist updated",
		slog.String("op", op),
		slog.String("userID", userID),
		slog.Int64("number", item.Number),
		slog.String("repo", item.Repo),
		slog.String("organisation", item.Organisation),
	)
	return nil
}

// MarkViewed stamps the item as viewed now. Unfollowed items are ignored.
func (s *WatchlistService) MarkViewed(ctx context.Context, userID string, item model.WatchItem) error {
	item, err := s.check(ctx, userID, item)
	if err != nil {
		return err
	}
	if err := s.watchlist.MarkViewed(ctx, userID, item); err != nil {
		return s.storageError("viewed", err)
	}
	return nil
}

func (s *WatchlistService) check(ctx context.Context, userID string, item model.WatchItem) (model.WatchItem, error) {
	item, err := checkWatch(userID, item)
	if err != nil {
		return item, err
	}
	if _, err := s.accounts.GetUserByID(ctx, userID); err != nil {
		return item, s.storageError("account_lookup", err)
	}
	return item, nil
}

// storageError turns a missing account into 401: the token is signed but
// names nobody. The repositories report a Follow whose user row vanished
// mid-request the same way.
func (s *WatchlistService) storageError(op string, err error) error {
	if errors.Is(err, apperror.ErrNotFound) {
		return apperror.Unauthenticated("account no longer exists")
	}
	return classifyStorage(s.logger, op, err)
}

func checkWatch(userID string, item model.WatchItem) (model.WatchItem, error) {
	if userID == "" {
		return item, apperror.Unauthenticated("authentication required")
	}
	item.Repo = strings.TrimSpace(item.Repo)
	item.Organisation = strings.TrimSpace(item.Organisation)
	switch {
	case item.Number <= 0:
		return item, apperror.ValidationFailed("number", "number is required")
	case item.Repo == "":
		return item, apperror.ValidationFailed("repo", "repo is required")
	case item.Organisation == "":
		return item, apperror.ValidationFailed("organisation", "organisation is required")
	}
	return item, nil
}
