package handler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sakif/filpulse/internal/apperror"
	"github.com/sakif/filpulse/internal/auth"
	"github.com/sakif/filpulse/internal/model"
)

// Watcher is the subset of *service.WatchlistService the handlers call.
type Watcher interface {
	Follow(ctx context.Context, userID string, item model.WatchItem, follow bool) error
	MarkViewed(ctx context.Context, userID string, item model.WatchItem) error
}

// WatchlistHandler serves the two watchlist mutations.
//
// ROUTES:
//   - POST /follow  {number, repo, organisation, follow}
//   - POST /viewed  {number, repo, organisation}
//
// Both need a bearer token. The identity is checked by the service before
// the body's fields are, so an anonymous call is always 401.
type WatchlistHandler struct {
	watch  Watcher
	logger *slog.Logger
}

func NewWatchlistHandler(watch Watcher, logger *slog.Logger) *WatchlistHandler {
	return &WatchlistHandler{watch: watch, logger: logger}
}

// flexBool decodes JSON true/false as well as the strings "true"/"false",
// which is what browser form code tends to send.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(strings.Trim(string(data), `"`)) {
	case "true":
		*b = true
	case "false":
		*b = false
	default:
		return errors.New("follow must be true or false")
	}
	return nil
}

// flexInt decodes a JSON number or a numeric string.
type flexInt int64

func (n *flexInt) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	v, err := strconv.ParseInt(string(bytes.Trim(data, `"`)), 10, 64)
	if err != nil {
		return errors.New("number must be an integer")
	}
	*n = flexInt(v)
	return nil
}

type watchRequest struct {
	Number       flexInt   `json:"number"`
	Repo         string    `json:"repo"`
	Organisation string    `json:"organisation"`
	Follow       *flexBool `json:"follow"`
}

func (req watchRequest) item() model.WatchItem {
	return model.WatchItem{Number: int64(req.Number), Repo: req.Repo, Organisation: req.Organisation}
}

// decodeWatch reads the body of an authenticated caller. Anonymous callers
// get their body ignored, so the service rejects them with 401 whatever
// they sent.
func decodeWatch(w http.ResponseWriter, r *http.Request) (string, watchRequest, error) {
	var req watchRequest
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return "", req, nil
	}
	err := decodeJSON(w, r, &req)
	return userID, req, err
}

func (h *WatchlistHandler) HandleFollow(w http.ResponseWriter, r *http.Request) {
	userID, req, err := decodeWatch(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if userID != "" && req.Follow == nil {
		writeError(w, apperror.ValidationFailed("follow", "follow is required"))
		return
	}

	follow := req.Follow != nil && bool(*req.Follow)
	if err := h.watch.Follow(r.Context(), userID, req.item(), follow); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, success)
}

func (h *WatchlistHandler) HandleViewed(w http.ResponseWriter, r *http.Request) {
	userID, req, err := decodeWatch(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.watch.MarkViewed(r.Context(), userID, req.item()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, success)
}
