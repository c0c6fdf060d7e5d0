package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/filpulse/internal/auth"
	"github.com/sakif/filpulse/internal/query"
)

// DatasetServer is what DatasetHandler needs from the service layer.
type DatasetServer interface {
	Serve(ctx context.Context, ep query.Endpoint, p query.Params, viewer query.Viewer) (any, error)
}

// DatasetHandler serves every read-only dataset endpoint of the catalogue.
// One handler func per endpoint; they differ only in the Endpoint they
// close over.
type DatasetHandler struct {
	datasets DatasetServer
	logger   *slog.Logger
}

func NewDatasetHandler(datasets DatasetServer, logger *slog.Logger) *DatasetHandler {
	return &DatasetHandler{datasets: datasets, logger: logger}
}

// Endpoint returns the handler for ep.
//
// HTTP: GET <ep.Path>?repo=&organisation=&contributor=&assignee=&status=&search=&sortBy=&sortType=&offset=
//
// Unknown or invalid parameters never fail the request: each is reset to
// its default or ignored. Only the caller's identity can affect the
// status code (401 on scoped endpoints).
func (h *DatasetHandler) Endpoint(ep query.Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserIDFromContext(r.Context())
		params := query.ParseParams(r.URL.Query())

		out, err := h.datasets.Serve(r.Context(), ep, params, query.Viewer{UserID: userID})
		if err != nil {
			h.logger.Debug("dataset request failed",
				slog.String("endpoint", ep.Schema.Name),
				slog.String("error", err.Error()),
			)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}
