package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError, so every error
// response from the API has the same shape:
//
//	{"error": "not_found", "message": "overview not found with id singleton"}
//
// ERROR MAPPING (apperror sentinel → HTTP):
//
//	ErrValidation      → 400 validation_error
//	ErrUnauthenticated → 401 unauthenticated
//	ErrForbidden       → 403 forbidden
//	ErrNotFound        → 404 not_found
//	ErrConflict        → 409 conflict
//	ErrUpstream        → 502 upstream_error
//	ErrTimeout         → 504 timeout
//	anything else      → 500 internal_error, generic message
//
// Only AppError.Message reaches the client. Causes (SQL text, driver
// messages) are logged by the layer that produced them.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/filpulse/internal/apperror"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 16

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // machine-readable type, e.g. "not_found"
	Message string `json:"message"`         // human-readable description
	Field   string `json:"field,omitempty"` // offending input field, validation errors only
}

// SuccessResponse is the body of mutations that return no data.
type SuccessResponse struct {
	Success bool `json:"success"`
}

var success = SuccessResponse{Success: true}

// writeJSON sends a JSON response. Headers and status must be set before
// the body is written; once Encode writes, they are already sent.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

type errorKind struct {
	sentinel error
	status   int
	name     string
}

var errorKinds = []errorKind{
	{apperror.ErrValidation, http.StatusBadRequest, "validation_error"},
	{apperror.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{apperror.ErrForbidden, http.StatusForbidden, "forbidden"},
	{apperror.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperror.ErrConflict, http.StatusConflict, "conflict"},
	{apperror.ErrUpstream, http.StatusBadGateway, "upstream_error"},
	{apperror.ErrTimeout, http.StatusGatewayTimeout, "timeout"},
}

// writeError maps a domain error to its HTTP status and sends it.
//
// errors.As finds the *AppError anywhere in the chain, and errors.Is walks
// AppError.Unwrap to the sentinel, so wrapped errors map the same way:
//
//	fmt.Errorf("...: %w", apperror.Timeout(...)) → 504
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		for _, k := range errorKinds {
			if errors.Is(appErr.Err, k.sentinel) {
				writeJSON(w, k.status, ErrorResponse{Error: k.name, Message: appErr.Message, Field: appErr.Field})
				return
			}
		}
	}

	// Unknown error: never expose its text.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// Unauthorized is the rejection used by auth.RequireAuth.
func Unauthorized(w http.ResponseWriter, _ *http.Request) {
	writeError(w, apperror.Unauthenticated("authentication required"))
}

// decodeJSON reads one JSON object from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var (
			maxErr  *http.MaxBytesError
			typeErr *json.UnmarshalTypeError
		)
		switch {
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("body", "request body is empty")
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("body", fmt.Sprintf("request body exceeds %d bytes", maxBodyBytes))
		case errors.As(err, &typeErr):
			return apperror.ValidationFailed(typeErr.Field, fmt.Sprintf("%s has the wrong type", typeErr.Field))
		default:
			return apperror.ValidationFailed("body", "request body is malformed")
		}
	}
	return nil
}
