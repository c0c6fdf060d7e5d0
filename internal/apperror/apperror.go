// Package apperror defines the application's error taxonomy.
//
// Every failure that crosses a layer boundary is an *AppError wrapping exactly
// one sentinel. Services and repositories return them; the HTTP layer maps the
// sentinel to a status code (see handler/response.go). The Message is the only
// text a client ever sees, so it must stay terse and must never carry SQL text
// or driver messages. The original cause is kept in Cause for logging.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("authentication required")

	// ErrUpstream means the storage engine rejected or failed a query.
	ErrUpstream = errors.New("upstream query failed")

	// ErrTimeout means a query ran past the fixed upstream timeout.
	// Clients may retry; the server never does.
	ErrTimeout = errors.New("upstream query timed out")
)

type AppError struct {
	Err     error  // sentinel, matched with errors.Is
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error, logged but never returned to clients
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the sentinel and the cause so errors.Is works for
// either (e.g. errors.Is(err, context.DeadlineExceeded) on a Timeout).
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthenticated reports that the operation needs an identity that is
// absent or invalid. HTTP handlers map this to 401.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}

// Upstream wraps a storage failure. op names the logical operation
// ("tab_commits", "follow") and ends up in the client message.
func Upstream(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: fmt.Sprintf("%s: upstream query failed", op),
		Cause:   cause,
	}
}

// Timeout wraps a storage call that exceeded its deadline.
func Timeout(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrTimeout,
		Message: fmt.Sprintf("%s timed out, retry later", op),
		Cause:   cause,
	}
}
