package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const userIDKey contextKey = "userID"

// Verify turns an Authorization header value into a user id.
//
// It never fails: a missing header, a scheme other than Bearer, an empty,
// malformed, expired or wrongly signed token all yield ok=false, meaning
// "anonymous". Callers decide whether anonymous is acceptable.
func Verify(tokens *TokenService, header string) (userID string, ok bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	userID, err := tokens.Validate(token)
	if err != nil {
		return "", false
	}
	return userID, true
}

// OptionalAuth annotates the request context with the caller's user id
// when the bearer token verifies, and otherwise passes the request on
// untouched. It never rejects a request.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, ok := Verify(tokens, r.Header.Get("Authorization")); ok {
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects requests whose context carries no user id. It must
// run after OptionalAuth. onMissing writes the rejection, so the response
// has the same shape as every other API error.
func RequireAuth(onMissing http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := UserIDFromContext(r.Context()); !ok {
				onMissing(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the authenticated user's ID from the request
// context. ("", false) means the request is anonymous.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}
