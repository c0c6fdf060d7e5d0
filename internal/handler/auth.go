package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/filpulse/internal/auth"
	"github.com/sakif/filpulse/internal/model"
	"github.com/sakif/filpulse/internal/service"
)

// Authenticator is the subset of *service.AuthService the handlers call.
type Authenticator interface {
	Signup(ctx context.Context, c service.Credentials) (*service.AuthResult, error)
	Login(ctx context.Context, username, password string) (*service.AuthResult, error)
	ResetPassword(ctx context.Context, c service.Credentials) (*service.AuthResult, error)
	Authenticate(ctx context.Context, code string) (*service.AuthResult, error)
	Me(ctx context.Context, userID string) (model.Identity, error)
}

// AuthHandler serves account creation and login. Every successful call
// answers {"token": "...", "user": {...}}; the client sends the token back
// as "Authorization: Bearer <token>".
//
// ROUTES:
//   - POST /signup          {username, password, question, answer}
//   - POST /login           {username, password}
//   - POST /reset_password  {username, password, question, answer}
//   - POST /authenticate    {code}   (GitHub OAuth, only when configured)
//   - GET  /me              (bearer token required)
type AuthHandler struct {
	auth   Authenticator
	logger *slog.Logger
}

func NewAuthHandler(a Authenticator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: a, logger: logger}
}

func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var c service.Credentials
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.auth.Signup(r.Context(), c)
	h.respond(w, "signup", res, err)
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var c service.Credentials
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.auth.Login(r.Context(), c.Username, c.Password)
	h.respond(w, "login", res, err)
}

func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var c service.Credentials
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.auth.ResetPassword(r.Context(), c)
	h.respond(w, "reset_password", res, err)
}

// HandleAuthenticate completes the GitHub OAuth flow. The browser got the
// code from GitHub's redirect; the exchange itself happens server-side.
func (h *AuthHandler) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.auth.Authenticate(r.Context(), body.Code)
	h.respond(w, "authenticate", res, err)
}

// HandleMe returns the caller's identity. Mounted behind auth.RequireAuth.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, err := h.auth.Me(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

func (h *AuthHandler) respond(w http.ResponseWriter, op string, res *service.AuthResult, err error) {
	if err != nil {
		h.logger.Info("auth request rejected", slog.String("op", op), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
