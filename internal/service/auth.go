// Package service holds the business logic between handlers and storage.
//
// AuthService sits between the HTTP handlers and the repository/auth
// utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt),
//	                     GitHubExchanger (OAuth)
//
// Every successful operation ends the same way: a 30-day token is issued
// for the account and returned together with its public Identity.
//
// ERROR SHAPES:
//   - bad input                       → apperror.ErrValidation
//   - wrong username or password      → apperror.ErrUnauthenticated
//   - wrong question or answer        → apperror.ErrForbidden
//   - username taken                  → apperror.ErrConflict
//   - storage failure                 → apperror.ErrUpstream
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/filpulse/internal/apperror"
	"github.com/sakif/filpulse/internal/auth"
	"github.com/sakif/filpulse/internal/model"
	"github.com/sakif/filpulse/internal/repository"
)

// MaxUsernameLength bounds usernames in bytes.
const MaxUsernameLength = 64

// GitHubExchanger turns an OAuth authorization code into a GitHub profile.
// *auth.GitHubProvider implements it.
type GitHubExchanger interface {
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// AuthService handles signup, login, password reset and OAuth login.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	github    GitHubExchanger // nil when OAuth is not configured
	logger    *slog.Logger
}

// NewAuthService wires an AuthService. github may be nil.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	github GitHubExchanger,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		github:    github,
		logger:    logger,
	}
}

// AuthResult is the body of every successful auth endpoint.
type AuthResult struct {
	Token string         `json:"token"`
	User  model.Identity `json:"user"`
}

// Credentials carries the fields of signup and reset_password. Login uses
// only Username and Password.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// NormalizeUsername lowercases and trims a username. Every lookup goes
// through it, so usernames are case-insensitive.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func validateUsername(username string) error {
	switch {
	case username == "":
		return apperror.ValidationFailed("username", "username is required")
	case len(username) > MaxUsernameLength:
		return apperror.ValidationFailed("username", fmt.Sprintf("username must be %d bytes or fewer", MaxUsernameLength))
	}
	return nil
}

// validateCredentials checks every field signup and reset_password need.
func validateCredentials(c Credentials) error {
	if err := validateUsername(c.Username); err != nil {
		return err
	}
	if err := auth.CheckPassword(c.Password); err != nil {
		return apperror.ValidationFailed("password", err.Error())
	}
	if strings.TrimSpace(c.Question) == "" {
		return apperror.ValidationFailed("question", "security question is required")
	}
	if auth.NormalizeAnswer(c.Answer) == "" {
		return apperror.ValidationFailed("answer", "security answer is required")
	}
	return nil
}

// Signup creates a password account. A taken username is ErrConflict;
// signup is therefore not safe to retry blindly.
func (s *AuthService) Signup(ctx context.Context, c Credentials) (*AuthResult, error) {
	c.Username = NormalizeUsername(c.Username)
	if err := validateCredentials(c); err != nil {
		return nil, err
	}

	passwordHash, err := s.passwords.Hash(c.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}
	answerHash, err := s.passwords.HashAnswer(c.Answer)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing answer: %w", err)
	}

	user := &model.User{
		Username:     c.Username,
		PasswordHash: passwordHash,
		Question:     strings.TrimSpace(c.Question),
		AnswerHash:   answerHash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, s.storageError("signup", err)
	}

	s.logger.Info("user signed up", slog.String("userID", user.ID), slog.String("username", user.Username))
	return s.issue(user)
}

// Login checks a username and password. An unknown user, an OAuth-only
// account and a wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = NormalizeUsername(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	badCredentials := apperror.Unauthenticated("invalid username or password")

	user, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, badCredentials
	}
	if err != nil {
		return nil, s.storageError("login", err)
	}
	if !user.HasPassword() {
		return nil, badCredentials
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrMismatch) {
			s.logger.Error("stored password hash unusable",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, badCredentials
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issue(user)
}

// ResetPassword replaces the password of an account whose security
// question and answer match. The question must match exactly (after
// trimming); the answer is compared case-insensitively.
func (s *AuthService) ResetPassword(ctx context.Context, c Credentials) (*AuthResult, error) {
	c.Username = NormalizeUsername(c.Username)
	if err := validateCredentials(c); err != nil {
		return nil, err
	}

	denied := apperror.Forbidden("security question or answer does not match")

	user, err := s.users.GetUserByUsername(ctx, c.Username)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, denied
	}
	if err != nil {
		return nil, s.storageError("reset_password", err)
	}
	if user.AnswerHash == "" || user.Question != strings.TrimSpace(c.Question) {
		return nil, denied
	}
	if err := s.passwords.VerifyAnswer(user.AnswerHash, c.Answer); err != nil {
		return nil, denied
	}

	passwordHash, err := s.passwords.Hash(c.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		return nil, s.storageError("reset_password", err)
	}
	user.PasswordHash = passwordHash

	s.logger.Info("password reset", slog.String("userID", user.ID))
	return s.issue(user)
}

// OAuthEnabled reports whether Authenticate can work.
func (s *AuthService) OAuthEnabled() bool {
	return s.github != nil
}

// Authenticate exchanges a GitHub OAuth code and logs the GitHub account
// in, creating it on first use. Accounts are keyed on the stable GitHub id;
// the avatar is refreshed on every login.
func (s *AuthService) Authenticate(ctx context.Context, code string) (*AuthResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperror.ValidationFailed("code", "code is required")
	}
	if s.github == nil {
		return nil, errors.New("service/auth: OAuth is not configured")
	}

	gh, err := s.github.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("oauth exchange failed", slog.String("error", err.Error()))
		return nil, apperror.Unauthenticated("oauth code exchange failed")
	}

	ghID := gh.ID
	user := &model.User{
		Username:  NormalizeUsername(gh.Login),
		GitHubID:  &ghID,
		AvatarURL: gh.AvatarURL,
	}
	if err := s.users.UpsertGitHubUser(ctx, user); err != nil {
		return nil, s.storageError("authenticate", err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return s.issue(user)
}

// Me returns the identity behind userID.
func (s *AuthService) Me(ctx context.Context, userID string) (model.Identity, error) {
	if userID == "" {
		return model.Identity{}, apperror.Unauthenticated("authentication required")
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		// A valid token for a deleted account.
		return model.Identity{}, apperror.Unauthenticated("account no longer exists")
	}
	if err != nil {
		return model.Identity{}, s.storageError("me", err)
	}
	return user.Identity(), nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{Token: token, User: user.Identity()}, nil
}

// storageError passes classified errors through and wraps the rest as
// upstream failures, logging the cause.
func (s *AuthService) storageError(op string, err error) error {
	return classifyStorage(s.logger, op, err)
}

func classifyStorage(logger *slog.Logger, op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	logger.Error("storage call failed", slog.String("op", op), slog.String("error", err.Error()))
	return apperror.Upstream(op, err)
}
