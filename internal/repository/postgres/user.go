package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"

	"github.com/sakif/filpulse/internal/apperror"
	"github.com/sakif/filpulse/internal/model"
)

const userColumns = `id, username, password_hash, question, answer_hash, github_id, avatar_url, created_at, updated_at`

// CreateUser inserts a password account. A taken username surfaces as a
// unique violation and becomes apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, username, password_hash, question, answer_hash, github_id, avatar_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	now := time.Now().UTC()
	u.ID = xid.New().String()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := db.Pool.Exec(ctx, q, u.ID, u.Username, u.PasswordHash, u.Question, u.AnswerHash, u.GitHubID, u.AvatarURL, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return apperror.Conflict("user", u.Username)
	}
	if err != nil {
		return fmt.Errorf("postgres: inserting user %s: %w", u.Username, err)
	}
	return nil
}

// GetUserByID selects a user by ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("postgres: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByUsername selects a user by (lowercase) username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	u, err := scanUser(db.Pool.QueryRow(ctx, q, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("postgres: getting user %s: %w", username, err)
	}
	return u, nil
}

// UpdatePassword replaces the password hash of user id.
func (db *DB) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const q = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	tag, err := db.Pool.Exec(ctx, q, id, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("postgres: updating password of %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// UpsertGitHubUser creates or refreshes the account bound to u.GitHubID
// in one statement. The conflict target is github_id, so a unique
// violation that still escapes can only be the username: another account
// owns it.
func (db *DB) UpsertGitHubUser(ctx context.Context, u *model.User) error {
	if u.GitHubID == nil {
		return apperror.ValidationFailed("github_id", "github id is required")
	}
	const q = `
INSERT INTO users (id, username, github_id, avatar_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (github_id) DO UPDATE SET avatar_url = EXCLUDED.avatar_url, updated_at = EXCLUDED.updated_at
RETURNING ` + userColumns

	got, err := scanUser(db.Pool.QueryRow(ctx, q, xid.New().String(), u.Username, *u.GitHubID, u.AvatarURL, time.Now().UTC()))
	if isUniqueViolation(err) {
		return apperror.Conflict("user", u.Username)
	}
	if err != nil {
		return fmt.Errorf("postgres: upserting github user %d: %w", *u.GitHubID, err)
	}
	*u = *got
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u        model.User
		githubID sql.NullInt64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Question, &u.AnswerHash, &githubID, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if githubID.Valid {
		id := githubID.Int64
		u.GitHubID = &id
	}
	return &u, nil
}
