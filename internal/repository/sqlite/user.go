package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/filpulse/internal/apperror"
	"github.com/sakif/filpulse/internal/model"
)

const userColumns = `id, username, password_hash, question, answer_hash, github_id, avatar_url, created_at, updated_at`

// CreateUser inserts a password account.
//
// The UNIQUE constraint on username does the duplicate check, so two
// concurrent signups for the same name cannot both succeed.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, question, answer_hash, github_id, avatar_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.Question,
		user.AnswerHash,
		user.GitHubID,
		user.AvatarURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Username, err)
	}
	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := db.scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByUsername retrieves a user by their (lowercase) username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := db.scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", username, err)
	}
	return u, nil
}

// UpdatePassword replaces the password hash of user id.
func (db *DB) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating password of %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: updating password of %s: %w", id, err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// UpsertGitHubUser inserts or refreshes the account bound to
// user.GitHubID.
//
// INSERT ... ON CONFLICT (github_id) DO UPDATE keeps the existing internal
// ID on re-authentication and refreshes the avatar. The username is NOT
// updated on conflict: it is the login the account was created with. If
// the INSERT instead collides on username, another account already owns
// that name and we report a conflict rather than merging the two.
//
// After the upsert, we SELECT the row back to populate the ID and
// timestamps the caller needs.
func (db *DB) UpsertGitHubUser(ctx context.Context, user *model.User) error {
	if user.GitHubID == nil {
		return apperror.ValidationFailed("github_id", "github id is required")
	}
	now := time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, github_id, avatar_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (github_id) DO UPDATE SET avatar_url = excluded.avatar_url, updated_at = excluded.updated_at`,
		xid.New().String(), user.Username, *user.GitHubID, user.AvatarURL, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlite: upserting github user %d: %w", *user.GitHubID, err)
	}

	u, err := db.scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE github_id = ?`, *user.GitHubID))
	if err != nil {
		return fmt.Errorf("sqlite: reading github user %d: %w", *user.GitHubID, err)
	}
	*user = *u
	return nil
}

func (db *DB) scanUser(row *sql.Row) (*model.User, error) {
	var (
		u        model.User
		githubID sql.NullInt64
	)
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.Question,
		&u.AnswerHash,
		&githubID,
		&u.AvatarURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if githubID.Valid {
		id := githubID.Int64
		u.GitHubID = &id
	}
	return &u, nil
}

// isUniqueViolation matches SQLite's constraint error. modernc's error
// text names the failed constraint ("UNIQUE constraint failed: users.username").
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isForeignKeyViolation matches "FOREIGN KEY constraint failed". Foreign
// keys are enforced because New turns on PRAGMA foreign_keys.
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
