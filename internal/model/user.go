// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a row of the users table.
//
// Username is always stored lowercase; every lookup lowercases its input
// first, so "Alice" and "alice" are the same account.
//
// An account is created either by password signup (PasswordHash, Question
// and AnswerHash set, GitHubID nil) or by the first GitHub OAuth exchange
// (GitHubID set, password fields empty). GitHubID is a pointer because it is
// a nullable UNIQUE column: many password accounts, each GitHub account once.
type User struct {
	ID           string    `json:"user_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Question     string    `json:"-"`
	AnswerHash   string    `json:"-"`
	GitHubID     *int64    `json:"-"`
	AvatarURL    string    `json:"avatar_url"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// Identity is the public view of a user, returned by auth endpoints and /me.
type Identity struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// Identity strips the credential fields.
func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Username: u.Username, AvatarURL: u.AvatarURL}
}

// HasPassword reports whether the account can log in with a password.
// Accounts created through OAuth cannot.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
