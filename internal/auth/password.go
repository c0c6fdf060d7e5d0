package auth

// Password and security-answer hashing.
//
// WHY BCRYPT?
// bcrypt is deliberately slow, generates and embeds a random salt, and
// carries its work factor in the hash itself:
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (2^12 rounds)
//	 version
//
// Both secrets an account has go through it: the password, and the answer
// to the account's security question (used by /reset_password). Neither is
// ever stored or logged in plain text.

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Password length bounds in bytes. bcrypt silently truncates input past
// 72 bytes, so longer passwords are rejected rather than truncated.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// defaultCost is the bcrypt work factor, roughly 250ms per hash.
const defaultCost = 12

// ErrMismatch is returned by Verify and VerifyAnswer when the secret does
// not match the hash.
var ErrMismatch = errors.New("auth: secret does not match")

// PasswordService provides bcrypt hashing and verification. The cost is a
// field so tests can run at bcrypt.MinCost.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with a custom cost.
// Do NOT use in production; pass bcrypt.MinCost (4) from tests.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// CheckPassword reports whether plaintext is an acceptable password.
func CheckPassword(plaintext string) error {
	switch {
	case len(plaintext) < MinPasswordLength:
		return fmt.Errorf("password must be at least %d bytes", MinPasswordLength)
	case len(plaintext) > MaxPasswordLength:
		return fmt.Errorf("password must be %d bytes or fewer", MaxPasswordLength)
	}
	return nil
}

// Hash hashes a password with bcrypt.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordLength {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordLength)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify checks a password against a stored hash in constant time.
// A wrong password is ErrMismatch; a corrupt hash is a different error.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatch
		}
		return fmt.Errorf("auth: comparing hash: %w", err)
	}
	return nil
}

// NormalizeAnswer is applied to security answers before hashing and before
// comparison, so "Fluffy " and "fluffy" are the same answer.
func NormalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

// HashAnswer hashes a normalized security answer.
func (p *PasswordService) HashAnswer(answer string) (string, error) {
	normalized := NormalizeAnswer(answer)
	if normalized == "" {
		return "", errors.New("auth: security answer is empty")
	}
	return p.Hash(normalized)
}

// VerifyAnswer checks a security answer against its stored hash.
func (p *PasswordService) VerifyAnswer(hash, answer string) error {
	return p.Verify(hash, NormalizeAnswer(answer))
}
