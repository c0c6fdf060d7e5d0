// Package auth issues and verifies the bearer tokens that identify API
// callers, and hashes the secrets behind them.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. A caller signs up, logs in, resets a password, or exchanges a GitHub
//     OAuth code. Each of these ends with TokenService.Generate(userID).
//  2. The token is returned in the JSON body; the client stores it.
//  3. Every later request sends "Authorization: Bearer <token>".
//  4. The OptionalAuth middleware verifies it and puts the user id in the
//     request context. A missing or bad token is NOT an error at this
//     point: the request simply continues as anonymous, and each endpoint
//     decides whether it needs an identity.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<user id>","iss":"filpulse","exp":...,"iat":...}
//	- Signature: HMAC-SHA256(header+"."+payload, TOKEN_KEY)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 30 * 24 * time.Hour

const issuer = "filpulse"

// ErrInvalidToken is returned by Validate for every token it rejects.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenService handles JWT creation and validation with one HMAC key.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
// Example: TOKEN_KEY=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: token key must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), ttl: TokenTTL, now: time.Now}, nil
}

// Generate signs a token for userID that expires after TokenTTL.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime. Tests use a
// negative duration to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("auth: cannot issue a token without a user id")
	}
	now := s.now()

	c := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		Issuer:    issuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a JWT string and returns its subject.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid and the algorithm is HS256 (no "none", no RS/HS
//     confusion)
//   - Token has an expiry and it is in the future
//   - Issuer is "filpulse"
//
// Every failure wraps ErrInvalidToken; the wrapped jwt error says why.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || c.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}
	return c.Subject, nil
}
