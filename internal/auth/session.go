// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the iss claim of every session token.
const Issuer = "presencewatch"

// MinSecretLength is the minimum HS256 key length in bytes.
const MinSecretLength = 32

var (
	// ErrInvalidCredentials is returned for any token or account key that
	// does not authenticate. The wrapped cause is logged, never sent.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrWeakSecret is returned when the signing secret is too short.
	ErrWeakSecret = fmt.Errorf("session secret must be at least %d characters", MinSecretLength)
)

// Claims are the session token claims. Subject is the account key.
type Claims struct {
	jwt.RegisteredClaims
}

// AccountKey returns the account the session belongs to.
func (c *Claims) AccountKey() string {
	return c.Subject
}

// SessionManager issues and validates bearer session tokens. Tokens are
// stateless; they stay valid until they expire or the secret changes.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionManager creates a manager signing with secret. A non-positive
// ttl defaults to 24h.
func NewSessionManager(secret string, ttl time.Duration) (*SessionManager, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a session token for accountKey and returns it with its expiry.
func (m *SessionManager) Issue(accountKey string) (string, time.Time, error) {
	if accountKey == "" {
		return "", time.Time{}, fmt.Errorf("issue session: empty account key")
	}

	now := m.now()
	expires := now.Add(m.ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   accountKey,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// Validate checks signature, algorithm, issuer and expiry and returns the
// claims. Every failure wraps ErrInvalidCredentials.
func (m *SessionManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: invalid token claims", ErrInvalidCredentials)
	}
	return claims, nil
}
