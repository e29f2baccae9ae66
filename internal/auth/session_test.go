// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestSessions(t *testing.T, ttl time.Duration) *SessionManager {
	t.Helper()
	m, err := NewSessionManager(testSecret, ttl)
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}
	return m
}

func TestNewSessionManager(t *testing.T) {
	t.Parallel()

	if _, err := NewSessionManager("short", time.Hour); !errors.Is(err, ErrWeakSecret) {
		t.Errorf("short secret error = %v, want ErrWeakSecret", err)
	}

	m := newTestSessions(t, 0)
	if m.ttl != 24*time.Hour {
		t.Errorf("default ttl = %v, want 24h", m.ttl)
	}
}

func TestSessionManager_IssueValidate(t *testing.T) {
	t.Parallel()

	m := newTestSessions(t, time.Hour)
	token, expires, err := m.Issue("alice")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if time.Until(expires) <= 59*time.Minute {
		t.Errorf("expires = %v, want about an hour from now", expires)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if claims.AccountKey() != "alice" {
		t.Errorf("AccountKey() = %q, want alice", claims.AccountKey())
	}
	if claims.Issuer != Issuer {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, Issuer)
	}

	if _, _, err := m.Issue(""); err == nil {
		t.Error("Issue(\"\") should fail")
	}
}

func TestSessionManager_Rejects(t *testing.T) {
	t.Parallel()

	m := newTestSessions(t, time.Hour)
	valid, _, err := m.Issue("alice")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	expired := newTestSessions(t, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, _, _ := expired.Issue("alice")

	other, _ := NewSessionManager(strings.Repeat("z", MinSecretLength), time.Hour)
	foreignToken, _, _ := other.Issue("alice")

	noneToken, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	wrongIssuer, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer, Subject: "alice"},
	}).SignedString([]byte(testSecret))

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"tampered", valid[:len(valid)-2] + "xx"},
		{"expired", expiredToken},
		{"foreign secret", foreignToken},
		{"alg none", noneToken},
		{"wrong issuer", wrongIssuer},
		{"no expiry", noExpiry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Validate(tt.token); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Validate() error = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}
