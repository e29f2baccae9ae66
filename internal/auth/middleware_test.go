// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/presencewatch/internal/config"
	"github.com/tomtom215/presencewatch/internal/models"
)

func principalHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			t.Error("handler reached without principal")
			return
		}
		_, _ = w.Write([]byte(string(p.Method) + ":" + p.AccountKey))
	})
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	sessions := newTestSessions(t, time.Hour)
	token, _, _ := sessions.Issue("alice")
	accounts := NewAccounts([]config.AccountConfig{{Key: "alice", Token: "t1"}, {Key: "bob", Token: "t2"}})

	tests := []struct {
		name       string
		opts       Options
		setup      func(r *http.Request)
		wantStatus int
		wantBody   string
	}{
		{
			name:       "bearer session",
			opts:       Options{Sessions: sessions, Accounts: accounts},
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
			wantStatus: http.StatusOK,
			wantBody:   "session:alice",
		},
		{
			name:       "session cookie",
			opts:       Options{Sessions: sessions, Accounts: accounts},
			setup:      func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token}) },
			wantStatus: http.StatusOK,
			wantBody:   "session:alice",
		},
		{
			name:       "invalid bearer",
			opts:       Options{Sessions: sessions, Accounts: accounts},
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong scheme",
			opts:       Options{Sessions: sessions, Accounts: accounts},
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Basic "+token) },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing credentials",
			opts:       Options{Sessions: sessions, Accounts: accounts},
			setup:      func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "account key when enabled",
			opts:       Options{Sessions: sessions, Accounts: accounts, AllowAccountKeyQuery: true},
			setup:      func(r *http.Request) { r.URL.RawQuery = "account=bob" },
			wantStatus: http.StatusOK,
			wantBody:   "account_key:bob",
		},
		{
			name:       "account key when disabled",
			opts:       Options{Sessions: sessions, Accounts: accounts},
			setup:      func(r *http.Request) { r.URL.RawQuery = "account=bob" },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown account key",
			opts:       Options{Accounts: accounts, AllowAccountKeyQuery: true},
			setup:      func(r *http.Request) { r.URL.RawQuery = "account=mallory" },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "bearer without session manager",
			opts:       Options{Accounts: accounts, AllowAccountKeyQuery: true},
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "nothing configured",
			opts:       Options{},
			setup:      func(r *http.Request) { r.URL.RawQuery = "account=alice" },
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := NewMiddleware(tt.opts).Authenticate(principalHandler(t))
			req := httptest.NewRequest(http.MethodGet, "/api/v1/presence", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				var env models.APIResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
					t.Fatalf("401 body is not a JSON envelope: %v", err)
				}
				if env.Status != "error" || env.Error == nil || env.Error.Code != "UNAUTHORIZED" {
					t.Errorf("envelope = %+v", env)
				}
			}
		})
	}
}

func TestAuthenticate_AccountsReplace(t *testing.T) {
	t.Parallel()

	accounts := NewAccounts([]config.AccountConfig{{Key: "alice", Token: "t1"}})
	handler := NewMiddleware(Options{Accounts: accounts, AllowAccountKeyQuery: true}).Authenticate(principalHandler(t))

	do := func() int {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?account=alice", nil))
		return rec.Code
	}

	if got := do(); got != http.StatusOK {
		t.Fatalf("before reload status = %d, want 200", got)
	}
	accounts.Replace([]config.AccountConfig{{Key: "bob", Token: "t2"}})
	if got := do(); got != http.StatusUnauthorized {
		t.Errorf("after reload status = %d, want 401", got)
	}
	if keys := accounts.Keys(); len(keys) != 1 || keys[0] != "bob" {
		t.Errorf("Keys() = %v, want [bob]", keys)
	}
}

func TestRequireAccount(t *testing.T) {
	t.Parallel()

	sessions := newTestSessions(t, time.Hour)
	token, _, _ := sessions.Issue("alice")
	mw := NewMiddleware(Options{Sessions: sessions})

	r := chi.NewRouter()
	r.With(mw.Authenticate, mw.RequireAccount("key")).Get("/accounts/{key}/user", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/accounts/alice/user", http.StatusOK},
		{"/accounts/bob/user", http.StatusForbidden},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusForbidden && !strings.Contains(rec.Body.String(), "FORBIDDEN") {
				t.Errorf("body = %s, want FORBIDDEN envelope", rec.Body.String())
			}
		})
	}
}
