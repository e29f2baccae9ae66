// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/presencewatch/internal/logging"
	"github.com/tomtom215/presencewatch/internal/models"
)

// Method is how a request was authenticated.
type Method string

const (
	MethodSession    Method = "session"
	MethodAccountKey Method = "account_key"
)

// SessionCookie is checked when no Authorization header is present.
const SessionCookie = "session"

// AccountQueryParam names the permissive account key parameter.
const AccountQueryParam = "account"

var (
	errMissingCredentials = errors.New("missing credentials")
	errAuthDisabled       = errors.New("no authentication method is configured")
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller.
type Principal struct {
	AccountKey string
	Method     Method
	// ExpiresAt is zero for account key access.
	ExpiresAt time.Time
}

// ContextWithPrincipal returns a context carrying p.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal set by Authenticate.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// ErrorFunc writes an authentication or authorization failure.
type ErrorFunc func(w http.ResponseWriter, r *http.Request, status int, code, message string)

// Options configures the middleware.
type Options struct {
	// Sessions validates bearer tokens. Nil disables session auth.
	Sessions *SessionManager
	// Accounts resolves ?account= keys.
	Accounts *Accounts
	// AllowAccountKeyQuery enables ?account=<key> for configured accounts.
	AllowAccountKeyQuery bool
	// OnError writes failures. Defaults to a JSON error envelope.
	OnError ErrorFunc
}

// Middleware authenticates API requests.
type Middleware struct {
	sessions   *SessionManager
	accounts   *Accounts
	allowQuery bool
	onError    ErrorFunc
}

// NewMiddleware creates the authentication middleware.
func NewMiddleware(opts Options) *Middleware {
	if opts.OnError == nil {
		opts.OnError = WriteError
	}
	if opts.Accounts == nil {
		opts.Accounts = NewAccounts(nil)
	}
	return &Middleware{
		sessions:   opts.Sessions,
		accounts:   opts.Accounts,
		allowQuery: opts.AllowAccountKeyQuery,
		onError:    opts.OnError,
	}
}

// Authenticate requires a valid bearer session or, when enabled, the key of
// a configured account. Failures get 401.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.authenticate(r)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("Authentication failed")
			if m.sessions != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="presencewatch"`)
			}
			m.onError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
	})
}

func (m *Middleware) authenticate(r *http.Request) (*Principal, error) {
	if token, ok := bearerToken(r); ok {
		if m.sessions == nil {
			return nil, fmt.Errorf("%w: session auth is disabled", ErrInvalidCredentials)
		}
		claims, err := m.sessions.Validate(token)
		if err != nil {
			return nil, err
		}
		var expires time.Time
		if claims.ExpiresAt != nil {
			expires = claims.ExpiresAt.Time
		}
		return &Principal{AccountKey: claims.AccountKey(), Method: MethodSession, ExpiresAt: expires}, nil
	}

	if key := r.URL.Query().Get(AccountQueryParam); key != "" {
		if !m.allowQuery {
			return nil, fmt.Errorf("%w: account key access is disabled", ErrInvalidCredentials)
		}
		if !m.accounts.Has(key) {
			return nil, fmt.Errorf("%w: unknown account %q", ErrInvalidCredentials, key)
		}
		return &Principal{AccountKey: key, Method: MethodAccountKey}, nil
	}

	if m.sessions == nil && !m.allowQuery {
		return nil, errAuthDisabled
	}
	return nil, errMissingCredentials
}

// bearerToken reads the Authorization header, falling back to the session
// cookie for browser clients that cannot set headers on EventSource or
// WebSocket connections.
func bearerToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", true
		}
		return strings.TrimSpace(token), true
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

// RequireAccount restricts a route to the principal whose account key
// matches the named chi URL parameter. Mismatches get 403.
func (m *Middleware) RequireAccount(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				m.onError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}
			if key := chi.URLParam(r, param); key != p.AccountKey {
				m.onError(w, r, http.StatusForbidden, "FORBIDDEN", "session does not grant access to this account")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError is the default ErrorFunc. It writes the standard API error
// envelope.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: requestDetails(r),
		},
	})
}

func requestDetails(r *http.Request) map[string]interface{} {
	id := logging.RequestIDFromContext(r.Context())
	if id == "" {
		return nil
	}
	return map[string]interface{}{"request_id": id}
}
