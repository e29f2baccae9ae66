// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/presencewatch/internal/auth"
	"github.com/tomtom215/presencewatch/internal/config"
	"github.com/tomtom215/presencewatch/internal/loop"
	"github.com/tomtom215/presencewatch/internal/models"
	"github.com/tomtom215/presencewatch/internal/stream"
	"github.com/tomtom215/presencewatch/internal/tenant"
)

// fakePresence is an in-memory PresenceView.
type fakePresence struct {
	mu     sync.Mutex
	snaps  map[string]models.EntitySnapshot
	states map[string]loop.State
}

func newFakePresence(snaps ...models.EntitySnapshot) *fakePresence {
	p := &fakePresence{
		snaps:  make(map[string]models.EntitySnapshot),
		states: make(map[string]loop.State),
	}
	for _, s := range snaps {
		p.snaps[s.ID] = s
	}
	return p
}

func (p *fakePresence) Snapshot(id string) (models.EntitySnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.snaps[id]
	return s, ok
}

func (p *fakePresence) Snapshots() []models.EntitySnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.EntitySnapshot, 0, len(p.snaps))
	for _, s := range p.snaps {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (p *fakePresence) Counts() (tracked, online int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.snaps {
		tracked++
		if s.Online {
			online++
		}
	}
	return tracked, online
}

func (p *fakePresence) LoopStates() map[string]loop.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]loop.State, len(p.states))
	for k, v := range p.states {
		out[k] = v
	}
	return out
}

func (p *fakePresence) setState(name string, s loop.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[name] = s
}

// fakeSource is an upstream.PresenceSource with call counters.
type fakeSource struct {
	user    *models.Account
	friends []models.Friend
	err     error

	userCalls    atomic.Int32
	friendsCalls atomic.Int32
}

func (s *fakeSource) CurrentUser(ctx context.Context, token string) (*models.Account, error) {
	s.userCalls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	u := *s.user
	return &u, nil
}

func (s *fakeSource) Friends(ctx context.Context, token string) ([]models.Friend, error) {
	s.friendsCalls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.friends, nil
}

var testAccounts = []config.AccountConfig{
	{Key: "alice", Token: "alice-token"},
	{Key: "bob", Token: "bob-token"},
}

func testFriends() []models.Friend {
	return []models.Friend{
		{ID: "f1", Name: "Callie", Presence: models.Presence{State: models.StatePlaying, Game: &models.Game{ID: "g1", Name: "Splatoon 3"}}},
		{ID: "f2", Name: "Marie", Presence: models.Presence{State: models.StateOffline}},
	}
}

type testEnv struct {
	handler  *Handler
	presence *fakePresence
	source   *fakeSource
	hub      *stream.Hub
	cache    *tenant.Cache
}

func newTestEnv(t *testing.T, apiCfg config.APIConfig, snaps ...models.EntitySnapshot) *testEnv {
	t.Helper()
	env := &testEnv{
		presence: newFakePresence(snaps...),
		source: &fakeSource{
			user:    &models.Account{ID: "nsa-1", Name: "Agent 3", Presence: models.Presence{State: models.StateOnline}},
			friends: testFriends(),
		},
		hub:   stream.NewHub(stream.DefaultBufferSize, zerolog.Nop()),
		cache: tenant.New(time.Minute, 5*time.Second, zerolog.Nop()),
	}
	env.handler = NewHandler(Options{
		Presence: env.presence,
		Hub:      env.hub,
		Cache:    env.cache,
		Source:   env.source,
		Accounts: auth.NewAccounts(testAccounts),
		Config:   apiCfg,
		Version:  "test",
		Logger:   zerolog.Nop(),
	})
	return env
}

// routes mounts the handler without authentication.
func (env *testEnv) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health/live", env.handler.HealthLive)
	r.Get("/health/ready", env.handler.HealthReady)
	r.Get("/accounts/{key}/user", env.handler.AccountUser)
	r.Get("/accounts/{key}/friends", env.handler.AccountFriends)
	r.Get("/accounts/{key}/friends/{id}", env.handler.AccountFriend)
	r.Get("/presence", env.handler.PresenceList)
	r.Get("/presence/{id}", env.handler.PresenceOne)
	r.Get("/presence/{id}/events", env.handler.PresenceEvents)
	r.Get("/presence/{id}/ws", env.handler.PresenceWebSocket)
	r.Get("/events", env.handler.AllEvents)
	return r
}

func (env *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	env.routes().ServeHTTP(w, req)
	return w
}

// decodeResponse decodes the envelope and re-decodes Data into data, if set.
func decodeResponse(t *testing.T, body []byte, data interface{}) models.APIResponse {
	t.Helper()
	var raw struct {
		models.APIResponse
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("decode response: %v; body = %s", err, body)
	}
	if data != nil && len(raw.Data) > 0 && string(raw.Data) != "null" {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("decode data: %v; data = %s", err, raw.Data)
		}
	}
	return raw.APIResponse
}

func playing(id, details string) models.EntitySnapshot {
	return models.EntitySnapshot{
		ID:         id,
		Kind:       "friend",
		Account:    "alice",
		Online:     true,
		Descriptor: &models.ActivityDescriptor{Details: details},
	}
}
