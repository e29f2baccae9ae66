// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package presence

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/presencewatch/internal/config"
	"github.com/tomtom215/presencewatch/internal/loop"
	"github.com/tomtom215/presencewatch/internal/models"
	"github.com/tomtom215/presencewatch/internal/monitor"
	"github.com/tomtom215/presencewatch/internal/stream"
	"github.com/tomtom215/presencewatch/internal/tenant"
	"github.com/tomtom215/presencewatch/internal/upstream"
)

const (
	kindA monitor.Kind = "test.a"
	kindB monitor.Kind = "test.b"
)

// fakeSource serves presence from mutable fields.
type fakeSource struct {
	mu        sync.Mutex
	user      *models.Account
	userErr   error
	friends   []models.Friend
	friendErr error

	userCalls   atomic.Int32
	friendCalls atomic.Int32
}

func (s *fakeSource) CurrentUser(context.Context, string) (*models.Account, error) {
	s.userCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userErr != nil {
		return nil, s.userErr
	}
	u := *s.user
	return &u, nil
}

func (s *fakeSource) Friends(context.Context, string) ([]models.Friend, error) {
	s.friendCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.friendErr != nil {
		return nil, s.friendErr
	}
	return append([]models.Friend(nil), s.friends...), nil
}

func (s *fakeSource) setUser(p models.Presence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &models.Account{ID: "u1", Name: "Marie", Presence: p}
}

func (s *fakeSource) setUserErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userErr = err
}

// fakeMonitor enriches with details when they are set.
type fakeMonitor struct {
	kind  monitor.Kind
	scope monitor.Scope

	mu      sync.Mutex
	cfg     monitor.Config
	details string
	err     error

	updates atomic.Int32
}

func (m *fakeMonitor) Kind() monitor.Kind         { return m.kind }
func (m *fakeMonitor) Init(context.Context) error { return nil }

func (m *fakeMonitor) Update(context.Context) error {
	m.updates.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *fakeMonitor) Reconfigure(cfg any) bool {
	c, ok := cfg.(monitor.Config)
	if !ok {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.cfg.Equivalent(c) {
		return false
	}
	m.cfg = c
	return true
}

func (m *fakeMonitor) BuildActivity(base models.ActivityDescriptor, _ models.Presence) *models.ActivityDescriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.details == "" {
		return nil
	}
	base.Details = m.details
	return &base
}

func (m *fakeMonitor) set(details string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.details = details
	m.err = err
}

// monitorFactory records every monitor it creates.
type monitorFactory struct {
	mu       sync.Mutex
	created  []*fakeMonitor
	defaults map[monitor.Kind]string
}

func (f *monitorFactory) new(scope monitor.Scope, cfg monitor.Config) (monitor.Monitor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := &fakeMonitor{kind: cfg.Kind, scope: scope, cfg: cfg, details: f.defaults[cfg.Kind]}
	f.created = append(f.created, m)
	return m, nil
}

func (f *monitorFactory) latest(kind monitor.Kind) *fakeMonitor {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.created) - 1; i >= 0; i-- {
		if f.created[i].kind == kind {
			return f.created[i]
		}
	}
	return nil
}

func (f *monitorFactory) count(kind monitor.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.created {
		if m.kind == kind {
			n++
		}
	}
	return n
}

// goHost runs every added service until the test ends.
type goHost struct {
	ctx context.Context
	wg  sync.WaitGroup
}

func newGoHost(t *testing.T) *goHost {
	ctx, cancel := context.WithCancel(context.Background())
	h := &goHost{ctx: ctx}
	t.Cleanup(func() {
		cancel()
		h.wg.Wait()
	})
	return h
}

func (h *goHost) Add(s suture.Service) suture.ServiceToken {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		_ = s.Serve(h.ctx)
	}()
	return suture.ServiceToken{}
}

// recorder is an activity and notification sink.
type recorder struct {
	mu          sync.Mutex
	activities  []*models.ActivityDescriptor
	transitions []models.Transition
}

func (r *recorder) SetActivity(_ context.Context, _ string, d *models.ActivityDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities = append(r.activities, d)
	return nil
}

func (r *recorder) Notify(_ context.Context, t models.Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
	return nil
}

func (r *recorder) kinds() []models.TransitionKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.TransitionKind, len(r.transitions))
	for i, t := range r.transitions {
		out[i] = t.Kind
	}
	return out
}

func (r *recorder) lastActivity() (*models.ActivityDescriptor, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.activities) == 0 {
		return nil, 0
	}
	return r.activities[len(r.activities)-1], len(r.activities)
}

type harness struct {
	coord    *Coordinator
	source   *fakeSource
	factory  *monitorFactory
	registry *monitor.Registry
	rec      *recorder
	hub      *stream.Hub
}

func newHarness(t *testing.T, maxMalformed int) *harness {
	t.Helper()
	h := &harness{
		source:  &fakeSource{},
		factory: &monitorFactory{defaults: map[monitor.Kind]string{}},
		rec:     &recorder{},
		hub:     stream.NewHub(256, zerolog.Nop()),
	}
	h.source.setUser(models.Presence{State: models.StateOffline})

	registry := monitor.NewRegistry()
	registry.Register(kindA, h.factory.new)
	registry.Register(kindB, h.factory.new)
	h.registry = registry

	h.coord = NewCoordinator(Options{
		Source:        h.source,
		Cache:         tenant.New(0, time.Second, zerolog.Nop()),
		Registry:      registry,
		Host:          newGoHost(t),
		Activity:      h.rec,
		Notifications: h.rec,
		Hub:           h.hub,
		Presence: config.PresenceConfig{
			UpdateInterval: 5 * time.Millisecond,
			FriendInterval: 5 * time.Millisecond,
			MinInterval:    time.Millisecond,
			RetryBackoff:   "immediate",
		},
		MaxMalformed: maxMalformed,
		Logger:       zerolog.Nop(),
	})
	return h
}

func playing(game, mode string) models.Presence {
	return models.Presence{
		State:     models.StatePlaying,
		UpdatedAt: time.Unix(1700000000, 0),
		Game:      &models.Game{ID: "g-" + game, Name: game, SysDescription: "In a match", ModeTag: mode},
	}
}

func accountSpec(monitors ...monitor.Config) EntitySpec {
	return EntitySpec{ID: "main", Kind: EntityAccount, Account: "main", Token: "tok", Monitors: monitors}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func descriptorIs(c *Coordinator, id, details string) func() bool {
	return func() bool {
		s, ok := c.Snapshot(id)
		if !ok {
			return false
		}
		if details == "" {
			return s.Descriptor == nil
		}
		return s.Descriptor != nil && s.Descriptor.Details == details
	}
}

func TestCoordinator_BaseDescriptorAndDedup(t *testing.T) {
	h := newHarness(t, 0)
	h.source.setUser(playing("Splatoon 3", "regular"))

	if err := h.coord.Track(accountSpec()); err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	waitFor(t, "base descriptor", descriptorIs(h.coord, "main", "Splatoon 3"))

	// Let the loop run many more cycles with unchanged presence.
	start := h.source.userCalls.Load()
	waitFor(t, "more cycles", func() bool { return h.source.userCalls.Load() > start+5 })

	d, n := h.rec.lastActivity()
	if n != 1 {
		t.Errorf("activity pushes = %d, want 1", n)
	}
	if d.State != "In a match" || d.LargeImageText != "Splatoon 3" || !d.StartTimestamp.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("descriptor = %+v", d)
	}
	if kinds := h.rec.kinds(); len(kinds) != 1 || kinds[0] != models.TransitionOnline {
		t.Errorf("transitions = %v, want [online]", kinds)
	}
	ev, ok := h.hub.Latest("main")
	if !ok || ev.Seq != 1 || !ev.Online || ev.Name != "Marie" {
		t.Errorf("hub latest = %+v", ev)
	}
}

func TestCoordinator_TransitionsFollowPresence(t *testing.T) {
	h := newHarness(t, 0)
	h.source.setUser(playing("Splatoon 3", "regular"))
	_ = h.coord.Track(accountSpec())
	waitFor(t, "online", descriptorIs(h.coord, "main", "Splatoon 3"))

	h.source.setUser(playing("Mario Kart 8", ""))
	waitFor(t, "changed", descriptorIs(h.coord, "main", "Mario Kart 8"))

	h.source.setUser(models.Presence{State: models.StateOnline})
	waitFor(t, "offline", descriptorIs(h.coord, "main", ""))

	want := []models.TransitionKind{models.TransitionOnline, models.TransitionChanged, models.TransitionOffline}
	got := h.rec.kinds()
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, got[i], want[i])
		}
	}
	snap, _ := h.coord.Snapshot("main")
	if !snap.Online {
		t.Error("online-but-idle entity should report online")
	}
}

func TestCoordinator_MonitorPriority(t *testing.T) {
	h := newHarness(t, 0)
	h.factory.defaults[kindA] = ""
	h.factory.defaults[kindB] = "enriched by b"
	h.source.setUser(playing("Splatoon 3", "regular"))

	spec := accountSpec(
		monitor.Config{Kind: kindB, Enabled: true},
		monitor.Config{Kind: kindA, Enabled: true},
	)
	if err := h.coord.Track(spec); err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	waitFor(t, "b enrichment", descriptorIs(h.coord, "main", "enriched by b"))

	// kindA is registered first, so once it enriches it wins.
	h.factory.latest(kindA).set("enriched by a", nil)
	waitFor(t, "a enrichment", descriptorIs(h.coord, "main", "enriched by a"))

	snap, _ := h.coord.Snapshot("main")
	if len(snap.Monitors) != 2 || snap.Monitors[0] != string(kindA) {
		t.Errorf("monitors = %v, want registry order", snap.Monitors)
	}
}

func TestCoordinator_DisabledMonitorIgnored(t *testing.T) {
	h := newHarness(t, 0)
	_ = h.coord.Track(accountSpec(monitor.Config{Kind: kindA, Enabled: false}))

	if n := h.factory.count(kindA); n != 0 {
		t.Errorf("disabled monitor created %d times", n)
	}
}

func TestCoordinator_MonitorStopDegrades(t *testing.T) {
	h := newHarness(t, 1)
	h.factory.defaults[kindA] = "enriched"
	h.source.setUser(playing("Splatoon 3", "regular"))

	_ = h.coord.Track(accountSpec(monitor.Config{Kind: kindA, Enabled: true}))
	waitFor(t, "enriched", descriptorIs(h.coord, "main", "enriched"))

	malformed := &upstream.Error{Kind: upstream.KindMalformed, Op: "schedules", Err: errors.New("bad json")}
	h.factory.latest(kindA).set("enriched", malformed)

	waitFor(t, "degraded to base", descriptorIs(h.coord, "main", "Splatoon 3"))

	// Base keeps running.
	calls := h.source.userCalls.Load()
	waitFor(t, "base still polling", func() bool { return h.source.userCalls.Load() > calls+3 })

	kinds := h.rec.kinds()
	errorsSeen := 0
	for _, k := range kinds {
		if k == models.TransitionError {
			errorsSeen++
		}
	}
	if errorsSeen != 1 {
		t.Errorf("error transitions = %d, want exactly 1 (%v)", errorsSeen, kinds)
	}
	snap, _ := h.coord.Snapshot("main")
	if len(snap.Monitors) != 0 {
		t.Errorf("stopped monitor still listed: %v", snap.Monitors)
	}
}

func TestCoordinator_MonitorTransientErrorKeepsRunning(t *testing.T) {
	h := newHarness(t, 0)
	h.factory.defaults[kindA] = "enriched"
	h.source.setUser(playing("Splatoon 3", "regular"))
	_ = h.coord.Track(accountSpec(monitor.Config{Kind: kindA, Enabled: true}))
	waitFor(t, "enriched", descriptorIs(h.coord, "main", "enriched"))

	m := h.factory.latest(kindA)
	m.set("enriched", &upstream.Error{Kind: upstream.KindTransport, Err: errors.New("reset")})
	n := m.updates.Load()
	waitFor(t, "retries", func() bool { return m.updates.Load() > n+5 })

	if s, _ := h.coord.Snapshot("main"); s.Descriptor == nil || s.Descriptor.Details != "enriched" {
		t.Errorf("descriptor = %+v, want stale enrichment kept", s.Descriptor)
	}
	for _, k := range h.rec.kinds() {
		if k == models.TransitionError {
			t.Fatal("transient monitor failure reported as error")
		}
	}
}

func TestCoordinator_BaseStopClearsEntity(t *testing.T) {
	h := newHarness(t, 0)
	h.factory.defaults[kindA] = "enriched"
	h.source.setUser(playing("Splatoon 3", "regular"))
	_ = h.coord.Track(accountSpec(monitor.Config{Kind: kindA, Enabled: true}))
	waitFor(t, "enriched", descriptorIs(h.coord, "main", "enriched"))

	h.source.setUserErr(&upstream.Error{Kind: upstream.KindAuthRevoked, Op: "current_user", Status: 403, Err: errors.New("forbidden")})
	waitFor(t, "cleared", descriptorIs(h.coord, "main", ""))

	m := h.factory.latest(kindA)
	waitFor(t, "monitor loop stopped", func() bool {
		for name, st := range h.coord.LoopStates() {
			if name != "presence/main" && !st.Terminal() {
				return false
			}
		}
		return true
	})
	if states := h.coord.LoopStates(); !states["presence/main"].Terminal() {
		t.Errorf("base loop state = %s, want terminal", states["presence/main"])
	}
	n := m.updates.Load()
	time.Sleep(30 * time.Millisecond)
	if m.updates.Load() != n {
		t.Error("monitor kept updating after base stop")
	}

	want := []models.TransitionKind{models.TransitionOnline, models.TransitionError, models.TransitionOffline}
	got := h.rec.kinds()
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, got[i], want[i])
		}
	}
	if snap, _ := h.coord.Snapshot("main"); snap.Online {
		t.Error("stopped entity reported online")
	}
}

func TestCoordinator_ExpiredSessionStopsAfterLimit(t *testing.T) {
	h := newHarness(t, 0)
	h.coord.presence.MaxAuthExpired = 3
	h.source.setUserErr(&upstream.Error{Kind: upstream.KindAuthExpired, Op: "current_user", Status: 401, Err: errors.New("unauthorized")})

	if err := h.coord.Track(accountSpec()); err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	waitFor(t, "base loop stopped", func() bool {
		return h.coord.LoopStates()["presence/main"].Terminal()
	})
	if calls := h.source.userCalls.Load(); calls != 4 {
		t.Errorf("CurrentUser calls = %d, want 4 (limit plus the stopping one)", calls)
	}
}

func TestCoordinator_FriendsShareOneFetch(t *testing.T) {
	h := newHarness(t, 0)
	h.coord.cache = tenant.New(time.Minute, time.Second, zerolog.Nop())
	h.source.friends = []models.Friend{
		{ID: "f1", Name: "Callie", Presence: playing("Splatoon 3", "coop")},
		{ID: "f2", Name: "Pearl", Presence: models.Presence{State: models.StateOffline}},
	}

	for _, id := range []string{"f1", "f2", "f3"} {
		if err := h.coord.Track(EntitySpec{ID: id, Kind: EntityFriend, Account: "main", Token: "tok"}); err != nil {
			t.Fatalf("Track(%s) error = %v", id, err)
		}
	}
	waitFor(t, "f1 online", descriptorIs(h.coord, "f1", "Splatoon 3"))
	waitFor(t, "f3 observed", func() bool {
		s, _ := h.coord.Snapshot("f3")
		return s.Presence != nil
	})

	if n := h.source.friendCalls.Load(); n != 1 {
		t.Errorf("friends fetched %d times, want 1", n)
	}
	f3, _ := h.coord.Snapshot("f3")
	if f3.Presence.State != models.StateOffline || f3.Descriptor != nil {
		t.Errorf("missing friend = %+v, want offline", f3)
	}
	if f1, _ := h.coord.Snapshot("f1"); f1.Name != "Callie" || f1.Kind != string(EntityFriend) || f1.Account != "main" {
		t.Errorf("f1 snapshot = %+v", f1)
	}
}

func TestCoordinator_Untrack(t *testing.T) {
	h := newHarness(t, 0)
	h.source.setUser(playing("Splatoon 3", "regular"))
	_ = h.coord.Track(accountSpec())
	waitFor(t, "online", descriptorIs(h.coord, "main", "Splatoon 3"))

	sub, _, _ := h.hub.Subscribe("main", stream.TransportSSE)

	if err := h.coord.Untrack("main"); err != nil {
		t.Fatalf("Untrack() error = %v", err)
	}
	if h.coord.Has("main") {
		t.Error("entity still tracked")
	}
	if d, _ := h.rec.lastActivity(); d != nil {
		t.Errorf("last activity = %+v, want cleared", d)
	}
	if e, ok := <-sub.Events(); !ok || e.Descriptor != nil {
		t.Errorf("subscriber got %+v, %v; want offline event", e, ok)
	}
	if _, ok := <-sub.Events(); ok {
		t.Error("subscriber should be closed after offline event")
	}
	if err := h.coord.Untrack("main"); !errors.Is(err, ErrNotTracked) {
		t.Errorf("second Untrack() = %v, want ErrNotTracked", err)
	}
}

func TestCoordinator_TrackErrors(t *testing.T) {
	h := newHarness(t, 0)

	if err := h.coord.Track(EntitySpec{ID: "x", Kind: "robot", Account: "main"}); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("invalid kind = %v, want ErrInvalidSpec", err)
	}
	_ = h.coord.Track(accountSpec())
	if err := h.coord.Track(accountSpec()); !errors.Is(err, ErrAlreadyTracked) {
		t.Errorf("duplicate = %v, want ErrAlreadyTracked", err)
	}

	err := h.coord.Track(EntitySpec{
		ID: "f1", Kind: EntityFriend, Account: "main", Token: "tok",
		Monitors: []monitor.Config{{Kind: "unknown.kind", Enabled: true}},
	})
	if !errors.Is(err, monitor.ErrUnknownKind) {
		t.Errorf("unknown monitor = %v, want ErrUnknownKind", err)
	}
	if !h.coord.Has("f1") {
		t.Error("entity should be tracked despite a bad monitor")
	}
}

func TestCoordinator_Reconfigure(t *testing.T) {
	h := newHarness(t, 0)
	h.factory.defaults[kindA] = "enriched a"
	h.source.setUser(playing("Splatoon 3", "regular"))

	a := monitor.Config{Kind: kindA, Enabled: true, Locale: "en-US"}
	b := monitor.Config{Kind: kindB, Enabled: true}
	_ = h.coord.Track(accountSpec(a, b))
	waitFor(t, "enriched", descriptorIs(h.coord, "main", "enriched a"))

	t.Run("interval change is applied in place", func(t *testing.T) {
		a2 := a
		a2.Interval = 20 * time.Millisecond
		spec := accountSpec(a2, b)
		spec.Interval = 15 * time.Millisecond
		if err := h.coord.Reconfigure("main", spec); err != nil {
			t.Fatalf("Reconfigure() error = %v", err)
		}
		if n := h.factory.count(kindA); n != 1 {
			t.Errorf("kindA created %d times, want 1", n)
		}
		h.coord.mu.Lock()
		e := h.coord.entities["main"]
		baseInterval, aInterval := e.base.Interval(), e.loops[kindA].Interval()
		h.coord.mu.Unlock()
		if baseInterval != 15*time.Millisecond || aInterval != 20*time.Millisecond {
			t.Errorf("intervals = %v/%v, want 15ms/20ms", baseInterval, aInterval)
		}
	})

	t.Run("material change recreates the monitor", func(t *testing.T) {
		a3 := a
		a3.Locale = "ja-JP"
		if err := h.coord.Reconfigure("main", accountSpec(a3, b)); err != nil {
			t.Fatalf("Reconfigure() error = %v", err)
		}
		if n := h.factory.count(kindA); n != 2 {
			t.Errorf("kindA created %d times, want 2", n)
		}
		waitFor(t, "enriched by new monitor", descriptorIs(h.coord, "main", "enriched a"))
	})

	t.Run("removed monitor is disabled and entity degrades", func(t *testing.T) {
		old := h.factory.latest(kindA)
		if err := h.coord.Reconfigure("main", accountSpec(b)); err != nil {
			t.Fatalf("Reconfigure() error = %v", err)
		}
		if s, _ := h.coord.Snapshot("main"); s.Descriptor == nil || s.Descriptor.Details != "Splatoon 3" {
			t.Errorf("descriptor = %+v, want base immediately", s.Descriptor)
		}
		n := old.updates.Load()
		time.Sleep(30 * time.Millisecond)
		if got := old.updates.Load(); got > n+1 {
			t.Errorf("removed monitor kept running: %d -> %d updates", n, got)
		}
	})

	t.Run("token change recreates the entity", func(t *testing.T) {
		spec := accountSpec(b)
		spec.Token = "rotated"
		if err := h.coord.Reconfigure("main", spec); err != nil {
			t.Fatalf("Reconfigure() error = %v", err)
		}
		h.coord.mu.Lock()
		tok := h.coord.entities["main"].task.spec.Token
		h.coord.mu.Unlock()
		if tok != "rotated" {
			t.Errorf("base task token = %q, want rotated", tok)
		}
	})

	t.Run("errors", func(t *testing.T) {
		if err := h.coord.Reconfigure("ghost", EntitySpec{ID: "ghost", Kind: EntityFriend, Account: "main"}); !errors.Is(err, ErrNotTracked) {
			t.Errorf("unknown entity = %v, want ErrNotTracked", err)
		}
		if err := h.coord.Reconfigure("main", EntitySpec{ID: "other", Kind: EntityAccount, Account: "main"}); !errors.Is(err, ErrInvalidSpec) {
			t.Errorf("mismatched id = %v, want ErrInvalidSpec", err)
		}
	})
}

func TestCoordinator_Apply(t *testing.T) {
	h := newHarness(t, 0)
	friend := func(id string) EntitySpec {
		return EntitySpec{ID: id, Kind: EntityFriend, Account: "main", Token: "tok"}
	}

	if err := h.coord.Apply([]EntitySpec{accountSpec(), friend("f1")}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if ids := h.coord.IDs(); len(ids) != 2 || ids[0] != "f1" || ids[1] != "main" {
		t.Fatalf("IDs() = %v", ids)
	}

	changed := friend("f2")
	changed.Monitors = []monitor.Config{{Kind: kindA, Enabled: true}}
	if err := h.coord.Apply([]EntitySpec{accountSpec(), changed}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if ids := h.coord.IDs(); len(ids) != 2 || ids[0] != "f2" {
		t.Errorf("IDs() = %v, want [f2 main]", ids)
	}
	if n := h.factory.count(kindA); n != 1 {
		t.Errorf("kindA created %d times, want 1", n)
	}

	// Applying the same specs again changes nothing.
	_ = h.coord.Apply([]EntitySpec{accountSpec(), changed})
	if n := h.factory.count(kindA); n != 1 {
		t.Errorf("kindA recreated on identical apply: %d", n)
	}
}

func TestCoordinator_ApplyFollowsMonitorKindFlags(t *testing.T) {
	h := newHarness(t, 0)
	const versus monitor.Kind = "splatoon3.versus"
	h.registry.Register(versus, h.factory.new)
	h.factory.defaults[versus] = "Turf War"
	h.source.setUser(playing("Splatoon 3", "regular"))

	cfg := &config.Config{
		Monitors: config.MonitorsConfig{Splatoon3: config.Splatoon3Config{Enabled: true, Versus: true}},
		Accounts: []config.AccountConfig{{Key: "main", Token: "tok", Track: true, Monitors: []string{string(versus)}}},
	}
	if err := h.coord.Apply(SpecsFromConfig(cfg)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	waitFor(t, "versus enrichment", descriptorIs(h.coord, "main", "Turf War"))

	cfg.Monitors.Splatoon3.Versus = false
	if err := h.coord.Apply(SpecsFromConfig(cfg)); err != nil {
		t.Fatalf("Apply() after disabling versus error = %v", err)
	}
	waitFor(t, "base descriptor", descriptorIs(h.coord, "main", "Splatoon 3"))
}

func TestCoordinator_ExponentialBackoffSelected(t *testing.T) {
	h := newHarness(t, 0)
	h.coord.presence.RetryBackoff = "exponential"
	h.coord.presence.RetryInitialInterval = time.Millisecond

	if _, ok := h.coord.backoff(time.Second).(*loop.Exponential); !ok {
		t.Error("expected exponential backoff")
	}
	h.coord.presence.RetryBackoff = "immediate"
	if _, ok := h.coord.backoff(time.Second).(*loop.Exponential); ok {
		t.Error("expected immediate backoff")
	}
}

func TestCoordinator_CountsAndActiveIDs(t *testing.T) {
	h := newHarness(t, 0)
	h.source.setUser(playing("Splatoon 3", "regular"))
	h.source.friends = []models.Friend{{ID: "f1", Presence: models.Presence{State: models.StateOnline}}}

	_ = h.coord.Track(accountSpec())
	_ = h.coord.Track(EntitySpec{ID: "f1", Kind: EntityFriend, Account: "main", Token: "tok"})
	waitFor(t, "online", descriptorIs(h.coord, "main", "Splatoon 3"))
	waitFor(t, "friend observed", func() bool {
		s, _ := h.coord.Snapshot("f1")
		return s.Presence != nil
	})

	tracked, online := h.coord.Counts()
	if tracked != 2 || online != 2 {
		t.Errorf("Counts() = %d/%d, want 2/2", tracked, online)
	}
	if ids := h.coord.ActiveIDs(); len(ids) != 1 || ids[0] != "main" {
		t.Errorf("ActiveIDs() = %v, want [main]", ids)
	}
	if snaps := h.coord.Snapshots(); len(snaps) != 2 || snaps[0].ID != "f1" || snaps[1].Seq != 1 {
		t.Errorf("Snapshots() = %+v", snaps)
	}
}
