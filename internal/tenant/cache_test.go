// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package tenant

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/tomtom215/presencewatch/internal/metrics"
)

var userKey = Key{Account: "main", Resource: ResourceUser}

func newTestCache() *Cache {
	return New(time.Minute, 5*time.Second, zerolog.Nop())
}

func TestCache_ServesFreshEntry(t *testing.T) {
	c := newTestCache()
	var calls atomic.Int32
	fetch := func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "alice", nil
	}

	hitsBefore := testutil.ToFloat64(metrics.TenantCacheHits.WithLabelValues(string(ResourceUser)))

	v, res, err := Get(context.Background(), c, userKey, fetch)
	if err != nil || v != "alice" || res.Cached {
		t.Fatalf("first Get = %q, %+v, %v", v, res, err)
	}
	v, res, err = Get(context.Background(), c, userKey, fetch)
	if err != nil || v != "alice" || !res.Cached {
		t.Fatalf("second Get = %q, %+v, %v", v, res, err)
	}
	if calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", calls.Load())
	}
	if got := testutil.ToFloat64(metrics.TenantCacheHits.WithLabelValues(string(ResourceUser))) - hitsBefore; got != 1 {
		t.Errorf("hit counter delta = %v, want 1", got)
	}
}

func TestCache_RefetchesAfterMinAge(t *testing.T) {
	c := newTestCache()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	var calls atomic.Int32
	fetch := func(ctx context.Context) (int32, error) {
		return calls.Add(1), nil
	}

	if v, _, _ := Get(context.Background(), c, userKey, fetch); v != 1 {
		t.Fatalf("first value = %d", v)
	}
	now = now.Add(59 * time.Second)
	if v, _, _ := Get(context.Background(), c, userKey, fetch); v != 1 {
		t.Errorf("value before min age = %d, want cached 1", v)
	}
	now = now.Add(time.Second)
	if v, _, _ := Get(context.Background(), c, userKey, fetch); v != 2 {
		t.Errorf("value at min age = %d, want refetched 2", v)
	}
}

func TestCache_CoalescesConcurrentCallers(t *testing.T) {
	c := newTestCache()
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	const callers = 20
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _, errs[0] = Get(context.Background(), c, userKey, fetch)
	}()
	waitFor(t, func() bool { return calls.Load() == 1 })

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = Get(context.Background(), c, userKey, fetch)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want exactly 1", calls.Load())
	}
	for i := range results {
		if errs[i] != nil || results[i] != "shared" {
			t.Errorf("caller %d got %q, %v", i, results[i], errs[i])
		}
	}
}

func TestCache_SharesFailureAndDoesNotCacheIt(t *testing.T) {
	c := newTestCache()
	boom := errors.New("upstream down")
	var calls atomic.Int32
	release := make(chan struct{})

	failing := func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "", boom
	}

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = Get(context.Background(), c, userKey, failing)
		}(i)
	}
	waitFor(t, func() bool { return calls.Load() == 1 })
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, boom) {
			t.Errorf("caller %d error = %v, want %v", i, err, boom)
		}
	}

	v, res, err := Get(context.Background(), c, userKey, func(ctx context.Context) (string, error) {
		return "recovered", nil
	})
	if err != nil || v != "recovered" || res.Cached {
		t.Errorf("Get after failure = %q, %+v, %v; want a fresh fetch", v, res, err)
	}
}

func TestCache_WaiterCancelDoesNotCancelFetch(t *testing.T) {
	c := newTestCache()
	started := make(chan struct{})
	release := make(chan struct{})
	var fetchErr atomic.Value

	fetch := func(ctx context.Context) (string, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			fetchErr.Store(err)
			return "", err
		}
		return "done", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := Get(ctx, c, userKey, fetch)
		firstErr <- err
	}()
	<-started

	secondVal := make(chan string, 1)
	go func() {
		v, _, _ := Get(context.Background(), c, userKey, fetch)
		secondVal <- v
	}()

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("canceled caller error = %v, want context.Canceled", err)
	}

	close(release)
	if v := <-secondVal; v != "done" {
		t.Errorf("second caller value = %q, want done", v)
	}
	if err := fetchErr.Load(); err != nil {
		t.Errorf("shared fetch saw %v", err)
	}
}

func TestCache_InvalidateDropsAccount(t *testing.T) {
	c := newTestCache()
	var calls atomic.Int32
	fetch := func(ctx context.Context) (int32, error) { return calls.Add(1), nil }

	friendsKey := Key{Account: "main", Resource: ResourceFriends}
	otherKey := Key{Account: "alt", Resource: ResourceUser}
	_, _, _ = Get(context.Background(), c, userKey, fetch)
	_, _, _ = Get(context.Background(), c, friendsKey, fetch)
	_, _, _ = Get(context.Background(), c, otherKey, fetch)

	if got := c.Stats().Entries; got != 3 {
		t.Fatalf("Entries = %d, want 3", got)
	}

	c.Invalidate("main")

	if got := c.Stats().Entries; got != 1 {
		t.Errorf("Entries after invalidate = %d, want 1", got)
	}
	if _, _, ok := c.Peek(otherKey); !ok {
		t.Error("other account should stay cached")
	}
	if _, res, _ := Get(context.Background(), c, userKey, fetch); res.Cached {
		t.Error("invalidated key should be refetched")
	}
}

func TestCache_InvalidateDuringFetchIsNotStored(t *testing.T) {
	c := newTestCache()
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = Get(context.Background(), c, userKey, func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "stale", nil
		})
	}()
	<-started
	c.Invalidate("main")
	close(release)
	<-done

	if _, _, ok := c.Peek(userKey); ok {
		t.Error("a fetch that started before Invalidate should not repopulate the cache")
	}
}

func TestGet_TypeMismatch(t *testing.T) {
	c := newTestCache()
	_, _, _ = Get(context.Background(), c, userKey, func(ctx context.Context) (string, error) {
		return "text", nil
	})

	_, _, err := Get(context.Background(), c, userKey, func(ctx context.Context) (int, error) {
		return 1, nil
	})
	if err == nil {
		t.Error("Get with a mismatched type should fail")
	}
}

func TestParseResource(t *testing.T) {
	for _, name := range []string{"user", "friends", "schedules"} {
		if r, err := ParseResource(name); err != nil || string(r) != name {
			t.Errorf("ParseResource(%q) = %q, %v", name, r, err)
		}
	}
	if _, err := ParseResource("games"); !errors.Is(err, ErrUnknownResource) {
		t.Errorf("ParseResource(games) error = %v, want ErrUnknownResource", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}
