// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/presencewatch/internal/metrics"
)

var (
	// ErrDisabled is returned by Start on a loop that has been disabled.
	ErrDisabled = errors.New("loop is disabled")
	// ErrStopped is returned by Start on a loop that has been stopped.
	ErrStopped = errors.New("loop is stopped")
	// ErrRunning is returned by Start on a loop that is already running.
	ErrRunning = errors.New("loop is already running")
)

// errHalted signals that Disable or Stop interrupted a sleep.
var errHalted = errors.New("loop halted")

// State is the lifecycle state of a Loop.
type State int32

const (
	Pending State = iota
	Running
	Disabled
	Stopped
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Disabled:
		return "disabled"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further cycles can run in this state.
func (s State) Terminal() bool {
	return s == Disabled || s == Stopped
}

// Task is the body of a loop.
type Task interface {
	// Init runs once before the first Update. A failure is classified by the
	// loop's policy like any other.
	Init(ctx context.Context) error
	// Update runs one cycle. It must not block indefinitely.
	Update(ctx context.Context) error
}

// Func adapts an update function to Task with a no-op Init.
type Func func(ctx context.Context) error

// Init implements Task.
func (f Func) Init(context.Context) error { return nil }

// Update implements Task.
func (f Func) Update(ctx context.Context) error { return f(ctx) }

// Reconfigurable is implemented by tasks that accept configuration changes
// without a restart.
type Reconfigurable interface {
	// Reconfigure applies cfg in place and returns true when cfg is
	// equivalent to the current configuration. It returns false, without
	// applying anything, when the loop must be recreated.
	Reconfigure(cfg any) bool
}

// Waker is implemented by tasks whose data changes at known instants. After
// a successful cycle the loop sleeps until the earlier of its interval and
// the time NextWake returns.
type Waker interface {
	NextWake(now time.Time) (time.Time, bool)
}

// Options configures a Loop.
type Options struct {
	// Name identifies the loop in logs and in the supervisor tree.
	Name string
	// Kind is the metrics label, e.g. "account" or "splatoon3.versus".
	Kind string
	// Interval is the sleep between successful cycles.
	Interval time.Duration
	// Policy classifies failed cycles. Defaults to AlwaysRetry.
	Policy Policy
	// Backoff delays retried cycles. Defaults to Immediate.
	Backoff Backoff
	Logger  zerolog.Logger
	// OnStop is called once when the policy stops the loop.
	OnStop func(err error)
	// OnCycle is called after every successful cycle.
	OnCycle func()
}

// Loop runs a Task repeatedly until it is disabled or stopped.
type Loop struct {
	name    string
	kind    string
	task    Task
	policy  Policy
	backoff Backoff
	logger  zerolog.Logger
	onStop  func(error)
	onCycle func()

	mu          sync.Mutex
	state       State
	interval    time.Duration
	lastRun     time.Time
	initialized bool
	stopErr     error

	// runMu serializes Init/Update with UpdateConfig.
	runMu sync.Mutex

	skip     chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	report   sync.Once
}

// New creates a loop in the Pending state.
func New(task Task, opts Options) *Loop {
	if opts.Policy == nil {
		opts.Policy = AlwaysRetry
	}
	if opts.Backoff == nil {
		opts.Backoff = Immediate()
	}
	if opts.Kind == "" {
		opts.Kind = "loop"
	}
	if opts.Name == "" {
		opts.Name = opts.Kind
	}

	l := &Loop{
		name:     opts.Name,
		kind:     opts.Kind,
		task:     task,
		policy:   opts.Policy,
		backoff:  opts.Backoff,
		logger:   opts.Logger.With().Str("loop", opts.Name).Logger(),
		onStop:   opts.OnStop,
		onCycle:  opts.OnCycle,
		interval: opts.Interval,
		skip:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
	metrics.RecordLoopTransition(l.kind, "", Pending.String())
	return l
}

// String returns the loop name. suture uses it as the service name.
func (l *Loop) String() string {
	return l.name
}

// Task returns the task driven by this loop.
func (l *Loop) Task() Task {
	return l.task
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Interval returns the current sleep between successful cycles.
func (l *Loop) Interval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interval
}

// SetInterval changes the interval. It takes effect from the next sleep.
func (l *Loop) SetInterval(d time.Duration) {
	l.mu.Lock()
	l.interval = d
	l.mu.Unlock()
}

// LastRun returns when Update last returned, or the zero time.
func (l *Loop) LastRun() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastRun
}

// Err returns the error that made the policy stop the loop, if any.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopErr
}

// SkipIntervalInCurrentLoop makes the loop skip its next interval sleep
// exactly once. Calling it repeatedly before the skip is consumed has no
// further effect. A loop that is sleeping wakes immediately.
func (l *Loop) SkipIntervalInCurrentLoop() {
	select {
	case l.skip <- struct{}{}:
	default:
	}
}

// Disable prevents further cycles. The loop remains inspectable. Disabling a
// stopped loop has no effect.
func (l *Loop) Disable() {
	l.mu.Lock()
	if l.state.Terminal() {
		l.mu.Unlock()
		return
	}
	l.setStateLocked(Disabled)
	l.mu.Unlock()
	l.halt()
}

// Stop moves the loop to the final Stopped state from any state.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.state == Stopped {
		l.mu.Unlock()
		return
	}
	l.setStateLocked(Stopped)
	l.mu.Unlock()
	l.halt()
}

// UpdateConfig delivers a configuration change to a Reconfigurable task. It
// waits for an in-flight cycle to finish. It returns false when the task
// cannot apply cfg in place and the caller must recreate the loop.
func (l *Loop) UpdateConfig(cfg any) bool {
	r, ok := l.task.(Reconfigurable)
	if !ok {
		return false
	}
	l.runMu.Lock()
	defer l.runMu.Unlock()
	return r.Reconfigure(cfg)
}

// Start runs the loop until it is disabled, stopped or ctx is canceled.
//
// It returns ErrDisabled, ErrStopped or ErrRunning without running anything
// when the loop is not Pending. When ctx is canceled the loop returns to
// Pending and ctx.Err() is returned. When the policy stops the loop the
// classified error is returned wrapped with ErrDisabled.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	switch l.state {
	case Disabled:
		l.mu.Unlock()
		return ErrDisabled
	case Stopped:
		l.mu.Unlock()
		return ErrStopped
	case Running:
		l.mu.Unlock()
		return ErrRunning
	}
	l.setStateLocked(Running)
	interval := l.interval
	l.mu.Unlock()

	l.logger.Debug().Dur("interval", interval).Msg("Loop started")
	return l.run(ctx)
}

// Serve implements suture.Service. Once the loop is disabled or stopped it
// returns suture.ErrDoNotRestart so the supervisor lets it go.
func (l *Loop) Serve(ctx context.Context) error {
	err := l.Start(ctx)
	if l.State().Terminal() {
		return suture.ErrDoNotRestart
	}
	return err
}

func (l *Loop) run(ctx context.Context) error {
	failures := 0
	for {
		if l.halted() {
			return nil
		}

		start := time.Now()
		err := l.cycle(ctx)
		duration := time.Since(start)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return l.suspend(ctxErr)
		}
		if l.halted() {
			return nil
		}

		if err == nil {
			failures = 0
			l.backoff.Reset()
			if r, ok := l.policy.(Resetter); ok {
				r.Reset()
			}
			metrics.RecordLoopCycle(l.kind, "success", duration)

			if l.onCycle != nil {
				l.onCycle()
			}
			if err := l.sleep(ctx, l.nextSleep(), true); err != nil {
				if errors.Is(err, errHalted) {
					return nil
				}
				return l.suspend(err)
			}
			continue
		}

		verdict := l.policy.Classify(err)
		metrics.RecordLoopCycle(l.kind, verdict.String(), duration)

		if verdict == Stop {
			l.fail(err)
			return fmt.Errorf("%w: %w", ErrDisabled, err)
		}

		failures++
		delay := l.backoff.Next(failures)
		if interval := l.Interval(); delay > interval {
			delay = interval
		}
		l.logger.Warn().Err(err).Int("failures", failures).Dur("delay", delay).Msg("Loop cycle failed, retrying")

		// A retry already skips the interval, so a pending skip is spent here.
		select {
		case <-l.skip:
		default:
		}
		if delay > 0 {
			if err := l.sleep(ctx, delay, false); err != nil {
				if errors.Is(err, errHalted) {
					return nil
				}
				return l.suspend(err)
			}
		}
	}
}

// cycle runs Init once and then Update, serialized against UpdateConfig.
func (l *Loop) cycle(ctx context.Context) error {
	l.runMu.Lock()
	defer l.runMu.Unlock()

	l.mu.Lock()
	initialized := l.initialized
	l.mu.Unlock()

	if !initialized {
		if err := l.task.Init(ctx); err != nil {
			return fmt.Errorf("init: %w", err)
		}
		l.mu.Lock()
		l.initialized = true
		l.mu.Unlock()

		if l.halted() {
			return nil
		}
	}

	err := l.task.Update(ctx)

	l.mu.Lock()
	l.lastRun = time.Now()
	l.mu.Unlock()
	return err
}

// sleep waits for d. A pending skip request ends the wait early when
// skippable is set.
// nextSleep returns the sleep after a successful cycle.
func (l *Loop) nextSleep() time.Duration {
	d := l.Interval()
	w, ok := l.task.(Waker)
	if !ok {
		return d
	}
	at, ok := w.NextWake(time.Now())
	if !ok {
		return d
	}
	if until := time.Until(at); until < d {
		return max(until, 0)
	}
	return d
}

func (l *Loop) sleep(ctx context.Context, d time.Duration, skippable bool) error {
	skip := l.skip
	if !skippable {
		skip = nil
	} else {
		select {
		case <-skip:
			return nil
		default:
		}
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopCh:
		return errHalted
	case <-skip:
		return nil
	case <-timer.C:
		return nil
	}
}

// fail disables the loop on a Stop verdict and reports err once.
func (l *Loop) fail(err error) {
	l.mu.Lock()
	if l.state.Terminal() {
		l.mu.Unlock()
		return
	}
	l.setStateLocked(Disabled)
	l.stopErr = err
	l.mu.Unlock()
	l.halt()

	l.logger.Error().Err(err).Msg("Loop stopped by error policy")
	l.report.Do(func() {
		if l.onStop != nil {
			l.onStop(err)
		}
	})
}

// suspend returns a running loop to Pending after its context ended.
func (l *Loop) suspend(err error) error {
	l.mu.Lock()
	if l.state == Running {
		l.setStateLocked(Pending)
	}
	l.mu.Unlock()
	return err
}

func (l *Loop) halt() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *Loop) halted() bool {
	select {
	case <-l.stopCh:
		return true
	default:
		return false
	}
}

// setStateLocked updates the state and the per-state gauges. Stopped loops
// leave the gauges entirely. Caller must hold l.mu.
func (l *Loop) setStateLocked(s State) {
	from, to := l.state.String(), s.String()
	if s == Stopped {
		to = ""
	}
	l.state = s
	metrics.RecordLoopTransition(l.kind, from, to)
}
