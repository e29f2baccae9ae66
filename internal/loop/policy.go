// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package loop

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Verdict is the outcome of classifying a failed cycle.
type Verdict int

const (
	// Retry re-runs the task without waiting for the interval.
	Retry Verdict = iota
	// Stop disables the loop and reports the error once.
	Stop
)

// String returns the verdict name used in logs and metrics.
func (v Verdict) String() string {
	switch v {
	case Retry:
		return "retry"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// Policy decides what a loop does with a failed cycle. Policies are supplied
// by the owner of the loop so that different loops can react differently to
// the same error.
type Policy interface {
	Classify(err error) Verdict
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(err error) Verdict

// Classify calls f(err).
func (f PolicyFunc) Classify(err error) Verdict {
	return f(err)
}

// Resetter is implemented by stateful policies that count consecutive
// failures. Reset is called after every successful cycle.
type Resetter interface {
	Reset()
}

// AlwaysRetry is the policy used when Options.Policy is nil.
var AlwaysRetry Policy = PolicyFunc(func(error) Verdict { return Retry })

// Backoff computes the delay before a retried cycle.
type Backoff interface {
	// Next returns the delay after the given number of consecutive failures
	// (starting at 1).
	Next(failures int) time.Duration
	// Reset is called after a successful cycle.
	Reset()
}

type immediate struct{}

func (immediate) Next(int) time.Duration { return 0 }
func (immediate) Reset()                 {}

// Immediate returns the default backoff: every retry runs at once.
func Immediate() Backoff {
	return immediate{}
}

// Exponential retries immediately for the first Threshold consecutive
// failures and then escalates through an exponential backoff.
type Exponential struct {
	threshold int
	b         *backoff.ExponentialBackOff
}

// NewExponential creates an escalating backoff. A threshold of 0 escalates
// from the first failure.
func NewExponential(threshold int, initial, maxInterval time.Duration) *Exponential {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return &Exponential{threshold: threshold, b: b}
}

// Next implements Backoff.
func (e *Exponential) Next(failures int) time.Duration {
	if failures <= e.threshold {
		return 0
	}
	d := e.b.NextBackOff()
	if d == backoff.Stop {
		return e.b.MaxInterval
	}
	return d
}

// Reset implements Backoff.
func (e *Exponential) Reset() {
	e.b.Reset()
}
