// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

/*
Package loop provides the supervised polling primitive every tracked entity and
monitor runs on.

A Loop repeatedly invokes a Task's Update method, sleeping for its interval
between successful cycles. Failures are handed to a Policy that either retries
(re-running without waiting for the interval) or stops the loop for good.

# Lifecycle

	Pending --Start--> Running --policy Stop / Disable--> Disabled
	   any state --Stop--> Stopped (final)

A Disabled or Stopped loop never runs another cycle. Calling Start on it again
returns ErrDisabled or ErrStopped, so a fresh instance is required. When the
context passed to Start is canceled the loop returns to Pending and may be
started again, which is how the supervisor restarts it.

# Usage

	l := loop.New(task, loop.Options{
	    Name:     "friend:abc",
	    Kind:     "friend",
	    Interval: 30 * time.Second,
	    Policy:   upstream.NewBasePolicy(5),
	    Logger:   logger,
	    OnStop:   func(err error) { notify(err) },
	})
	token := tree.AddPresenceService(l)

Disable and Stop take effect at the next suspension point: the end of the
current Update call or the interval sleep. They never cancel an in-flight
Update.

# Retry Backoff

By default a Retry verdict re-runs the task immediately. Options.Backoff can
install an escalating delay (see NewExponential); the delay is always capped at
the loop interval.
*/
package loop
