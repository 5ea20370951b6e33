// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability. Production code takes a
// Clock and passes clock.Real(); tests pass a Fake and advance it
// deterministically, so retry backoff and sync-loop timing can be
// tested without sleeping.
package clock

import "time"

// Clock provides the subset of package time used by the bridge.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that delivers the current time after d.
	After(d time.Duration) <-chan time.Time

	// Sleep blocks for d.
	Sleep(d time.Duration)

	// NewTimer returns a timer that fires after d.
	NewTimer(d time.Duration) Timer
}

// Timer mirrors time.Timer behind an interface so fakes can control
// when it fires.
type Timer interface {
	// C returns the channel the timer delivers on.
	C() <-chan time.Time

	// Stop prevents the timer from firing. Reports whether the call
	// stopped the timer before it fired.
	Stop() bool
}

// Real returns a Clock backed by the system clock.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (realClock) Sleep(d time.Duration)                  { time.Sleep(d) }

func (realClock) NewTimer(d time.Duration) Timer {
	return realTimer{timer: time.NewTimer(d)}
}

type realTimer struct {
	timer *time.Timer
}

func (t realTimer) C() <-chan time.Time { return t.timer.C }
func (t realTimer) Stop() bool          { return t.timer.Stop() }
