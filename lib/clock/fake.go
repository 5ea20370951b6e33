// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually-advanced Clock for tests. All waiters (After,
// Sleep, timers) are released when Advance moves the fake time past
// their deadline. The zero value is not usable; call NewFake.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	ch       chan time.Time
	stopped  bool
}

// NewFake returns a Fake clock starting at the given time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the fake time forward by d and fires every waiter whose
// deadline has been reached.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now

	var due []*fakeWaiter
	remaining := f.waiters[:0]
	for _, w := range f.waiters {
		if !w.stopped && !w.deadline.After(now) {
			due = append(due, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	f.waiters = remaining
	f.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, w := range due {
		w.ch <- now
	}
}

// After returns a channel that fires when the fake time advances past
// the deadline.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	return f.addWaiter(d).ch
}

// Sleep blocks until the fake time advances past the deadline. It must
// be paired with a concurrent Advance or the test deadlocks.
func (f *Fake) Sleep(d time.Duration) {
	<-f.After(d)
}

// NewTimer returns a Timer that fires when the fake time advances past
// the deadline.
func (f *Fake) NewTimer(d time.Duration) Timer {
	return &fakeTimer{clock: f, waiter: f.addWaiter(d)}
}

// Waiters reports how many waiters are currently blocked on the clock.
// Tests use it to wait for the code under test to reach its sleep
// before advancing.
func (f *Fake) Waiters() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, w := range f.waiters {
		if !w.stopped {
			count++
		}
	}
	return count
}

func (f *Fake) addWaiter(d time.Duration) *fakeWaiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWaiter{
		deadline: f.now.Add(d),
		// Buffered so Advance never blocks on a waiter nobody reads.
		ch: make(chan time.Time, 1),
	}
	f.waiters = append(f.waiters, w)
	return w
}

type fakeTimer struct {
	clock  *Fake
	waiter *fakeWaiter
}

func (t *fakeTimer) C() <-chan time.Time { return t.waiter.ch }

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.waiter.stopped {
		return false
	}
	t.waiter.stopped = true
	return true
}

var _ Clock = (*Fake)(nil)
