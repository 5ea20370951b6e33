// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestFakeAdvanceFiresDueWaiters(t *testing.T) {
	fake := NewFake(time.Unix(1000, 0))

	short := fake.After(time.Second)
	long := fake.After(time.Minute)

	fake.Advance(2 * time.Second)

	select {
	case <-short:
	default:
		t.Fatal("1s waiter did not fire after advancing 2s")
	}
	select {
	case <-long:
		t.Fatal("1m waiter fired after advancing only 2s")
	default:
	}

	fake.Advance(time.Minute)
	select {
	case <-long:
	default:
		t.Fatal("1m waiter did not fire after advancing past its deadline")
	}
}

func TestFakeTimerStop(t *testing.T) {
	fake := NewFake(time.Unix(1000, 0))
	timer := fake.NewTimer(time.Second)

	if !timer.Stop() {
		t.Fatal("Stop() = false on a pending timer")
	}
	if timer.Stop() {
		t.Fatal("second Stop() = true")
	}

	fake.Advance(2 * time.Second)
	select {
	case <-timer.C():
		t.Fatal("stopped timer fired")
	default:
	}
}

func TestFakeNow(t *testing.T) {
	start := time.Unix(5000, 0)
	fake := NewFake(start)
	fake.Advance(90 * time.Second)
	if got, want := fake.Now(), start.Add(90*time.Second); !got.Equal(want) {
		t.Errorf("Now() = %v, want %v", got, want)
	}
}
