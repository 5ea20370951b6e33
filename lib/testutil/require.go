// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides helpers shared by tests across the module.
package testutil

import (
	"testing"
	"time"
)

// waitTimeout bounds every channel wait so a broken test fails with a
// useful message instead of hanging until the go test deadline.
const waitTimeout = 5 * time.Second

// RequireReceive waits for a value on ch and returns it, failing the
// test if nothing arrives within the timeout.
func RequireReceive[T any](t *testing.T, ch <-chan T, description string) T {
	t.Helper()
	select {
	case value := <-ch:
		return value
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting to receive %s", description)
		panic("unreachable")
	}
}

// RequireSend sends value on ch, failing the test if the send does not
// complete within the timeout.
func RequireSend[T any](t *testing.T, ch chan<- T, value T, description string) {
	t.Helper()
	select {
	case ch <- value:
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting to send %s", description)
	}
}

// RequireClosed waits for ch to be closed, failing the test if it still
// delivers a value or stays open past the timeout.
func RequireClosed[T any](t *testing.T, ch <-chan T, description string) {
	t.Helper()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected %s to be closed, but received a value", description)
		}
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s to close", description)
	}
}
