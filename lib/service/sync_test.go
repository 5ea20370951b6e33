// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/oknozor/michel-bot/lib/clock"
	"github.com/oknozor/michel-bot/lib/ref"
	"github.com/oknozor/michel-bot/lib/testutil"
	"github.com/oknozor/michel-bot/messaging"
)

// syncResult is one scripted outcome for fakeSyncSession.Sync.
type syncResult struct {
	response *messaging.SyncResponse
	err      error
}

// fakeSyncSession scripts /sync outcomes and records the options each
// call received. Once the script is exhausted, Sync blocks until the
// context is cancelled.
type fakeSyncSession struct {
	script     chan syncResult
	options    chan messaging.SyncOptions
	idleCloses chan struct{}
	userID     ref.UserID
}

func newFakeSyncSession() *fakeSyncSession {
	return &fakeSyncSession{
		script:     make(chan syncResult, 16),
		options:    make(chan messaging.SyncOptions, 16),
		idleCloses: make(chan struct{}, 16),
		userID:     ref.MustParseUserID("@michel:example.org"),
	}
}

func (f *fakeSyncSession) Sync(ctx context.Context, options messaging.SyncOptions) (*messaging.SyncResponse, error) {
	f.options <- options
	select {
	case result := <-f.script:
		return result.response, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeSyncSession) CloseIdleConnections() {
	f.idleCloses <- struct{}{}
}

func (f *fakeSyncSession) UserID() ref.UserID { return f.userID }

func (f *fakeSyncSession) WhoAmI(ctx context.Context) (ref.UserID, error) {
	return f.userID, nil
}

func (f *fakeSyncSession) ResolveAlias(ctx context.Context, alias ref.RoomAlias) (ref.RoomID, error) {
	return ref.RoomID{}, errors.New("not implemented")
}

func (f *fakeSyncSession) JoinRoom(ctx context.Context, roomID ref.RoomID) (ref.RoomID, error) {
	return roomID, nil
}

func (f *fakeSyncSession) SendMessage(ctx context.Context, roomID ref.RoomID, content messaging.MessageContent) (ref.EventID, error) {
	return ref.EventID{}, errors.New("not implemented")
}

func (f *fakeSyncSession) SendReaction(ctx context.Context, roomID ref.RoomID, targetEventID ref.EventID, key string) (ref.EventID, error) {
	return ref.EventID{}, errors.New("not implemented")
}

func (f *fakeSyncSession) RedactEvent(ctx context.Context, roomID ref.RoomID, eventID ref.EventID, reason string) (ref.EventID, error) {
	return ref.EventID{}, errors.New("not implemented")
}

func (f *fakeSyncSession) Close() error { return nil }

var _ messaging.Session = (*fakeSyncSession)(nil)

func TestInitialSyncReturnsToken(t *testing.T) {
	session := newFakeSyncSession()
	session.script <- syncResult{response: &messaging.SyncResponse{NextBatch: "s100"}}

	token, response, err := InitialSync(context.Background(), session, `{"room":{}}`)
	if err != nil {
		t.Fatalf("InitialSync: %v", err)
	}
	if token != "s100" {
		t.Errorf("token = %q, want s100", token)
	}
	if response.NextBatch != "s100" {
		t.Errorf("response.NextBatch = %q", response.NextBatch)
	}

	options := testutil.RequireReceive(t, session.options, "sync options")
	if options.Since != "" {
		t.Errorf("initial sync sent since token %q", options.Since)
	}
	if options.Filter != `{"room":{}}` {
		t.Errorf("Filter = %q", options.Filter)
	}
}

func TestRunSyncLoopAdvancesToken(t *testing.T) {
	session := newFakeSyncSession()
	session.script <- syncResult{response: &messaging.SyncResponse{NextBatch: "s2"}}
	session.script <- syncResult{response: &messaging.SyncResponse{NextBatch: "s3"}}

	handled := make(chan string, 16)
	handler := func(ctx context.Context, response *messaging.SyncResponse) {
		handled <- response.NextBatch
	}

	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		RunSyncLoop(ctx, session, SyncConfig{}, "s1", handler, clock.Real(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	first := testutil.RequireReceive(t, session.options, "first poll options")
	if first.Since != "s1" {
		t.Errorf("first Since = %q, want s1", first.Since)
	}
	if !first.SetTimeout || first.Timeout != 30000 {
		t.Errorf("first Timeout = %d (set %v), want 30000", first.Timeout, first.SetTimeout)
	}

	if got := testutil.RequireReceive(t, handled, "first handler call"); got != "s2" {
		t.Errorf("handler saw batch %q, want s2", got)
	}

	second := testutil.RequireReceive(t, session.options, "second poll options")
	if second.Since != "s2" {
		t.Errorf("second Since = %q, want s2", second.Since)
	}

	if got := testutil.RequireReceive(t, handled, "second handler call"); got != "s3" {
		t.Errorf("handler saw batch %q, want s3", got)
	}

	cancel()
	testutil.RequireClosed(t, loopDone, "sync loop exit")
}

func TestRunSyncLoopBacksOffOnError(t *testing.T) {
	session := newFakeSyncSession()
	session.script <- syncResult{err: errors.New("connection reset")}
	session.script <- syncResult{err: errors.New("connection reset")}
	session.script <- syncResult{response: &messaging.SyncResponse{NextBatch: "s2"}}

	fakeClock := clock.NewFake(time.Unix(1700000000, 0))

	handled := make(chan string, 16)
	handler := func(ctx context.Context, response *messaging.SyncResponse) {
		handled <- response.NextBatch
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		RunSyncLoop(ctx, session, SyncConfig{}, "s1", handler, fakeClock, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	// First failure: idle connections dropped, then a 1s backoff wait.
	testutil.RequireReceive(t, session.options, "first poll")
	testutil.RequireReceive(t, session.idleCloses, "idle close after first failure")
	waitForWaiter(t, fakeClock)
	fakeClock.Advance(time.Second)

	// Second failure: backoff doubles to 2s.
	testutil.RequireReceive(t, session.options, "second poll")
	testutil.RequireReceive(t, session.idleCloses, "idle close after second failure")
	waitForWaiter(t, fakeClock)
	fakeClock.Advance(2 * time.Second)

	// Third attempt succeeds and the handler runs.
	testutil.RequireReceive(t, session.options, "third poll")
	if got := testutil.RequireReceive(t, handled, "handler call"); got != "s2" {
		t.Errorf("handler saw batch %q, want s2", got)
	}

	cancel()
	testutil.RequireClosed(t, loopDone, "sync loop exit")
}

// waitForWaiter polls until the sync loop is blocked on the fake
// clock's backoff timer.
func waitForWaiter(t *testing.T, fakeClock *clock.Fake) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for fakeClock.Waiters() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("sync loop never blocked on backoff timer")
		}
		time.Sleep(time.Millisecond)
	}
}
