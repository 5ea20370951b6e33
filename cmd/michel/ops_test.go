// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/oknozor/michel-bot/lib/codec"
	"github.com/oknozor/michel-bot/lib/issuestore"
	"github.com/oknozor/michel-bot/lib/ref"
	"github.com/oknozor/michel-bot/lib/service"
	"github.com/oknozor/michel-bot/lib/sqlitepool"
)

func newOpsSocket(t *testing.T) string {
	t.Helper()

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:      ":memory:",
		PoolSize:  1,
		OnConnect: issuestore.Schema,
	})
	if err != nil {
		t.Fatalf("opening pool: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	store := issuestore.New(pool)
	ctx := context.Background()
	seed := []issuestore.Record{
		{IssueID: 1, Subject: "No subtitles", RootEventID: ref.MustParseEventID("$a:example.org"), Status: issuestore.StatusOpen},
		{IssueID: 2, Subject: "Wrong audio track", RootEventID: ref.MustParseEventID("$b:example.org"), Status: issuestore.StatusResolved},
	}
	for _, record := range seed {
		if err := store.Create(ctx, record); err != nil {
			t.Fatalf("seeding store: %v", err)
		}
	}

	socketPath := filepath.Join(t.TempDir(), "ops.sock")
	server := service.NewSocketServer(socketPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	registerOpsActions(server, store, time.Now())

	serveCtx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve(serveCtx)
	}()
	t.Cleanup(func() {
		cancel()
		<-serveDone
	})
	return socketPath
}

func opsRequest(t *testing.T, socketPath string, payload any) service.Response {
	t.Helper()

	var conn net.Conn
	var err error
	deadline := time.Now().Add(5 * time.Second)
	for {
		conn, err = net.Dial("unix", socketPath)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("dialing %s: %v", socketPath, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(payload); err != nil {
		t.Fatalf("encoding request: %v", err)
	}
	var response service.Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return response
}

func TestOpsStatus(t *testing.T) {
	socketPath := newOpsSocket(t)

	response := opsRequest(t, socketPath, map[string]string{"action": "status"})
	if !response.OK {
		t.Fatalf("status failed: %s", response.Error)
	}

	var status struct {
		State          string `cbor:"state"`
		TrackedIssues  int    `cbor:"tracked_issues"`
		OpenIssues     int    `cbor:"open_issues"`
		ResolvedIssues int    `cbor:"resolved_issues"`
	}
	if err := codec.Unmarshal(response.Data, &status); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if status.State != "running" {
		t.Errorf("state = %q", status.State)
	}
	if status.TrackedIssues != 2 || status.OpenIssues != 1 || status.ResolvedIssues != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/1/1",
			status.TrackedIssues, status.OpenIssues, status.ResolvedIssues)
	}
}

func TestOpsIssues(t *testing.T) {
	socketPath := newOpsSocket(t)

	response := opsRequest(t, socketPath, map[string]string{"action": "issues"})
	if !response.OK {
		t.Fatalf("issues failed: %s", response.Error)
	}

	var data struct {
		Issues []opsIssue `cbor:"issues"`
	}
	if err := codec.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if len(data.Issues) != 2 {
		t.Fatalf("len(issues) = %d, want 2", len(data.Issues))
	}
	if data.Issues[0].IssueID != 1 || data.Issues[0].Status != "open" {
		t.Errorf("issues[0] = %+v", data.Issues[0])
	}
}

func TestOpsIssueLookup(t *testing.T) {
	socketPath := newOpsSocket(t)

	response := opsRequest(t, socketPath, map[string]any{
		"action":   "issue",
		"issue_id": int64(2),
	})
	if !response.OK {
		t.Fatalf("issue lookup failed: %s", response.Error)
	}

	var found opsIssue
	if err := codec.Unmarshal(response.Data, &found); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if found.Subject != "Wrong audio track" || found.Status != "resolved" {
		t.Errorf("issue = %+v", found)
	}

	response = opsRequest(t, socketPath, map[string]any{
		"action":   "issue",
		"issue_id": int64(99),
	})
	if response.OK {
		t.Fatal("lookup of untracked issue reported OK")
	}
}
