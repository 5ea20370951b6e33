// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oknozor/michel-bot/lib/codec"
	"github.com/oknozor/michel-bot/lib/issuestore"
	"github.com/oknozor/michel-bot/lib/service"
)

// opsIssue is the wire representation of an issue record on the
// operations socket.
type opsIssue struct {
	IssueID         int64  `cbor:"issue_id"`
	Subject         string `cbor:"subject"`
	Status          string `cbor:"status"`
	RootEventID     string `cbor:"root_event_id"`
	ReactionApplied bool   `cbor:"reaction_applied"`
}

func opsIssueFromRecord(record *issuestore.Record) opsIssue {
	return opsIssue{
		IssueID:         record.IssueID,
		Subject:         record.Subject,
		Status:          string(record.Status),
		RootEventID:     record.RootEventID.String(),
		ReactionApplied: record.ReactionApplied(),
	}
}

// registerOpsActions wires the operations socket actions:
//
//	status — bridge state and issue counts
//	issues — all tracked issues
//	issue  — one issue by ID
func registerOpsActions(server *service.SocketServer, store *issuestore.Store, startedAt time.Time) {
	server.Handle("status", func(ctx context.Context, raw []byte) (any, error) {
		records, err := store.All(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing issues: %w", err)
		}

		open := 0
		for _, record := range records {
			if record.Status == issuestore.StatusOpen {
				open++
			}
		}

		return struct {
			State          string `cbor:"state"`
			UptimeSeconds  int64  `cbor:"uptime_seconds"`
			TrackedIssues  int    `cbor:"tracked_issues"`
			OpenIssues     int    `cbor:"open_issues"`
			ResolvedIssues int    `cbor:"resolved_issues"`
		}{
			State:          "running",
			UptimeSeconds:  int64(time.Since(startedAt).Seconds()),
			TrackedIssues:  len(records),
			OpenIssues:     open,
			ResolvedIssues: len(records) - open,
		}, nil
	})

	server.Handle("issues", func(ctx context.Context, raw []byte) (any, error) {
		records, err := store.All(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing issues: %w", err)
		}

		issues := make([]opsIssue, len(records))
		for i := range records {
			issues[i] = opsIssueFromRecord(&records[i])
		}
		return struct {
			Issues []opsIssue `cbor:"issues"`
		}{Issues: issues}, nil
	})

	server.Handle("issue", func(ctx context.Context, raw []byte) (any, error) {
		var request struct {
			IssueID int64 `cbor:"issue_id"`
		}
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, fmt.Errorf("decoding request: %w", err)
		}
		if request.IssueID == 0 {
			return nil, errors.New("missing required field: issue_id")
		}

		record, err := store.Get(ctx, request.IssueID)
		if errors.Is(err, issuestore.ErrNotFound) {
			return nil, fmt.Errorf("issue %d not tracked", request.IssueID)
		}
		if err != nil {
			return nil, err
		}
		return opsIssueFromRecord(record), nil
	})
}
