// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

// Package issuestore persists the chat projection state of each Seerr
// issue: which Matrix message roots its thread, whether it is open or
// resolved, and the event ID of the resolved-marker reaction (needed to
// redact it on reopen). One row per issue; rows are never deleted.
package issuestore

import (
	"context"
	"errors"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/oknozor/michel-bot/lib/ref"
	"github.com/oknozor/michel-bot/lib/sqlitepool"
)

// ErrNotFound is returned when no record exists for the requested issue
// ID or thread root.
var ErrNotFound = errors.New("issuestore: record not found")

// Status is the persisted lifecycle state of an issue. Unknown issues
// are represented by the absence of a record, not a status value.
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
)

// Record is the projection state of one Seerr issue.
type Record struct {
	// IssueID is the Seerr issue identifier. Immutable once created.
	IssueID int64

	// Subject is the issue's display text. Updated on lifecycle events
	// that carry a newer subject.
	Subject string

	// RootEventID is the Matrix event ID of the message that roots this
	// issue's thread. Set exactly once at creation, immutable.
	RootEventID ref.EventID

	// Status is open or resolved.
	Status Status

	// ReactionEventID is the event ID of the resolved-marker reaction
	// currently attached to RootEventID, or the zero value when no
	// reaction is applied. Needed to redact the reaction on reopen.
	ReactionEventID ref.EventID
}

// ReactionApplied reports whether the resolved marker is currently
// attached to the root message.
func (r *Record) ReactionApplied() bool {
	return !r.ReactionEventID.IsZero()
}

// Schema creates the issues table if it does not exist. Pass as the
// pool's OnConnect so every connection sees the schema.
func Schema(conn *sqlite.Conn) error {
	const createTable = `
		CREATE TABLE IF NOT EXISTS issues (
			issue_id          INTEGER PRIMARY KEY,
			subject           TEXT NOT NULL,
			root_event_id     TEXT NOT NULL UNIQUE,
			status            TEXT NOT NULL CHECK (status IN ('open', 'resolved')),
			reaction_event_id TEXT
		) STRICT`
	if err := sqlitex.ExecuteTransient(conn, createTable, nil); err != nil {
		return fmt.Errorf("issuestore: creating schema: %w", err)
	}
	return nil
}

// Store persists issue records in SQLite. Safe for concurrent use; each
// method borrows a pooled connection for its duration.
type Store struct {
	pool *sqlitepool.Pool
}

// New creates a Store backed by the given pool. The pool's OnConnect
// must include Schema.
func New(pool *sqlitepool.Pool) *Store {
	if pool == nil {
		panic("issuestore: pool is required")
	}
	return &Store{pool: pool}
}

// Create inserts a new record. Returns an error if a record for the
// issue ID already exists — callers check for existence first under the
// per-issue lock, so a conflict here indicates a serialization bug.
func (s *Store) Create(ctx context.Context, record Record) error {
	if record.RootEventID.IsZero() {
		return fmt.Errorf("issuestore: record for issue %d has no root event ID", record.IssueID)
	}
	if record.Status == "" {
		record.Status = StatusOpen
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO issues (issue_id, subject, root_event_id, status, reaction_event_id)
		 VALUES (:issue_id, :subject, :root_event_id, :status, :reaction_event_id)`,
		&sqlitex.ExecOptions{
			Named: map[string]any{
				":issue_id":          record.IssueID,
				":subject":           record.Subject,
				":root_event_id":     record.RootEventID.String(),
				":status":            string(record.Status),
				":reaction_event_id": nullableEventID(record.ReactionEventID),
			},
		})
	if err != nil {
		return fmt.Errorf("issuestore: creating record for issue %d: %w", record.IssueID, err)
	}
	return nil
}

// Get returns the record for an issue ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, issueID int64) (*Record, error) {
	return s.queryOne(ctx,
		`SELECT issue_id, subject, root_event_id, status, reaction_event_id
		 FROM issues WHERE issue_id = :key`,
		issueID)
}

// GetByRootEvent returns the record whose thread root is the given
// event ID, or ErrNotFound. This is the reverse lookup used to map an
// admin's thread reply back to an issue.
func (s *Store) GetByRootEvent(ctx context.Context, rootEventID ref.EventID) (*Record, error) {
	return s.queryOne(ctx,
		`SELECT issue_id, subject, root_event_id, status, reaction_event_id
		 FROM issues WHERE root_event_id = :key`,
		rootEventID.String())
}

// SetResolved marks an issue resolved and records the reaction event
// attached to its root message.
func (s *Store) SetResolved(ctx context.Context, issueID int64, reactionEventID ref.EventID) error {
	return s.update(ctx, issueID,
		`UPDATE issues SET status = 'resolved', reaction_event_id = :reaction_event_id
		 WHERE issue_id = :issue_id`,
		map[string]any{
			":issue_id":          issueID,
			":reaction_event_id": nullableEventID(reactionEventID),
		})
}

// SetOpen marks an issue open and clears the reaction event.
func (s *Store) SetOpen(ctx context.Context, issueID int64) error {
	return s.update(ctx, issueID,
		`UPDATE issues SET status = 'open', reaction_event_id = NULL
		 WHERE issue_id = :issue_id`,
		map[string]any{":issue_id": issueID})
}

// SetSubject updates an issue's display text.
func (s *Store) SetSubject(ctx context.Context, issueID int64, subject string) error {
	return s.update(ctx, issueID,
		`UPDATE issues SET subject = :subject WHERE issue_id = :issue_id`,
		map[string]any{
			":issue_id": issueID,
			":subject":  subject,
		})
}

// All returns every record ordered by issue ID. Used by the ops socket
// to report bridge state.
func (s *Store) All(ctx context.Context) ([]Record, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var records []Record
	err = sqlitex.Execute(conn,
		`SELECT issue_id, subject, root_event_id, status, reaction_event_id
		 FROM issues ORDER BY issue_id`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record, err := scanRecord(stmt)
				if err != nil {
					return err
				}
				records = append(records, *record)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("issuestore: listing records: %w", err)
	}
	return records, nil
}

func (s *Store) queryOne(ctx context.Context, query string, key any) (*Record, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var record *Record
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Named: map[string]any{":key": key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			scanned, err := scanRecord(stmt)
			if err != nil {
				return err
			}
			record = scanned
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("issuestore: querying record: %w", err)
	}
	if record == nil {
		return nil, ErrNotFound
	}
	return record, nil
}

func (s *Store) update(ctx context.Context, issueID int64, query string, named map[string]any) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	if err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Named: named}); err != nil {
		return fmt.Errorf("issuestore: updating issue %d: %w", issueID, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("issuestore: updating issue %d: %w", issueID, ErrNotFound)
	}
	return nil
}

func scanRecord(stmt *sqlite.Stmt) (*Record, error) {
	record := Record{
		IssueID: stmt.ColumnInt64(0),
		Subject: stmt.ColumnText(1),
		Status:  Status(stmt.ColumnText(3)),
	}

	rootEventID, err := ref.ParseEventID(stmt.ColumnText(2))
	if err != nil {
		return nil, fmt.Errorf("issuestore: corrupt root_event_id for issue %d: %w", record.IssueID, err)
	}
	record.RootEventID = rootEventID

	if stmt.ColumnType(4) != sqlite.TypeNull {
		reactionEventID, err := ref.ParseEventID(stmt.ColumnText(4))
		if err != nil {
			return nil, fmt.Errorf("issuestore: corrupt reaction_event_id for issue %d: %w", record.IssueID, err)
		}
		record.ReactionEventID = reactionEventID
	}

	return &record, nil
}

func nullableEventID(eventID ref.EventID) any {
	if eventID.IsZero() {
		return nil
	}
	return eventID.String()
}
