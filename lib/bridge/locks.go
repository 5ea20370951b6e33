// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import "sync"

// issueLocks serializes transitions per issue ID while letting
// unrelated issues proceed in parallel. Locks are reference-counted and
// removed from the map when the last holder releases, so the map stays
// bounded by the number of in-flight transitions rather than the number
// of issues ever seen.
type issueLocks struct {
	mu    sync.Mutex
	locks map[int64]*issueLock
}

type issueLock struct {
	mu   sync.Mutex
	refs int
}

func newIssueLocks() *issueLocks {
	return &issueLocks{locks: make(map[int64]*issueLock)}
}

// acquire blocks until the exclusive section for issueID is held and
// returns the release function.
func (l *issueLocks) acquire(issueID int64) (release func()) {
	l.mu.Lock()
	entry, ok := l.locks[issueID]
	if !ok {
		entry = &issueLock{}
		l.locks[issueID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, issueID)
		}
		l.mu.Unlock()
	}
}
