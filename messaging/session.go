// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"

	"github.com/oknozor/michel-bot/lib/ref"
)

// Session is the authenticated Matrix API surface the bridge consumes.
// DirectSession is the production implementation; tests substitute a
// fake to exercise bridge logic without an HTTP server.
type Session interface {
	// UserID returns the fully-qualified Matrix user ID of the session.
	UserID() ref.UserID

	// WhoAmI validates the access token and returns the user ID.
	WhoAmI(ctx context.Context) (ref.UserID, error)

	// ResolveAlias resolves a room alias to a room ID.
	ResolveAlias(ctx context.Context, alias ref.RoomAlias) (ref.RoomID, error)

	// JoinRoom joins a room by ID.
	JoinRoom(ctx context.Context, roomID ref.RoomID) (ref.RoomID, error)

	// SendMessage sends an m.room.message event and returns its event ID.
	SendMessage(ctx context.Context, roomID ref.RoomID, content MessageContent) (ref.EventID, error)

	// SendReaction annotates an event with a reaction key and returns
	// the reaction event's ID.
	SendReaction(ctx context.Context, roomID ref.RoomID, targetEventID ref.EventID, key string) (ref.EventID, error)

	// RedactEvent removes an event's content and returns the redaction
	// event's ID.
	RedactEvent(ctx context.Context, roomID ref.RoomID, eventID ref.EventID, reason string) (ref.EventID, error)

	// Sync performs one /sync request.
	Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error)

	// CloseIdleConnections drops pooled HTTP connections after a
	// network error.
	CloseIdleConnections()

	// Close releases the session's credentials.
	Close() error
}

var _ Session = (*DirectSession)(nil)
