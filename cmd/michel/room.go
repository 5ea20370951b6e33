// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oknozor/michel-bot/lib/bridge"
	"github.com/oknozor/michel-bot/lib/ref"
	"github.com/oknozor/michel-bot/messaging"
)

// syncFilter returns the inline /sync filter restricting the response
// to message events in the support room. State, presence, and
// ephemeral events are irrelevant to command routing.
func syncFilter(roomID ref.RoomID) string {
	return fmt.Sprintf(`{"room":{"rooms":[%q],"timeline":{"types":["m.room.message"],"limit":50},"state":{"types":[]},"ephemeral":{"types":[]}},"presence":{"types":[]},"account_data":{"types":[]}}`, roomID.String())
}

// RoomRouter feeds Matrix timeline events into the bridge. It extracts
// the thread relation from each message and forwards thread replies
// along with the sender's admin standing; everything else is dropped
// here so the bridge only sees candidate commands.
type RoomRouter struct {
	bridge *bridge.Bridge
	roomID ref.RoomID
	selfID ref.UserID
	admins map[ref.UserID]struct{}
	logger *slog.Logger
}

// NewRoomRouter creates a router for the given support room. Panics on
// nil or zero required parameters.
func NewRoomRouter(b *bridge.Bridge, roomID ref.RoomID, selfID ref.UserID, admins map[ref.UserID]struct{}, logger *slog.Logger) *RoomRouter {
	if b == nil {
		panic("RoomRouter: bridge is required")
	}
	if roomID.IsZero() {
		panic("RoomRouter: roomID is required")
	}
	if selfID.IsZero() {
		panic("RoomRouter: selfID is required")
	}
	if logger == nil {
		panic("RoomRouter: logger is required")
	}
	return &RoomRouter{
		bridge: b,
		roomID: roomID,
		selfID: selfID,
		admins: admins,
		logger: logger,
	}
}

// HandleSync processes one /sync response, routing each thread reply in
// the support room to the bridge.
func (r *RoomRouter) HandleSync(ctx context.Context, response *messaging.SyncResponse) {
	room, ok := response.Rooms.Join[r.roomID]
	if !ok {
		return
	}

	for _, event := range room.Timeline.Events {
		if event.Type != "m.room.message" {
			continue
		}
		// Our own messages echo back through /sync; acting on them
		// would loop.
		if event.Sender == r.selfID {
			continue
		}

		body, threadRootID := extractMessage(event.Content)
		if body == "" {
			continue
		}

		_, isAdmin := r.admins[event.Sender]
		if err := r.bridge.HandleRoomEvent(ctx, event.Sender, threadRootID, body, isAdmin); err != nil {
			r.logger.Error("command handling failed",
				"event_id", event.EventID,
				"sender", event.Sender,
				"error", err,
			)
		}
	}
}

// extractMessage pulls the plain-text body and the thread root (if
// the message is a thread reply) out of an m.room.message content
// map. Returns a zero thread root for top-level messages.
func extractMessage(content map[string]any) (body string, threadRootID ref.EventID) {
	body, _ = content["body"].(string)

	relates, ok := content["m.relates_to"].(map[string]any)
	if !ok {
		return body, ref.EventID{}
	}
	relType, _ := relates["rel_type"].(string)
	if relType != "m.thread" {
		return body, ref.EventID{}
	}
	rawEventID, _ := relates["event_id"].(string)
	rootID, err := ref.ParseEventID(rawEventID)
	if err != nil {
		return body, ref.EventID{}
	}
	return body, rootID
}
