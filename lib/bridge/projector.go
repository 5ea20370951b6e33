// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"

	"github.com/oknozor/michel-bot/lib/ref"
	"github.com/oknozor/michel-bot/messaging"
)

// ResolvedGlyph is the reaction marking an issue's root message as
// resolved.
const ResolvedGlyph = "✅"

// Projector is the outbound chat surface the engine drives. It is a
// pure adapter: no retries, no state — failures are returned to the
// engine, which owns the retry budget.
type Projector interface {
	// PostMessage posts a new top-level message and returns its event
	// ID, which becomes an issue thread's root.
	PostMessage(ctx context.Context, text, htmlText string) (ref.EventID, error)

	// PostThreadReply posts a reply inside the thread rooted at
	// rootEventID.
	PostThreadReply(ctx context.Context, rootEventID ref.EventID, text string) (ref.EventID, error)

	// AddReaction attaches the resolved glyph to the given event and
	// returns the reaction event's ID.
	AddReaction(ctx context.Context, targetEventID ref.EventID) (ref.EventID, error)

	// RemoveReaction redacts a previously added reaction event.
	RemoveReaction(ctx context.Context, reactionEventID ref.EventID) error
}

// RoomProjector projects into a single Matrix room over an
// authenticated session.
type RoomProjector struct {
	session messaging.Session
	roomID  ref.RoomID
}

// NewRoomProjector creates a projector bound to one room.
func NewRoomProjector(session messaging.Session, roomID ref.RoomID) *RoomProjector {
	if session == nil {
		panic("bridge: session is required")
	}
	if roomID.IsZero() {
		panic("bridge: room ID is required")
	}
	return &RoomProjector{session: session, roomID: roomID}
}

func (p *RoomProjector) PostMessage(ctx context.Context, text, htmlText string) (ref.EventID, error) {
	content := messaging.NewTextMessage(text)
	if htmlText != "" {
		content = messaging.NewHTMLMessage(text, htmlText)
	}
	eventID, err := p.session.SendMessage(ctx, p.roomID, content)
	if err != nil {
		return ref.EventID{}, fmt.Errorf("bridge: posting message: %w", err)
	}
	return eventID, nil
}

func (p *RoomProjector) PostThreadReply(ctx context.Context, rootEventID ref.EventID, text string) (ref.EventID, error) {
	eventID, err := p.session.SendMessage(ctx, p.roomID, messaging.NewThreadReply(rootEventID, text))
	if err != nil {
		return ref.EventID{}, fmt.Errorf("bridge: posting thread reply: %w", err)
	}
	return eventID, nil
}

func (p *RoomProjector) AddReaction(ctx context.Context, targetEventID ref.EventID) (ref.EventID, error) {
	eventID, err := p.session.SendReaction(ctx, p.roomID, targetEventID, ResolvedGlyph)
	if err != nil {
		return ref.EventID{}, fmt.Errorf("bridge: adding reaction: %w", err)
	}
	return eventID, nil
}

func (p *RoomProjector) RemoveReaction(ctx context.Context, reactionEventID ref.EventID) error {
	if _, err := p.session.RedactEvent(ctx, p.roomID, reactionEventID, "issue reopened"); err != nil {
		return fmt.Errorf("bridge: removing reaction: %w", err)
	}
	return nil
}

var _ Projector = (*RoomProjector)(nil)
