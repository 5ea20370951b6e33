// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge contains the synchronization engine between Seerr and
// the Matrix support room. Each inbound webhook event or admin command
// is one transition of a per-issue state machine: the engine reads the
// issue's record, performs the outbound chat and ticket-service calls
// the transition requires, and commits the record mutation only after
// every outbound call succeeded. Transitions for the same issue are
// serialized by a keyed lock; different issues proceed in parallel.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oknozor/michel-bot/lib/clock"
	"github.com/oknozor/michel-bot/lib/issue"
	"github.com/oknozor/michel-bot/lib/issuestore"
	"github.com/oknozor/michel-bot/lib/ref"
	"github.com/oknozor/michel-bot/lib/seerr"
)

// TicketClient is the outbound Seerr surface the engine drives.
// seerr.Client is the production implementation.
type TicketClient interface {
	AddComment(ctx context.Context, issueID int64, message string) error
	Resolve(ctx context.Context, issueID int64) error
	Reopen(ctx context.Context, issueID int64) error
}

// Config holds the collaborators for creating a Bridge.
type Config struct {
	// Store persists issue records. Required.
	Store *issuestore.Store
	// Projector posts messages, thread replies, and reactions. Required.
	Projector Projector
	// Tickets mutates issues in Seerr. Required.
	Tickets TicketClient
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
	// Clock paces retry backoff. If nil, the system clock is used.
	Clock clock.Clock
	// RetryBudget is the number of attempts for transient outbound
	// failures. If zero, defaults to 5.
	RetryBudget int
}

// Bridge is the synchronization engine. Safe for concurrent use.
type Bridge struct {
	store       *issuestore.Store
	projector   Projector
	tickets     TicketClient
	logger      *slog.Logger
	clock       clock.Clock
	retryBudget int
	locks       *issueLocks
}

// New creates a Bridge. Panics if a required collaborator is missing.
func New(config Config) *Bridge {
	if config.Store == nil {
		panic("bridge: Store is required")
	}
	if config.Projector == nil {
		panic("bridge: Projector is required")
	}
	if config.Tickets == nil {
		panic("bridge: Tickets is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	retryBudget := config.RetryBudget
	if retryBudget <= 0 {
		retryBudget = 5
	}

	return &Bridge{
		store:       config.Store,
		projector:   config.Projector,
		tickets:     config.Tickets,
		logger:      logger,
		clock:       clk,
		retryBudget: retryBudget,
		locks:       newIssueLocks(),
	}
}

// HandleWebhook processes one raw Seerr webhook delivery. Returns nil
// for notification types the bridge does not project. Returns an error
// wrapping issue.ErrMalformedPayload for bodies that cannot be
// normalized (terminal — do not redeliver) and other errors for
// transitions that could not be completed (safe to redeliver).
func (b *Bridge) HandleWebhook(ctx context.Context, raw []byte) error {
	event, err := issue.Normalize(raw)
	if err != nil {
		return err
	}
	if event == nil {
		return nil
	}

	release := b.locks.acquire(event.Issue())
	defer release()

	switch typed := event.(type) {
	case issue.Created:
		return b.handleCreated(ctx, typed)
	case issue.Resolved:
		return b.handleResolved(ctx, typed)
	case issue.Reopened:
		return b.handleReopened(ctx, typed)
	case issue.Commented:
		return b.handleCommented(ctx, typed)
	default:
		return fmt.Errorf("bridge: unhandled event type %T", event)
	}
}

// handleCreated posts the root message for a new issue and creates its
// record. A second Created delivery for an issue that already owns a
// record is absorbed as a no-op — record presence is the deduplication.
func (b *Bridge) handleCreated(ctx context.Context, event issue.Created) error {
	_, err := b.store.Get(ctx, event.IssueID)
	if err == nil {
		b.logger.Debug("duplicate created event absorbed", "issue_id", event.IssueID)
		return nil
	}
	if !errors.Is(err, issuestore.ErrNotFound) {
		return err
	}

	text, htmlText := formatCreated(event)
	var rootEventID ref.EventID
	err = b.retry(ctx, func() error {
		var postErr error
		rootEventID, postErr = b.projector.PostMessage(ctx, text, htmlText)
		return postErr
	})
	if err != nil {
		return fmt.Errorf("bridge: projecting issue %d: %w", event.IssueID, err)
	}

	if err := b.store.Create(ctx, issuestore.Record{
		IssueID:     event.IssueID,
		Subject:     event.Subject,
		RootEventID: rootEventID,
		Status:      issuestore.StatusOpen,
	}); err != nil {
		return err
	}

	b.logger.Info("issue projected",
		"issue_id", event.IssueID,
		"subject", event.Subject,
		"root_event_id", rootEventID,
	)
	return nil
}

func (b *Bridge) handleResolved(ctx context.Context, event issue.Resolved) error {
	record, err := b.store.Get(ctx, event.IssueID)
	if errors.Is(err, issuestore.ErrNotFound) {
		b.logger.Warn("resolved event for unknown issue", "issue_id", event.IssueID)
		return nil
	}
	if err != nil {
		return err
	}
	if record.Status == issuestore.StatusResolved {
		b.logger.Debug("duplicate resolved event absorbed", "issue_id", event.IssueID)
		return nil
	}

	err = b.retry(ctx, func() error {
		_, replyErr := b.projector.PostThreadReply(ctx, record.RootEventID, formatResolved(event))
		return replyErr
	})
	if err != nil {
		return fmt.Errorf("bridge: replying for issue %d: %w", event.IssueID, err)
	}

	var reactionEventID ref.EventID
	err = b.retry(ctx, func() error {
		var reactErr error
		reactionEventID, reactErr = b.projector.AddReaction(ctx, record.RootEventID)
		return reactErr
	})
	if err != nil {
		return fmt.Errorf("bridge: marking issue %d resolved: %w", event.IssueID, err)
	}

	if err := b.store.SetResolved(ctx, event.IssueID, reactionEventID); err != nil {
		return err
	}
	b.syncSubject(ctx, record, event.Subject)

	b.logger.Info("issue resolved", "issue_id", event.IssueID, "actor", event.Actor)
	return nil
}

func (b *Bridge) handleReopened(ctx context.Context, event issue.Reopened) error {
	record, err := b.store.Get(ctx, event.IssueID)
	if errors.Is(err, issuestore.ErrNotFound) {
		b.logger.Warn("reopened event for unknown issue", "issue_id", event.IssueID)
		return nil
	}
	if err != nil {
		return err
	}
	if record.Status == issuestore.StatusOpen {
		b.logger.Debug("duplicate reopened event absorbed", "issue_id", event.IssueID)
		return nil
	}

	err = b.retry(ctx, func() error {
		_, replyErr := b.projector.PostThreadReply(ctx, record.RootEventID, formatReopened(event))
		return replyErr
	})
	if err != nil {
		return fmt.Errorf("bridge: replying for issue %d: %w", event.IssueID, err)
	}

	if record.ReactionApplied() {
		err = b.retry(ctx, func() error {
			return b.projector.RemoveReaction(ctx, record.ReactionEventID)
		})
		if err != nil {
			return fmt.Errorf("bridge: clearing resolved marker for issue %d: %w", event.IssueID, err)
		}
	}

	if err := b.store.SetOpen(ctx, event.IssueID); err != nil {
		return err
	}
	b.syncSubject(ctx, record, event.Subject)

	b.logger.Info("issue reopened", "issue_id", event.IssueID, "actor", event.Actor)
	return nil
}

func (b *Bridge) handleCommented(ctx context.Context, event issue.Commented) error {
	record, err := b.store.Get(ctx, event.IssueID)
	if errors.Is(err, issuestore.ErrNotFound) {
		b.logger.Warn("comment event for unknown issue", "issue_id", event.IssueID)
		return nil
	}
	if err != nil {
		return err
	}

	err = b.retry(ctx, func() error {
		_, replyErr := b.projector.PostThreadReply(ctx, record.RootEventID, formatCommented(event))
		return replyErr
	})
	if err != nil {
		return fmt.Errorf("bridge: replying for issue %d: %w", event.IssueID, err)
	}
	b.syncSubject(ctx, record, event.Subject)
	return nil
}

// HandleRoomEvent processes one Matrix room message. The caller invokes
// it only for thread replies, passing the thread root's event ID and
// whether the sender is in the configured admin set. Non-admin senders,
// non-command text, and threads that do not belong to any issue are all
// ignored silently; parse errors are answered in-thread with a usage
// hint rather than surfaced as failures.
func (b *Bridge) HandleRoomEvent(ctx context.Context, sender ref.UserID, threadRootID ref.EventID, text string, isSenderAdmin bool) error {
	if threadRootID.IsZero() || !isSenderAdmin {
		return nil
	}

	command, parseErr := issue.ParseCommand(text)
	if errors.Is(parseErr, issue.ErrNotCommand) {
		return nil
	}

	record, err := b.store.GetByRootEvent(ctx, threadRootID)
	if errors.Is(err, issuestore.ErrNotFound) {
		// A reply in a thread the bridge doesn't own. Arbitrary chat
		// threads will not match; stay silent.
		b.logger.Debug("command in unknown thread ignored", "thread_root", threadRootID, "sender", sender)
		return nil
	}
	if err != nil {
		return err
	}

	if parseErr != nil {
		b.replyBestEffort(ctx, threadRootID, "⚠️ "+parseErr.Error()+"\n"+issue.Usage)
		return nil
	}

	release := b.locks.acquire(record.IssueID)
	defer release()

	// Re-read under the lock: a racing transition may have committed
	// between the reverse lookup and lock acquisition.
	record, err = b.store.Get(ctx, record.IssueID)
	if err != nil {
		return err
	}

	switch typed := command.(type) {
	case issue.Resolve:
		return b.commandResolve(ctx, record, typed, sender)
	case issue.Reopen:
		return b.commandReopen(ctx, record, sender)
	case issue.Comment:
		return b.commandComment(ctx, record, typed, sender)
	default:
		return fmt.Errorf("bridge: unhandled command type %T", command)
	}
}

// commandResolve submits the operator's comment to Seerr strictly
// before the resolve call, so the resolution record carries the
// rationale even if the resolve itself fails. An already-submitted
// comment is not rolled back on resolve failure — partial progress is
// idempotent on retry.
func (b *Bridge) commandResolve(ctx context.Context, record *issuestore.Record, command issue.Resolve, sender ref.UserID) error {
	if record.Status == issuestore.StatusResolved {
		b.replyBestEffort(ctx, record.RootEventID, "Issue already resolved")
		return nil
	}

	err := b.retry(ctx, func() error {
		return b.tickets.AddComment(ctx, record.IssueID, command.Comment)
	})
	if err != nil {
		return b.reportTicketFailure(ctx, record, err)
	}

	err = b.retry(ctx, func() error {
		return b.tickets.Resolve(ctx, record.IssueID)
	})
	if err != nil {
		return b.reportTicketFailure(ctx, record, err)
	}

	err = b.retry(ctx, func() error {
		_, replyErr := b.projector.PostThreadReply(ctx, record.RootEventID, formatResolveAck(command.Comment))
		return replyErr
	})
	if err != nil {
		return fmt.Errorf("bridge: acknowledging resolve of issue %d: %w", record.IssueID, err)
	}

	var reactionEventID ref.EventID
	err = b.retry(ctx, func() error {
		var reactErr error
		reactionEventID, reactErr = b.projector.AddReaction(ctx, record.RootEventID)
		return reactErr
	})
	if err != nil {
		return fmt.Errorf("bridge: marking issue %d resolved: %w", record.IssueID, err)
	}

	if err := b.store.SetResolved(ctx, record.IssueID, reactionEventID); err != nil {
		return err
	}

	b.logger.Info("issue resolved by command", "issue_id", record.IssueID, "sender", sender)
	return nil
}

func (b *Bridge) commandReopen(ctx context.Context, record *issuestore.Record, sender ref.UserID) error {
	err := b.retry(ctx, func() error {
		return b.tickets.Reopen(ctx, record.IssueID)
	})
	if err != nil {
		return b.reportTicketFailure(ctx, record, err)
	}

	err = b.retry(ctx, func() error {
		_, replyErr := b.projector.PostThreadReply(ctx, record.RootEventID, formatReopenAck())
		return replyErr
	})
	if err != nil {
		return fmt.Errorf("bridge: acknowledging reopen of issue %d: %w", record.IssueID, err)
	}

	if record.ReactionApplied() {
		err = b.retry(ctx, func() error {
			return b.projector.RemoveReaction(ctx, record.ReactionEventID)
		})
		if err != nil {
			return fmt.Errorf("bridge: clearing resolved marker for issue %d: %w", record.IssueID, err)
		}
	}

	if err := b.store.SetOpen(ctx, record.IssueID); err != nil {
		return err
	}

	b.logger.Info("issue reopened by command", "issue_id", record.IssueID, "sender", sender)
	return nil
}

func (b *Bridge) commandComment(ctx context.Context, record *issuestore.Record, command issue.Comment, sender ref.UserID) error {
	err := b.retry(ctx, func() error {
		return b.tickets.AddComment(ctx, record.IssueID, command.Text)
	})
	if err != nil {
		return b.reportTicketFailure(ctx, record, err)
	}

	err = b.retry(ctx, func() error {
		_, replyErr := b.projector.PostThreadReply(ctx, record.RootEventID, formatCommentAck())
		return replyErr
	})
	if err != nil {
		return fmt.Errorf("bridge: acknowledging comment on issue %d: %w", record.IssueID, err)
	}

	b.logger.Info("comment forwarded to seerr", "issue_id", record.IssueID, "sender", sender)
	return nil
}

// reportTicketFailure routes a failed Seerr call: terminal errors
// (unknown issue, unauthorized) are reported verbatim to the admin
// in-thread and absorbed; exhausted transient errors propagate so the
// caller can report the event as unprocessed.
func (b *Bridge) reportTicketFailure(ctx context.Context, record *issuestore.Record, err error) error {
	var apiErr *seerr.APIError
	if errors.As(err, &apiErr) && !seerr.IsRetryable(err) {
		b.replyBestEffort(ctx, record.RootEventID, "⚠️ "+err.Error())
		return nil
	}
	return fmt.Errorf("bridge: seerr call for issue %d failed: %w", record.IssueID, err)
}

// replyBestEffort posts a single-attempt thread reply for user-facing
// diagnostics. Failures are logged, never propagated — the reply is a
// courtesy, not part of the transition.
func (b *Bridge) replyBestEffort(ctx context.Context, rootEventID ref.EventID, text string) {
	if _, err := b.projector.PostThreadReply(ctx, rootEventID, text); err != nil {
		b.logger.Warn("failed to post diagnostic reply", "thread_root", rootEventID, "error", err)
	}
}

// syncSubject refreshes the stored subject when an event carries a
// newer one. Best-effort: the subject is display text, not state.
func (b *Bridge) syncSubject(ctx context.Context, record *issuestore.Record, subject string) {
	if subject == "" || subject == record.Subject {
		return
	}
	if err := b.store.SetSubject(ctx, record.IssueID, subject); err != nil {
		b.logger.Warn("failed to update subject", "issue_id", record.IssueID, "error", err)
	}
}
