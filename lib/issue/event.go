// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

// Package issue defines the closed sets of issue lifecycle events and
// admin commands, plus the translation from raw webhook payloads and
// chat text into them. Everything downstream of this package works with
// typed values only — the synchronization engine never re-parses raw
// input.
package issue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformedPayload is returned when a webhook payload is missing
// required fields for its declared notification type. Terminal for that
// delivery: retrying would reproduce the same body.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// Notification types sent by Seerr.
const (
	notificationIssueCreated  = "ISSUE_CREATED"
	notificationIssueResolved = "ISSUE_RESOLVED"
	notificationIssueReopened = "ISSUE_REOPENED"
	notificationIssueComment  = "ISSUE_COMMENT"
	notificationTest          = "TEST_NOTIFICATION"
)

// Event is a normalized issue lifecycle event. The set is closed:
// Created, Resolved, Reopened, Commented.
type Event interface {
	// Issue returns the Seerr issue ID the event concerns.
	Issue() int64

	isEvent()
}

// Created signals a newly reported issue.
type Created struct {
	IssueID  int64
	Subject  string
	Body     string
	Reporter string
	// Image is an optional poster URL for the affected media.
	Image string
}

// Resolved signals that an issue was marked resolved in Seerr.
type Resolved struct {
	IssueID int64
	Subject string
	Comment string
	Actor   string
}

// Reopened signals that a resolved issue was reopened in Seerr.
type Reopened struct {
	IssueID int64
	Subject string
	Actor   string
}

// Commented signals a new comment on an issue in Seerr.
type Commented struct {
	IssueID int64
	Subject string
	Comment string
	Actor   string
}

func (e Created) Issue() int64   { return e.IssueID }
func (e Resolved) Issue() int64  { return e.IssueID }
func (e Reopened) Issue() int64  { return e.IssueID }
func (e Commented) Issue() int64 { return e.IssueID }

func (Created) isEvent()   {}
func (Resolved) isEvent()  {}
func (Reopened) isEvent()  {}
func (Commented) isEvent() {}

// webhookPayload is the flat JSON body Seerr posts for issue
// notifications. issue_id arrives as a decimal string.
type webhookPayload struct {
	NotificationType string `json:"notification_type"`
	Subject          string `json:"subject"`
	Message          string `json:"message"`
	Image            string `json:"image"`
	IssueID          string `json:"issue_id"`
	ReportedBy       string `json:"reported_by_username"`
	Comment          string `json:"comment_message"`
	CommentedBy      string `json:"commented_by_username"`
}

// Normalize translates a raw Seerr webhook body into a typed lifecycle
// event. Returns (nil, nil) for notification types the bridge does not
// project (e.g., TEST_NOTIFICATION and media request notifications).
// Returns an error wrapping ErrMalformedPayload when required fields
// for the declared type are missing or malformed.
func Normalize(raw []byte) (Event, error) {
	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch payload.NotificationType {
	case notificationIssueCreated, notificationIssueResolved,
		notificationIssueReopened, notificationIssueComment:
		// Handled below.
	case notificationTest:
		return nil, nil
	default:
		return nil, nil
	}

	if payload.IssueID == "" {
		return nil, fmt.Errorf("%w: %s missing issue_id", ErrMalformedPayload, payload.NotificationType)
	}
	issueID, err := strconv.ParseInt(payload.IssueID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: issue_id %q is not a number", ErrMalformedPayload, payload.IssueID)
	}
	if payload.Subject == "" {
		return nil, fmt.Errorf("%w: %s missing subject", ErrMalformedPayload, payload.NotificationType)
	}

	switch payload.NotificationType {
	case notificationIssueCreated:
		return Created{
			IssueID:  issueID,
			Subject:  payload.Subject,
			Body:     payload.Message,
			Reporter: payload.ReportedBy,
			Image:    payload.Image,
		}, nil

	case notificationIssueResolved:
		return Resolved{
			IssueID: issueID,
			Subject: payload.Subject,
			Comment: payload.Comment,
			Actor:   payload.CommentedBy,
		}, nil

	case notificationIssueReopened:
		return Reopened{
			IssueID: issueID,
			Subject: payload.Subject,
			Actor:   payload.CommentedBy,
		}, nil

	default: // notificationIssueComment
		if payload.Comment == "" {
			return nil, fmt.Errorf("%w: ISSUE_COMMENT missing comment_message", ErrMalformedPayload)
		}
		return Commented{
			IssueID: issueID,
			Subject: payload.Subject,
			Comment: payload.Comment,
			Actor:   payload.CommentedBy,
		}, nil
	}
}
