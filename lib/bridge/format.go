// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"fmt"
	"html"

	"github.com/oknozor/michel-bot/lib/issue"
)

// formatCreated renders the root message for a new issue, in plain text
// and HTML.
func formatCreated(event issue.Created) (text, htmlText string) {
	text = fmt.Sprintf("🐛 Issue #%d: %s\nreported by %s", event.IssueID, event.Subject, event.Reporter)
	if event.Body != "" {
		text += "\n\n" + event.Body
	}

	htmlText = fmt.Sprintf("🐛 <b>Issue #%d: %s</b><br>reported by <i>%s</i>",
		event.IssueID, html.EscapeString(event.Subject), html.EscapeString(event.Reporter))
	if event.Body != "" {
		htmlText += "<br><br>" + html.EscapeString(event.Body)
	}
	if event.Image != "" {
		htmlText += fmt.Sprintf(`<br><a href="%s">poster</a>`, html.EscapeString(event.Image))
	}
	return text, htmlText
}

func formatResolved(event issue.Resolved) string {
	if event.Comment != "" {
		return fmt.Sprintf("✅ Resolved by %s: %s", event.Actor, event.Comment)
	}
	return fmt.Sprintf("✅ Resolved by %s", event.Actor)
}

func formatReopened(event issue.Reopened) string {
	return fmt.Sprintf("🔁 Reopened by %s", event.Actor)
}

func formatCommented(event issue.Commented) string {
	return fmt.Sprintf("💬 %s: %s", event.Actor, event.Comment)
}

func formatResolveAck(comment string) string {
	return fmt.Sprintf("✅ Issue resolved: %s", comment)
}

func formatReopenAck() string {
	return "🔁 Issue reopened"
}

func formatCommentAck() string {
	return "💬 Comment added"
}
