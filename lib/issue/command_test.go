// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

package issue

import (
	"errors"
	"testing"
)

func TestParseResolveWithQuotedComment(t *testing.T) {
	command, err := ParseCommand(`!issues resolve "Subtitles fixed"`)
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	resolve, ok := command.(Resolve)
	if !ok {
		t.Fatalf("command is %T, want Resolve", command)
	}
	if resolve.Comment != "Subtitles fixed" {
		t.Errorf("Comment = %q", resolve.Comment)
	}
}

func TestParseResolveWithUnquotedComment(t *testing.T) {
	command, err := ParseCommand(`!issues resolve fixed in latest release`)
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	resolve, ok := command.(Resolve)
	if !ok {
		t.Fatalf("command is %T, want Resolve", command)
	}
	if resolve.Comment != "fixed in latest release" {
		t.Errorf("Comment = %q", resolve.Comment)
	}
}

func TestParseResolveWithoutCommentFails(t *testing.T) {
	_, err := ParseCommand(`!issues resolve`)
	if !errors.Is(err, ErrMissingArgument) {
		t.Errorf("error = %v, want ErrMissingArgument", err)
	}
}

func TestParseResolveUnterminatedQuoteFails(t *testing.T) {
	_, err := ParseCommand(`!issues resolve "half open`)
	if !errors.Is(err, ErrMissingArgument) {
		t.Errorf("error = %v, want ErrMissingArgument", err)
	}
}

func TestParseReopen(t *testing.T) {
	command, err := ParseCommand(`!issues reopen`)
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if _, ok := command.(Reopen); !ok {
		t.Fatalf("command is %T, want Reopen", command)
	}
}

func TestParseComment(t *testing.T) {
	command, err := ParseCommand(`!issues comment "looking into it"`)
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	comment, ok := command.(Comment)
	if !ok {
		t.Fatalf("command is %T, want Comment", command)
	}
	if comment.Text != "looking into it" {
		t.Errorf("Text = %q", comment.Text)
	}
}

func TestParseCommentWithoutTextFails(t *testing.T) {
	_, err := ParseCommand(`!issues comment`)
	if !errors.Is(err, ErrMissingArgument) {
		t.Errorf("error = %v, want ErrMissingArgument", err)
	}
}

func TestParseUnknownVerbFails(t *testing.T) {
	_, err := ParseCommand(`!issues close "done"`)
	if !errors.Is(err, ErrUnrecognizedCommand) {
		t.Errorf("error = %v, want ErrUnrecognizedCommand", err)
	}
}

func TestParseMissingVerbFails(t *testing.T) {
	_, err := ParseCommand(`!issues`)
	if !errors.Is(err, ErrUnrecognizedCommand) {
		t.Errorf("error = %v, want ErrUnrecognizedCommand", err)
	}
}

func TestParseNonCommandText(t *testing.T) {
	for _, text := range []string{
		"thanks, I'll check tonight",
		"!issuesresolve",
		"",
	} {
		if _, err := ParseCommand(text); !errors.Is(err, ErrNotCommand) {
			t.Errorf("ParseCommand(%q) error = %v, want ErrNotCommand", text, err)
		}
	}
}

func TestParseToleratesSurroundingWhitespace(t *testing.T) {
	command, err := ParseCommand("  !issues   reopen  ")
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if _, ok := command.(Reopen); !ok {
		t.Fatalf("command is %T, want Reopen", command)
	}
}
