// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
)

// CommandPrefix introduces an admin command in a thread reply.
const CommandPrefix = "!issues"

// ErrNotCommand is returned for thread replies that do not start with
// the command prefix. These are ordinary conversation and are ignored.
var ErrNotCommand = errors.New("not an issue command")

// ErrUnrecognizedCommand is returned when the verb after the prefix is
// not in the command set. Answered in-thread with a usage hint.
var ErrUnrecognizedCommand = errors.New("unrecognized command")

// ErrMissingArgument is returned when a verb requires an argument and
// none was given. Answered in-thread with a usage hint.
var ErrMissingArgument = errors.New("missing argument")

// Usage is the hint sent back to the admin when a command fails to
// parse.
const Usage = `Usage: !issues resolve "<comment>" | !issues reopen | !issues comment "<text>"`

// Command is a parsed admin command. The set is closed: Resolve,
// Reopen, Comment.
type Command interface {
	isCommand()
}

// Resolve marks the issue resolved in Seerr, carrying the operator's
// resolution comment.
type Resolve struct {
	Comment string
}

// Reopen reopens the issue in Seerr.
type Reopen struct{}

// Comment adds a comment to the issue in Seerr.
type Comment struct {
	Text string
}

func (Resolve) isCommand() {}
func (Reopen) isCommand()  {}
func (Comment) isCommand() {}

// ParseCommand parses the raw text of an admin thread reply into a
// typed command. The grammar is:
//
//	!issues resolve "<comment>"
//	!issues reopen
//	!issues comment "<text>"
//
// Arguments may be double-quoted; unquoted trailing text is accepted
// as-is. Returns ErrNotCommand when the text does not start with the
// prefix, ErrUnrecognizedCommand for unknown verbs, and
// ErrMissingArgument when a required argument is absent.
func ParseCommand(text string) (Command, error) {
	trimmed := strings.TrimSpace(text)
	rest, found := strings.CutPrefix(trimmed, CommandPrefix)
	if !found {
		return nil, ErrNotCommand
	}
	// Reject "!issuesfoo": the prefix must be a whole word.
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return nil, ErrNotCommand
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return nil, fmt.Errorf("%w: missing verb", ErrUnrecognizedCommand)
	}

	verb, remainder, _ := strings.Cut(rest, " ")
	remainder = strings.TrimSpace(remainder)

	switch verb {
	case "resolve":
		comment, err := parseArgument(remainder)
		if err != nil {
			return nil, fmt.Errorf("%w: resolve requires a comment", err)
		}
		return Resolve{Comment: comment}, nil

	case "reopen":
		return Reopen{}, nil

	case "comment":
		commentText, err := parseArgument(remainder)
		if err != nil {
			return nil, fmt.Errorf("%w: comment requires text", err)
		}
		return Comment{Text: commentText}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedCommand, verb)
	}
}

// parseArgument extracts a command argument: the content of a
// double-quoted string, or the raw remainder when unquoted.
func parseArgument(remainder string) (string, error) {
	if remainder == "" {
		return "", ErrMissingArgument
	}
	if strings.HasPrefix(remainder, `"`) {
		closing := strings.Index(remainder[1:], `"`)
		if closing < 0 {
			return "", fmt.Errorf("%w (unterminated quote)", ErrMissingArgument)
		}
		argument := remainder[1 : 1+closing]
		if argument == "" {
			return "", ErrMissingArgument
		}
		return argument, nil
	}
	return remainder, nil
}
