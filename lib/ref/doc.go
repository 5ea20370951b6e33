// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides strongly typed, immutable identifiers for the
// Matrix entities the bridge works with: user IDs, room IDs, room
// aliases, and event IDs.
//
// All constructors validate their inputs and return errors for invalid
// identifiers. Once constructed, a ref is immutable. Identifiers arrive
// from two boundaries — the configuration file and Matrix API responses
// — and are parsed into these types at those boundaries, so the rest of
// the code never handles raw identifier strings.
//
// JSON marshaling uses the canonical Matrix form via
// encoding.TextMarshaler.
package ref
