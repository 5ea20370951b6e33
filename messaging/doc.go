// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging implements the subset of the Matrix client-server
// API that the bridge uses: password login, room alias resolution and
// joining, message and thread-reply sending, reaction annotation and
// redaction, and long-polling /sync.
//
// Client is the unauthenticated transport (homeserver URL plus HTTP
// client). Login produces a DirectSession holding the access token in
// mmap-backed memory. Session is the interface the bridge consumes, so
// tests can substitute a fake without an HTTP server.
package messaging
