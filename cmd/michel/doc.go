// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

// Command michel bridges a Seerr ticket service and a Matrix support
// room. Seerr webhooks become room messages (one thread per issue);
// admin thread replies become Seerr mutations (resolve, reopen,
// comment). Issue state is persisted in SQLite and queryable over a
// local CBOR operations socket.
package main
