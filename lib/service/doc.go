// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the long-running infrastructure pieces of
// the bridge daemon: the HTTP server for webhook ingestion, the Matrix
// /sync long-poll loop, and the Unix-socket ops protocol used by
// operators to inspect bridge state.
package service
