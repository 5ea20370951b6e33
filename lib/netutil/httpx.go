// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides bounded HTTP response reading shared by the
// Matrix and Seerr API clients. All JSON response bodies are read
// through ReadResponse so a misbehaving server cannot exhaust memory.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
)

// MaxResponseSize bounds JSON API response body reads: 64 MB. This
// exists solely to prevent a pathological response from exhausting
// system memory; legitimate API responses are orders of magnitude
// smaller.
const MaxResponseSize int64 = 64 << 20

// ReadResponse reads an HTTP response body bounded at MaxResponseSize.
// Returns an error if the body exceeds the limit.
func ReadResponse(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > MaxResponseSize {
		return nil, fmt.Errorf("response body exceeds %d byte limit", MaxResponseSize)
	}
	return data, nil
}

// DecodeResponse reads a bounded response body and unmarshals it into
// target.
func DecodeResponse(body io.Reader, target any) error {
	data, err := ReadResponse(body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
