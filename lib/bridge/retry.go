// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/oknozor/michel-bot/lib/seerr"
	"github.com/oknozor/michel-bot/messaging"
)

const (
	retryBaseDelay = time.Second
	retryMaxDelay  = 30 * time.Second
)

// isTransient reports whether err is worth retrying: Seerr outages,
// homeserver 5xx responses, and rate limiting. Matrix 4xx responses and
// terminal Seerr errors are not retried.
func isTransient(err error) bool {
	if seerr.IsRetryable(err) {
		return true
	}

	var matrixErr *messaging.MatrixError
	if errors.As(err, &matrixErr) {
		return matrixErr.StatusCode >= 500 ||
			matrixErr.StatusCode == http.StatusTooManyRequests ||
			matrixErr.Code == messaging.ErrCodeLimitExceeded
	}

	var apiErr *seerr.APIError
	if errors.As(err, &apiErr) {
		return false
	}

	// Anything else from an outbound call is a network-level failure
	// (connection refused, reset, timeout) wrapped in plain errors.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// retry runs operation up to b.retryBudget times, backing off
// exponentially between attempts on transient errors. Terminal errors
// and context cancellation abort immediately.
func (b *Bridge) retry(ctx context.Context, operation func() error) error {
	delay := retryBaseDelay
	var lastError error

	for attempt := 1; attempt <= b.retryBudget; attempt++ {
		lastError = operation()
		if lastError == nil {
			return nil
		}
		if !isTransient(lastError) || attempt == b.retryBudget {
			return lastError
		}

		b.logger.Warn("transient failure, backing off",
			"attempt", attempt,
			"delay", delay,
			"error", lastError,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.clock.After(delay):
		}
		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
	return lastError
}
