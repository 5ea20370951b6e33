// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/oknozor/michel-bot/lib/issue"
)

const testWebhookToken = "test-webhook-token"

// testWebhook creates a WebhookHandler that collects payloads into a
// slice protected by a mutex. handleErr, when non-nil, is returned
// from every handle call.
type testWebhook struct {
	handler   *WebhookHandler
	handleErr error
	mu        sync.Mutex
	payloads  [][]byte
}

func newTestWebhook(token []byte) *testWebhook {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	webhook := &testWebhook{}
	webhook.handler = NewWebhookHandler(token, logger, func(ctx context.Context, raw []byte) error {
		webhook.mu.Lock()
		defer webhook.mu.Unlock()
		webhook.payloads = append(webhook.payloads, raw)
		return webhook.handleErr
	})
	return webhook
}

func (tw *testWebhook) payloadCount() int {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return len(tw.payloads)
}

func postWebhook(handler http.Handler, body, authorization string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(http.MethodPost, "/webhook/seerr", strings.NewReader(body))
	if authorization != "" {
		request.Header.Set("Authorization", authorization)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func TestWebhookRejectsNonPOST(t *testing.T) {
	webhook := newTestWebhook(nil)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			request := httptest.NewRequest(method, "/webhook/seerr", nil)
			recorder := httptest.NewRecorder()
			webhook.handler.ServeHTTP(recorder, request)

			if recorder.Code != http.StatusMethodNotAllowed {
				t.Errorf("status = %d, want %d", recorder.Code, http.StatusMethodNotAllowed)
			}
		})
	}
	if webhook.payloadCount() != 0 {
		t.Error("non-POST request reached the handler")
	}
}

func TestWebhookRejectsEmptyBody(t *testing.T) {
	webhook := newTestWebhook(nil)

	recorder := postWebhook(webhook.handler, "", "")
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", recorder.Code, http.StatusBadRequest)
	}
}

func TestWebhookTokenEnforced(t *testing.T) {
	webhook := newTestWebhook([]byte(testWebhookToken))

	recorder := postWebhook(webhook.handler, `{}`, "Bearer wrong-token")
	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	if webhook.payloadCount() != 0 {
		t.Error("unauthenticated request reached the handler")
	}

	recorder = postWebhook(webhook.handler, `{}`, "Bearer "+testWebhookToken)
	if recorder.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", recorder.Code, http.StatusOK)
	}
	if webhook.payloadCount() != 1 {
		t.Errorf("payloads = %d, want 1", webhook.payloadCount())
	}
}

func TestWebhookAuthOptional(t *testing.T) {
	webhook := newTestWebhook(nil)

	recorder := postWebhook(webhook.handler, `{"notification_type":"TEST_NOTIFICATION"}`, "")
	if recorder.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", recorder.Code, http.StatusOK)
	}
	if webhook.payloadCount() != 1 {
		t.Errorf("payloads = %d, want 1", webhook.payloadCount())
	}
}

func TestWebhookMalformedPayloadAcknowledged(t *testing.T) {
	webhook := newTestWebhook(nil)
	webhook.handleErr = fmt.Errorf("normalizing: %w", issue.ErrMalformedPayload)

	// 200 so Seerr does not redeliver a payload that can never parse.
	recorder := postWebhook(webhook.handler, `{"broken":`, "")
	if recorder.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", recorder.Code, http.StatusOK)
	}
}

func TestWebhookTransientFailureSignalsRetry(t *testing.T) {
	webhook := newTestWebhook(nil)
	webhook.handleErr = errors.New("homeserver unreachable")

	recorder := postWebhook(webhook.handler, `{"notification_type":"ISSUE_CREATED"}`, "")
	if recorder.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", recorder.Code, http.StatusInternalServerError)
	}
}
