// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/oknozor/michel-bot/lib/issue"
	"github.com/oknozor/michel-bot/lib/service"
)

// maxWebhookBodySize bounds a Seerr webhook payload. Notification
// payloads are a few KB at most; 1 MB gives comfortable headroom.
const maxWebhookBodySize = 1024 * 1024

// WebhookHandler ingests Seerr issue notifications. It authenticates
// the request (when a token is configured), reads the payload, and
// hands it to the bridge. The handler is an http.Handler suitable for
// use with service.HTTPServer.
type WebhookHandler struct {
	// token is the shared secret Seerr sends in the Authorization
	// header. Empty disables authentication.
	token []byte

	logger *slog.Logger

	// handle processes one raw webhook payload. Wired to
	// bridge.HandleWebhook in production.
	handle func(ctx context.Context, raw []byte) error
}

// NewWebhookHandler creates a webhook handler. Panics if logger or
// handle is nil — a nil callback would silently discard notifications.
func NewWebhookHandler(token []byte, logger *slog.Logger, handle func(ctx context.Context, raw []byte) error) *WebhookHandler {
	if logger == nil {
		panic("WebhookHandler: logger is required")
	}
	if handle == nil {
		panic("WebhookHandler: handle callback is required")
	}
	return &WebhookHandler{
		token:  token,
		logger: logger,
		handle: handle,
	}
}

// ServeHTTP handles a single webhook delivery.
func (h *WebhookHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		http.Error(writer, "", http.StatusMethodNotAllowed)
		return
	}

	if len(h.token) > 0 {
		if err := service.VerifyWebhookToken(h.token, request.Header.Get("Authorization")); err != nil {
			h.logger.Warn("webhook: authentication failed",
				"error", err,
				"remote_addr", request.RemoteAddr,
			)
			// 401 with no information disclosure.
			http.Error(writer, "", http.StatusUnauthorized)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(request.Body, maxWebhookBodySize))
	if err != nil {
		h.logger.Error("webhook: failed to read body", "error", err)
		http.Error(writer, "", http.StatusInternalServerError)
		return
	}
	if len(body) == 0 {
		http.Error(writer, "", http.StatusBadRequest)
		return
	}

	if err := h.handle(request.Context(), body); err != nil {
		if errors.Is(err, issue.ErrMalformedPayload) {
			// Retrying won't fix a malformed payload. Acknowledge so
			// Seerr doesn't redeliver.
			h.logger.Error("webhook: malformed payload", "error", err)
			writer.WriteHeader(http.StatusOK)
			return
		}
		// Transient processing failure: a 5xx makes Seerr redeliver,
		// and redelivery is idempotent on our side.
		h.logger.Error("webhook: processing failed", "error", err)
		http.Error(writer, "", http.StatusInternalServerError)
		return
	}

	writer.WriteHeader(http.StatusOK)
}
