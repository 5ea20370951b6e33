// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/oknozor/michel-bot/lib/testutil"
)

func TestHTTPServerServesAndShutsDown(t *testing.T) {
	handler := http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		fmt.Fprint(writer, "ok")
	})

	server := NewHTTPServer(HTTPServerConfig{
		Address: "127.0.0.1:0",
		Handler: handler,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve(ctx)
	}()

	testutil.RequireClosed(t, server.Ready(), "server ready channel")

	response, err := http.Get("http://" + server.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, err := io.ReadAll(response.Body)
	response.Body.Close()
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q", body)
	}

	cancel()
	if err := testutil.RequireReceive(t, serveDone, "serve result"); err != nil {
		t.Errorf("Serve returned %v", err)
	}
}

func TestVerifyWebhookToken(t *testing.T) {
	secret := []byte("webhook-token")

	if err := VerifyWebhookToken(secret, "webhook-token"); err != nil {
		t.Errorf("bare token rejected: %v", err)
	}
	if err := VerifyWebhookToken(secret, "Bearer webhook-token"); err != nil {
		t.Errorf("bearer token rejected: %v", err)
	}
	if err := VerifyWebhookToken(secret, "Bearer wrong"); err == nil {
		t.Error("wrong token accepted")
	}
	if err := VerifyWebhookToken(secret, ""); err == nil {
		t.Error("empty header accepted")
	}
	if err := VerifyWebhookToken(nil, "anything"); err == nil {
		t.Error("empty secret accepted")
	}
}
