// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/oknozor/michel-bot/lib/codec"
	"github.com/oknozor/michel-bot/lib/testutil"
)

// request performs one CBOR request-response cycle against the socket.
func request(t *testing.T, socketPath string, payload any) Response {
	t.Helper()

	var conn net.Conn
	var err error
	deadline := time.Now().Add(5 * time.Second)
	for {
		conn, err = net.Dial("unix", socketPath)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("dialing %s: %v", socketPath, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(payload); err != nil {
		t.Fatalf("encoding request: %v", err)
	}

	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return response
}

func startServer(t *testing.T, server *SocketServer) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, serveDone, "socket serve result"); err != nil {
			t.Errorf("Serve returned %v", err)
		}
	})
}

func TestSocketActionDispatch(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "ops.sock")
	server := NewSocketServer(socketPath, slog.New(slog.NewTextHandler(io.Discard, nil)))

	server.Handle("status", func(ctx context.Context, raw []byte) (any, error) {
		return map[string]string{"state": "running"}, nil
	})
	startServer(t, server)

	response := request(t, socketPath, map[string]string{"action": "status"})
	if !response.OK {
		t.Fatalf("response not OK: %s", response.Error)
	}

	var data map[string]string
	if err := codec.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if data["state"] != "running" {
		t.Errorf("state = %q", data["state"])
	}
}

func TestSocketUnknownAction(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "ops.sock")
	server := NewSocketServer(socketPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	startServer(t, server)

	response := request(t, socketPath, map[string]string{"action": "bogus"})
	if response.OK {
		t.Fatal("unknown action reported OK")
	}
	if response.Error == "" {
		t.Error("unknown action produced no error message")
	}
}

func TestSocketHandlerError(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "ops.sock")
	server := NewSocketServer(socketPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	server.Handle("fail", func(ctx context.Context, raw []byte) (any, error) {
		return nil, fmt.Errorf("deliberate failure")
	})
	startServer(t, server)

	response := request(t, socketPath, map[string]string{"action": "fail"})
	if response.OK {
		t.Fatal("failing handler reported OK")
	}
	if response.Error != "deliberate failure" {
		t.Errorf("Error = %q", response.Error)
	}
}

func TestSocketMissingAction(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "ops.sock")
	server := NewSocketServer(socketPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	startServer(t, server)

	response := request(t, socketPath, map[string]string{"other": "field"})
	if response.OK {
		t.Fatal("request without action reported OK")
	}
}
