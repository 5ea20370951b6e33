// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oknozor/michel-bot/lib/secret"
)

// testBuffer creates a secret.Buffer from a string for testing. The
// buffer is automatically closed when the test completes.
func testBuffer(t *testing.T, value string) *secret.Buffer {
	t.Helper()
	buffer, err := secret.NewFromString(value)
	if err != nil {
		t.Fatalf("creating test buffer: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	return buffer
}

func TestNewClient(t *testing.T) {
	t.Run("valid URL", func(t *testing.T) {
		client, err := NewClient(ClientConfig{HomeserverURL: "http://localhost:8008"})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		if client == nil {
			t.Fatal("NewClient returned nil")
		}
	})

	t.Run("empty URL", func(t *testing.T) {
		_, err := NewClient(ClientConfig{})
		if err == nil {
			t.Fatal("expected error for empty URL")
		}
	})

	t.Run("invalid URL", func(t *testing.T) {
		_, err := NewClient(ClientConfig{HomeserverURL: "://invalid"})
		if err == nil {
			t.Fatal("expected error for invalid URL")
		}
	})
}

func TestLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/_matrix/client/v3/login" {
			t.Errorf("unexpected path: %s", request.URL.Path)
			writer.WriteHeader(http.StatusNotFound)
			return
		}

		var body LoginRequest
		if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode login body: %v", err)
		}
		if body.Type != "m.login.password" {
			t.Errorf("login type = %q", body.Type)
		}
		if body.User != "michel" || body.Password != "hunter2" {
			t.Errorf("credentials = %q / %q", body.User, body.Password)
		}

		writer.Header().Set("Content-Type", "application/json")
		json.NewEncoder(writer).Encode(map[string]any{
			"user_id":      "@michel:hoohoot.org",
			"access_token": "syt_michel_token",
			"device_id":    "DEVICE1",
		})
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	session, err := client.Login(context.Background(), "michel", testBuffer(t, "hunter2"))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	defer session.Close()

	if got := session.UserID().String(); got != "@michel:hoohoot.org" {
		t.Errorf("UserID() = %q", got)
	}
	if session.DeviceID() != "DEVICE1" {
		t.Errorf("DeviceID() = %q", session.DeviceID())
	}
}

func TestLoginFailureReturnsMatrixError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusForbidden)
		json.NewEncoder(writer).Encode(map[string]any{
			"errcode": "M_FORBIDDEN",
			"error":   "Invalid password",
		})
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	_, err = client.Login(context.Background(), "michel", testBuffer(t, "wrong"))
	if err == nil {
		t.Fatal("Login succeeded with wrong password")
	}

	var matrixErr *MatrixError
	if !errors.As(err, &matrixErr) {
		t.Fatalf("error is not a *MatrixError: %v", err)
	}
	if matrixErr.Code != ErrCodeForbidden {
		t.Errorf("Code = %q, want %q", matrixErr.Code, ErrCodeForbidden)
	}
	if matrixErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want %d", matrixErr.StatusCode, http.StatusForbidden)
	}
	if !IsMatrixError(err, ErrCodeForbidden) {
		t.Error("IsMatrixError(err, M_FORBIDDEN) = false")
	}
}
