// Copyright 2026 The Michel Authors
// SPDX-License-Identifier: Apache-2.0

// Package seerr is the outbound client for the Seerr issue API. It
// covers the three mutations the bridge triggers: commenting on an
// issue, resolving it, and reopening it. Errors are classified into
// the taxonomy the synchronization engine acts on: not-found and
// unauthorized are terminal and surfaced to the admin verbatim;
// service-unavailable is transient and retried with backoff.
package seerr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/oknozor/michel-bot/lib/netutil"
	"github.com/oknozor/michel-bot/lib/secret"
)

// Sentinel errors for the Seerr API error taxonomy. APIError wraps one
// of these; use errors.Is to classify.
var (
	ErrIssueNotFound      = errors.New("issue not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrRejected covers 4xx responses outside the named cases. Terminal:
	// retrying the same request would fail the same way.
	ErrRejected = errors.New("request rejected")
)

// APIError is a classified error from the Seerr API.
type APIError struct {
	// Kind is one of the sentinel errors above.
	Kind error
	// StatusCode is the HTTP status, or 0 for network-level failures.
	StatusCode int
	// Message is the server's error description, when one was returned.
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("seerr: %v (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("seerr: %v (%d)", e.Kind, e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.Kind }

// IsRetryable reports whether err is a transient Seerr failure worth
// retrying with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the Seerr instance root (e.g., "https://seerr.hoohoot.org").
	BaseURL string
	// APIKey authenticates requests via the X-Api-Key header. Required.
	// The client reads from the buffer but does not close it.
	APIKey *secret.Buffer
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client calls the Seerr issue API. Safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     *secret.Buffer
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Seerr API client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("seerr: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("seerr: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	if config.APIKey == nil {
		return nil, fmt.Errorf("seerr: APIKey is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// AddComment posts a comment on an issue.
func (c *Client) AddComment(ctx context.Context, issueID int64, message string) error {
	body := map[string]string{"message": message}
	if err := c.post(ctx, c.issuePath(issueID, "comment"), body); err != nil {
		return fmt.Errorf("seerr: commenting on issue %d: %w", issueID, err)
	}
	c.logger.Debug("added seerr comment", "issue_id", issueID)
	return nil
}

// Resolve marks an issue resolved.
func (c *Client) Resolve(ctx context.Context, issueID int64) error {
	if err := c.post(ctx, c.issuePath(issueID, "resolved"), nil); err != nil {
		return fmt.Errorf("seerr: resolving issue %d: %w", issueID, err)
	}
	c.logger.Debug("resolved seerr issue", "issue_id", issueID)
	return nil
}

// Reopen reopens a resolved issue.
func (c *Client) Reopen(ctx context.Context, issueID int64) error {
	if err := c.post(ctx, c.issuePath(issueID, "open"), nil); err != nil {
		return fmt.Errorf("seerr: reopening issue %d: %w", issueID, err)
	}
	c.logger.Debug("reopened seerr issue", "issue_id", issueID)
	return nil
}

func (c *Client) issuePath(issueID int64, action string) string {
	return "/api/v1/issue/" + strconv.FormatInt(issueID, 10) + "/" + action
}

func (c *Client) post(ctx context.Context, path string, requestBody any) error {
	requestURL := c.baseURL + path

	var bodyReader *bytes.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("X-Api-Key", c.apiKey.String())

	response, err := c.httpClient.Do(request)
	if err != nil {
		// Network-level failure: the service may come back.
		return &APIError{Kind: ErrServiceUnavailable, Message: err.Error()}
	}
	defer response.Body.Close()

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return nil
	}

	responseBody, readErr := netutil.ReadResponse(response.Body)
	message := ""
	if readErr == nil {
		var errorBody struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(responseBody, &errorBody) == nil {
			message = errorBody.Message
		}
	}

	return &APIError{
		Kind:       classifyStatus(response.StatusCode),
		StatusCode: response.StatusCode,
		Message:    message,
	}
}

func classifyStatus(statusCode int) error {
	switch {
	case statusCode == http.StatusNotFound:
		return ErrIssueNotFound
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return ErrUnauthorized
	case statusCode >= 500:
		return ErrServiceUnavailable
	default:
		return ErrRejected
	}
}
