// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the Sequence API client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeNotFound
	ErrTypeEncode
	ErrTypeInvalidResponse
)

// Sentinel errors for easy checking.
var (
	ErrServerUnreachable = &ClientError{Type: ErrTypeConnection, Message: "sequence server is unreachable"}
	ErrTimeout           = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrSequenceNotFound  = &ClientError{Type: ErrTypeNotFound, Message: "sequence not found"}
)

// IsNotFound checks whether an error means the sequence does not exist.
func IsNotFound(err error) bool {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Type == ErrTypeNotFound
	}
	return false
}

// IsEncode checks whether an error happened while building the outgoing
// request, before anything reached the network.
func IsEncode(err error) bool {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Type == ErrTypeEncode
	}
	return false
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the Sequence API client.
type ClientConfig struct {
	// BaseURL is the server base URL (default: http://127.0.0.1:8080).
	// Explicit IPv4 avoids IPv6 resolution issues with localhost on Windows.
	BaseURL string

	// Timeout for non-streaming requests (default: 30s). Streaming
	// requests carry no client timeout; lifetime is the caller's context.
	Timeout time.Duration

	// ReadBufferSize is the per-read buffer for streaming bodies
	// (default: 4096).
	ReadBufferSize int
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:        "http://127.0.0.1:8080",
		Timeout:        30 * time.Second,
		ReadBufferSize: 4096,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to one Sequence API server. It is safe for concurrent use.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

// NewClient creates a client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a client with custom configuration, filling
// defaults for any zero values.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8080"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.ReadBufferSize == 0 {
		config.ReadBufferSize = 4096
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// BaseURL returns the configured server base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// =============================================================================
// MESSAGE AND SEQUENCE CRUD
// =============================================================================

// CreateMessage persists a message via POST /messages and returns its
// server-assigned ID.
func (c *Client) CreateMessage(ctx context.Context, req CreateMessageRequest) (int64, error) {
	var resp createMessageResponse
	if err := c.postJSON(ctx, "/messages", req, &resp); err != nil {
		return 0, err
	}
	return resp.MessageID, nil
}

// CreateSequence persists a sequence via POST /sequences and returns its
// server-assigned ID.
func (c *Client) CreateSequence(ctx context.Context, req CreateSequenceRequest) (int64, error) {
	var resp createSequenceResponse
	if err := c.postJSON(ctx, "/sequences", req, &resp); err != nil {
		return 0, err
	}
	return resp.SequenceID, nil
}

// GetSequence fetches the full detail of one sequence.
func (c *Client) GetSequence(ctx context.Context, id int64) (*SequenceDetail, error) {
	var detail SequenceDetail
	path := "/sequences/" + strconv.FormatInt(id, 10) + "/as-json"
	if err := c.getJSON(ctx, path, &detail); err != nil {
		return nil, err
	}
	if detail.SequenceID == 0 {
		detail.SequenceID = id
	}
	return &detail, nil
}

// ListRecent fetches recent sequences per the given query.
func (c *Client) ListRecent(ctx context.Context, q RecentQuery) ([]SequenceDetail, error) {
	vals := url.Values{}
	vals.Set("lookback", strconv.Itoa(q.Lookback))
	vals.Set("limit", strconv.Itoa(q.Limit))
	vals.Set("include_user_pinned", strconv.FormatBool(q.IncludeUserPinned))
	vals.Set("include_leaf_sequences", strconv.FormatBool(q.IncludeLeafSequences))
	vals.Set("include_all", strconv.FormatBool(q.IncludeAll))

	var list []SequenceDetail
	if err := c.getJSON(ctx, "/sequences/.recent/as-json?"+vals.Encode(), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Autoname asks the server to generate a short title for the sequence.
func (c *Client) Autoname(ctx context.Context, id int64, preferredModel string) (string, error) {
	vals := url.Values{}
	vals.Set("wait_for_response", "true")
	vals.Set("preferred_autonaming_model", preferredModel)

	path := "/sequences/" + strconv.FormatInt(id, 10) + "/autoname?" + vals.Encode()
	var resp autonameResponse
	if err := c.postJSON(ctx, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.Autoname, nil
}

// SetHumanDesc updates the sequence description.
func (c *Client) SetHumanDesc(ctx context.Context, id int64, value string) error {
	vals := url.Values{}
	vals.Set("value", value)
	path := "/sequences/" + strconv.FormatInt(id, 10) + "/human_desc?" + vals.Encode()
	return c.postJSON(ctx, path, nil, nil)
}

// SetUserPinned updates the sequence pinned flag.
func (c *Client) SetUserPinned(ctx context.Context, id int64, value bool) error {
	vals := url.Values{}
	vals.Set("value", strconv.FormatBool(value))
	path := "/sequences/" + strconv.FormatInt(id, 10) + "/user_pinned?" + vals.Encode()
	return c.postJSON(ctx, path, nil, nil)
}

// =============================================================================
// PLAIN JSON HELPERS
// =============================================================================

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			// Abort before anything reaches the network.
			return &ClientError{Type: ErrTypeEncode, Message: "failed to encode request body", Cause: err}
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, reader)
	if err != nil {
		return &ClientError{Type: ErrTypeEncode, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return &ClientError{Type: ErrTypeEncode, Message: "failed to create request", Cause: err}
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return &ClientError{Type: ErrTypeConnection, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrSequenceNotFound
	}
	if !statusOK(resp.StatusCode) {
		return errorFromBody(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// statusOK treats 2xx and 3xx as success, per the protocol contract.
func statusOK(code int) bool {
	return code >= 200 && code < 400
}

// errorFromBody builds a ClientError from a non-success response, using the
// server's error envelope when one is present.
func errorFromBody(resp *http.Response) error {
	var se serverError
	if err := json.NewDecoder(resp.Body).Decode(&se); err == nil && se.Error != "" {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: se.Error}
	}
	return &ClientError{
		Type:    ErrTypeInvalidResponse,
		Message: "unexpected status from server: " + resp.Status,
	}
}
