package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"pivot-itm-bot/internal/dashboard"
	"pivot-itm-bot/internal/logger"
)

// Client reads a running bot's dashboard API.
type Client struct {
	client     *resty.Client
	useLogging bool
}

// ClientOption configures the API client
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.client.SetTimeout(timeout)
	}
}

// WithBaseURL sets the base URL for all requests. A bare host:port gets
// an http:// scheme.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.client.SetBaseURL(normalizeBaseURL(baseURL))
	}
}

// WithHeader sets a default header for all requests
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.client.SetHeader(key, value)
	}
}

// WithLogging enables logging for the API client
func WithLogging(enabled bool) ClientOption {
	return func(c *Client) {
		c.useLogging = enabled
	}
}

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     2 * time.Second,
	}
}

// WithRetry replaces the retry policy. Transport errors and 5xx responses
// are retried with jittered exponential backoff.
func WithRetry(rc *RetryConfig) ClientOption {
	return func(c *Client) {
		c.applyRetry(rc)
	}
}

func (c *Client) applyRetry(rc *RetryConfig) {
	if rc == nil || rc.MaxAttempts < 1 {
		rc = &RetryConfig{MaxAttempts: 1}
	}
	c.client.SetRetryCount(rc.MaxAttempts - 1)
	if rc.InitialWait > 0 {
		c.client.SetRetryWaitTime(rc.InitialWait)
	}
	if rc.MaxWait > 0 {
		c.client.SetRetryMaxWaitTime(rc.MaxWait)
	}
}

func NewClient(opts ...ClientOption) *Client {
	rc := resty.New().
		SetBaseURL("http://127.0.0.1:5000").
		SetTimeout(5*time.Second).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})

	client := &Client{client: rc}
	client.applyRetry(DefaultRetryConfig())

	for _, opt := range opts {
		opt(client)
	}

	return client
}

func normalizeBaseURL(baseURL string) string {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return strings.TrimRight(baseURL, "/")
}

// getJSON fetches path and decodes the body into v.
func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.client.R().SetContext(ctx).Get(path)
	if err != nil {
		if c.useLogging {
			logger.Warn(ctx, "HTTP request failed", "path", path, "error", err)
		}
		return fmt.Errorf("HTTP request failed: %w", err)
	}

	if c.useLogging {
		logger.Debug(ctx, "HTTP Response",
			"path", path,
			"status", resp.StatusCode(),
			"duration", resp.Time(),
			"attempts", resp.Request.Attempt)
	}

	if resp.IsError() {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

// State fetches the current dashboard snapshot.
func (c *Client) State(ctx context.Context) (dashboard.Snapshot, error) {
	var snap dashboard.Snapshot
	err := c.getJSON(ctx, "/api/state", &snap)
	return snap, err
}

// Health reports the status string served at /api/health.
func (c *Client) Health(ctx context.Context) (string, error) {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, "/api/health", &body); err != nil {
		return "", err
	}
	return body.Status, nil
}
