// Package httpclient provides the HTTP client used for Home Assistant API calls.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stacklok/hass-onboard/internal/versions"
)

const (
	// DefaultTimeout is used when no timeout is given
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize bounds the body read from a Home Assistant endpoint
	MaxResponseSize = 10 * 1024 * 1024

	maxErrorMessageBytes = 512
)

// Client fetches JSON documents
type Client interface {
	// Get fetches url and returns the body of a 2xx response
	Get(ctx context.Context, url string) ([]byte, error)
}

// DefaultClient implements Client on net/http
type DefaultClient struct {
	client    *http.Client
	userAgent string
}

// NewDefaultClient creates a client with the given timeout
func NewDefaultClient(timeout time.Duration) *DefaultClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return NewClient(&http.Client{Timeout: timeout})
}

// NewClient wraps an existing *http.Client, for example one with a custom transport
func NewClient(client *http.Client) *DefaultClient {
	return &DefaultClient{
		client:    client,
		userAgent: versions.UserAgent(),
	}
}

// Get implements Client
func (c *DefaultClient) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorMessageBytes))
		return nil, NewHTTPError(resp.StatusCode, url, string(msg))
	}

	if resp.ContentLength > MaxResponseSize {
		return nil, fmt.Errorf("response size %d exceeds maximum allowed size of %.2f MB",
			resp.ContentLength, float64(MaxResponseSize)/(1024*1024))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeds maximum allowed size of %.2f MB",
			float64(MaxResponseSize)/(1024*1024))
	}
	return body, nil
}
