// Package ayon is a REST client for the hub server: project
// hierarchy, batched entity operations, the event stream used by the
// workers, users, activities, and addon settings.
package ayon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("ayon: not found")

// RequestError is any other non-2xx response, with the server's
// detail message when one was sent.
type RequestError struct {
	Status int
	Detail string
}

func (e *RequestError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("ayon: request failed with status %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("ayon: request failed with status %d", e.Status)
}

// Config holds the connection settings for a Client.
type Config struct {
	// ServerURL is the hub server base URL.
	ServerURL string

	// APIKey is the service user's API key.
	APIKey string

	// Timeout bounds a single HTTP call. Zero means 60s. Long-poll
	// calls extend it by their own poll window.
	Timeout time.Duration
}

// Validate checks that the config can open a client.
func (c Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("ayon: server URL is required")
	}
	if c.APIKey == "" {
		return errors.New("ayon: API key is required")
	}
	return nil
}

// Client is a hub server API client. It is safe for concurrent use.
type Client struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// NewClient opens a client against the hub server.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

// do performs one JSON request. A non-nil out receives the decoded
// response body.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	url := strings.TrimRight(c.cfg.ServerURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call hub server: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read hub response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var detail struct {
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(raw, &detail)
		return &RequestError{Status: resp.StatusCode, Detail: detail.Detail}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode hub response: %w", err)
		}
	}
	return nil
}
