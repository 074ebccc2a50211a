// Package ftrack is a client for the tracker's JSON batch API. A
// Session issues query expressions, records create/update/delete
// operations, and commits them in bounded batches the way the server
// expects.
package ftrack

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

// ErrPermission is returned when the server rejects a call for
// missing API permissions.
var ErrPermission = errors.New("ftrack: permission denied")

// ServerError is any non-permission failure reported by the tracker
// server, either as an HTTP status or as an exception payload.
type ServerError struct {
	Status    int
	Exception string
	Content   string
}

func (e *ServerError) Error() string {
	if e.Exception != "" {
		return fmt.Sprintf("ftrack: server error %s: %s", e.Exception, e.Content)
	}
	return fmt.Sprintf("ftrack: server returned status %d", e.Status)
}

// CommitChunkSize bounds how many recorded operations go into one
// commit call.
const CommitChunkSize = 500

// Config holds the connection settings for a Session.
type Config struct {
	// ServerURL is the tracker server base URL, without the /api
	// suffix.
	ServerURL string

	// APIKey authenticates the session.
	APIKey string

	// Username is the account the API key belongs to.
	Username string

	// Timeout bounds a single HTTP call. Zero means 60s.
	Timeout time.Duration
}

// Validate checks that the config can open a session.
func (c Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("ftrack: server URL is required")
	}
	if c.APIKey == "" {
		return errors.New("ftrack: API key is required")
	}
	if c.Username == "" {
		return errors.New("ftrack: username is required")
	}
	return nil
}

// Session is a tracker API session. Queries go out immediately;
// mutations are recorded and sent on Commit. A Session is not safe
// for concurrent use.
type Session struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
	ops    []map[string]any
}

// NewSession opens a session against the tracker server.
func NewSession(cfg Config, logger *slog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

type callResult struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// call posts a batch of actions to the /api endpoint and returns the
// per-action results.
func (s *Session) call(ctx context.Context, actions []map[string]any) ([]callResult, error) {
	body, err := json.Marshal(actions)
	if err != nil {
		return nil, fmt.Errorf("encode call batch: %w", err)
	}
	url := strings.TrimRight(s.cfg.ServerURL, "/") + "/api"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ftrack-Api-Key", s.cfg.APIKey)
	req.Header.Set("Ftrack-User", s.cfg.Username)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call tracker server: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tracker response: %w", err)
	}
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrPermission
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ServerError{Status: resp.StatusCode}
	}

	// The server signals failure inside a 200 response as an
	// exception object instead of a result array.
	var exc struct {
		Exception string `json:"exception"`
		Content   string `json:"content"`
	}
	if err := json.Unmarshal(raw, &exc); err == nil && exc.Exception != "" {
		if strings.Contains(exc.Exception, "Permission") {
			return nil, fmt.Errorf("%w: %s", ErrPermission, exc.Content)
		}
		return nil, &ServerError{Exception: exc.Exception, Content: exc.Content}
	}

	var results []callResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("decode tracker response: %w", err)
	}
	return results, nil
}

// queryRaw runs one query expression and returns the raw result rows.
func (s *Session) queryRaw(ctx context.Context, expression string) (json.RawMessage, error) {
	results, err := s.call(ctx, []map[string]any{{
		"action":     "query",
		"expression": expression,
	}})
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("expected 1 query result, got %d", len(results))
	}
	return results[0].Data, nil
}

// query runs one expression and decodes its rows into T.
func query[T any](ctx context.Context, s *Session, expression string) ([]T, error) {
	data, err := s.queryRaw(ctx, expression)
	if err != nil {
		return nil, err
	}
	var rows []T
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode query rows: %w", err)
	}
	return rows, nil
}

// Create records a create operation for the next Commit.
func (s *Session) Create(entityType string, data map[string]any) {
	s.ops = append(s.ops, map[string]any{
		"action":      "create",
		"entity_type": entityType,
		"entity_data": data,
	})
}

// Update records an update operation for the next Commit. key is the
// entity's primary key, in declaration order for compound keys.
func (s *Session) Update(entityType string, key []string, data map[string]any) {
	s.ops = append(s.ops, map[string]any{
		"action":      "update",
		"entity_type": entityType,
		"entity_key":  key,
		"entity_data": data,
	})
}

// Delete records a delete operation for the next Commit.
func (s *Session) Delete(entityType string, key []string) {
	s.ops = append(s.ops, map[string]any{
		"action":      "delete",
		"entity_type": entityType,
		"entity_key":  key,
	})
}

// PendingOperations reports how many recorded operations await
// Commit.
func (s *Session) PendingOperations() int {
	return len(s.ops)
}

// Rollback discards all recorded operations.
func (s *Session) Rollback() {
	s.ops = nil
}

// Commit sends recorded operations in chunks of CommitChunkSize. On
// failure the unsent operations stay recorded so the caller can retry
// or roll back.
func (s *Session) Commit(ctx context.Context) error {
	for len(s.ops) > 0 {
		chunk := s.ops
		if len(chunk) > CommitChunkSize {
			chunk = chunk[:CommitChunkSize]
		}
		if _, err := s.call(ctx, chunk); err != nil {
			return fmt.Errorf("commit %d operations: %w", len(chunk), err)
		}
		s.ops = s.ops[len(chunk):]
	}
	s.ops = nil
	return nil
}
