package ayon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// Event statuses used by the job protocol.
const (
	EventPending    = "pending"
	EventInProgress = "in_progress"
	EventFinished   = "finished"
	EventFailed     = "failed"
	EventAborted    = "aborted"
	EventRestarted  = "restarted"
)

// Event is one hub event stream record.
type Event struct {
	ID          string          `json:"id"`
	Hash        string          `json:"hash"`
	Topic       string          `json:"topic"`
	Project     string          `json:"project"`
	Sender      string          `json:"sender"`
	User        string          `json:"user"`
	DependsOn   string          `json:"dependsOn"`
	Status      string          `json:"status"`
	Description string          `json:"description"`
	Summary     json.RawMessage `json:"summary"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   string          `json:"createdAt"`
	UpdatedAt   string          `json:"updatedAt"`
}

// EnrollRequest asks the server for the next unprocessed source
// event, claiming it under a new target-topic job event.
type EnrollRequest struct {
	SourceTopic  string         `json:"sourceTopic"`
	TargetTopic  string         `json:"targetTopic"`
	Sender       string         `json:"sender"`
	Description  string         `json:"description,omitempty"`
	Sequential   bool           `json:"sequential"`
	Filter       map[string]any `json:"filter,omitempty"`
	MaxRetries   int            `json:"maxRetries,omitempty"`
	IgnoreSender bool           `json:"ignoreSenderTypes,omitempty"`
	Debug        bool           `json:"debug,omitempty"`
}

// EnrollResponse identifies the claimed job and the source event it
// depends on. A nil response (no content) means nothing is pending.
type EnrollResponse struct {
	ID        string `json:"id"`
	DependsOn string `json:"dependsOn"`
	Hash      string `json:"hash"`
	Status    string `json:"status"`
}

// Enroll claims the next pending source event. It returns nil when
// the stream is drained.
func (c *Client) Enroll(ctx context.Context, req EnrollRequest) (*EnrollResponse, error) {
	var out EnrollResponse
	if err := c.do(ctx, http.MethodPost, "/api/enroll", req, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, nil
	}
	return &out, nil
}

// GetEvent fetches one event by id.
func (c *Client) GetEvent(ctx context.Context, id string) (*Event, error) {
	var out Event
	if err := c.do(ctx, http.MethodGet, "/api/events/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateEvent patches an event's mutable fields (status,
// description, payload, retries).
func (c *Client) UpdateEvent(ctx context.Context, id string, patch map[string]any) error {
	return c.do(ctx, http.MethodPatch, "/api/events/"+url.PathEscape(id), patch, nil)
}

// DispatchRequest creates a new event on the stream.
type DispatchRequest struct {
	Topic       string         `json:"topic"`
	Hash        string         `json:"hash,omitempty"`
	Project     string         `json:"project,omitempty"`
	Sender      string         `json:"sender,omitempty"`
	DependsOn   string         `json:"dependsOn,omitempty"`
	Description string         `json:"description,omitempty"`
	Summary     map[string]any `json:"summary,omitempty"`
	Payload     any            `json:"payload,omitempty"`
	Finished    bool           `json:"finished"`
	Store       bool           `json:"store"`
}

// DispatchEvent posts a new event and returns its id. Duplicate
// hashes are rejected by the server, which keeps at-least-once relays
// idempotent.
func (c *Client) DispatchEvent(ctx context.Context, req DispatchRequest) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/events", req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}
