package ayon

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Activity is one activity-feed record. Comment activities carry the
// comment body; Data holds sync bookkeeping such as the mirrored
// tracker note id.
type Activity struct {
	ID           string         `json:"activityId"`
	Type         string         `json:"activityType"`
	Body         string         `json:"body"`
	EntityID     string         `json:"entityId"`
	EntityType   string         `json:"entityType"`
	Author       string         `json:"author"`
	CreatedAt    string         `json:"createdAt"`
	ActivityData map[string]any `json:"activityData"`
}

// ListComments fetches comment activities for a project created
// after the given watermark (RFC3339, empty for all).
func (c *Client) ListComments(ctx context.Context, project, after string) ([]Activity, error) {
	path := fmt.Sprintf("/api/projects/%s/activities?activityTypes=comment", url.PathEscape(project))
	if after != "" {
		path += "&changedAfter=" + url.QueryEscape(after)
	}
	var out struct {
		Activities []Activity `json:"activities"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Activities, nil
}

// UpdateActivityData merges keys into an activity's data blob.
func (c *Client) UpdateActivityData(ctx context.Context, project, activityID string, data map[string]any) error {
	path := fmt.Sprintf("/api/projects/%s/activities/%s",
		url.PathEscape(project), url.PathEscape(activityID))
	return c.do(ctx, http.MethodPatch, path, map[string]any{"data": data}, nil)
}
