package ayon

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// AddonSettings is the addon's server-side configuration relevant to
// the sync workers.
type AddonSettings struct {
	Tracker struct {
		ServerURL string `json:"ftrack_server"`
		APIKey    string `json:"api_key"`
		Username  string `json:"username"`
	} `json:"service_settings"`

	Sync struct {
		Enabled           bool `json:"enabled"`
		AttributesMapping struct {
			Enabled bool `json:"enabled"`
			Mapping []struct {
				Name string   `json:"name"`
				Attr []string `json:"attr"`
			} `json:"mapping"`
		} `json:"attributes_mapping"`
	} `json:"sync"`

	Comments struct {
		Enabled         bool `json:"enabled"`
		IntervalSeconds int  `json:"interval"`
	} `json:"comments_sync"`
}

// CommentInterval returns the comment-sync interval with a sane
// floor.
func (s *AddonSettings) CommentInterval() time.Duration {
	if s.Comments.IntervalSeconds < 10 {
		return 60 * time.Second
	}
	return time.Duration(s.Comments.IntervalSeconds) * time.Second
}

// GetAddonSettings fetches the addon settings for one addon version.
func (c *Client) GetAddonSettings(ctx context.Context, addon, version string) (*AddonSettings, error) {
	path := fmt.Sprintf("/api/addons/%s/%s/settings",
		url.PathEscape(addon), url.PathEscape(version))
	var out AddonSettings
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
