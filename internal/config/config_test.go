package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ynput/ayon-ftrack/internal/mapping"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{
		ServerURL:    "https://hub.example.com",
		APIKey:       "key",
		AddonName:    "ftrack",
		AddonVersion: "1.0.0",
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing server url", mutate: func(c *Config) { c.ServerURL = "" }, errMsg: "server_url"},
		{name: "missing api key", mutate: func(c *Config) { c.APIKey = "" }, errMsg: "api_key"},
		{name: "missing addon name", mutate: func(c *Config) { c.AddonName = "" }, errMsg: "addon_name"},
		{name: "missing addon version", mutate: func(c *Config) { c.AddonVersion = "" }, errMsg: "addon_version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("Validate() err = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() err = %v, want it to mention %q", err, tt.errMsg)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ftrack-sync.yaml")
	content := `
server_url: https://hub.example.com
api_key: secret
journal_path: /var/lib/ftrack-sync/journal.db
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != "https://hub.example.com" || cfg.APIKey != "secret" {
		t.Errorf("loaded connection = %q/%q", cfg.ServerURL, cfg.APIKey)
	}
	if cfg.JournalPath != "/var/lib/ftrack-sync/journal.db" {
		t.Errorf("JournalPath = %q", cfg.JournalPath)
	}
	// Defaults fill what the file omits.
	if cfg.AddonName != "ftrack" || cfg.Sender != "ftrack-sync" {
		t.Errorf("defaults = %q/%q, want ftrack/ftrack-sync", cfg.AddonName, cfg.Sender)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load with missing explicit file err = nil, want error")
	}
}

func TestLoadMappingOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mapping.yaml")
	content := `
enabled: true
items:
  - hub: fps
    tracker: [fps]
  - hub: resolutionWidth
    tracker: [res_w, resolution_width]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadMappingOverride(path)
	if err != nil {
		t.Fatalf("LoadMappingOverride: %v", err)
	}
	want := mapping.MappingSettings{
		Enabled: true,
		Items: []mapping.MappingItem{
			{HubName: "fps", TrackerNames: []string{"fps"}},
			{HubName: "resolutionWidth", TrackerNames: []string{"res_w", "resolution_width"}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadMappingOverride() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMappingOverrideErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		missing bool
	}{
		{name: "missing file", missing: true},
		{name: "malformed yaml", content: "enabled: [broken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "mapping.yaml")
			if !tt.missing {
				if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			if _, err := LoadMappingOverride(path); err == nil {
				t.Error("LoadMappingOverride err = nil, want error")
			}
		})
	}
}
