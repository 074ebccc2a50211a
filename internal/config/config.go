// Package config loads the worker configuration: a YAML file plus
// AYON_-prefixed environment variables, and an optional hot-reloaded
// attribute-mapping override file.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is everything a worker binary needs to start.
type Config struct {
	// Hub connection.
	ServerURL string `mapstructure:"server_url"`
	APIKey    string `mapstructure:"api_key"`

	// Addon identity, used for settings lookup and event sender
	// tagging.
	AddonName    string `mapstructure:"addon_name"`
	AddonVersion string `mapstructure:"addon_version"`
	Sender       string `mapstructure:"sender"`

	// Local state.
	JournalPath string `mapstructure:"journal_path"`
	LogPath     string `mapstructure:"log_path"`

	// MappingFile optionally overrides the server-side attribute
	// mapping with a local YAML file, hot-reloaded while running.
	MappingFile string `mapstructure:"mapping_file"`
}

// Validate checks the fields no worker can run without.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("config: server_url is required (AYON_SERVER_URL)")
	}
	if c.APIKey == "" {
		return errors.New("config: api_key is required (AYON_API_KEY)")
	}
	if c.AddonName == "" {
		return errors.New("config: addon_name is required")
	}
	if c.AddonVersion == "" {
		return errors.New("config: addon_version is required")
	}
	return nil
}

// Load reads ftrack-sync.yaml (searched in the working directory and
// /etc/ftrack-sync) and the environment. Environment variables use
// the AYON_ prefix: AYON_SERVER_URL, AYON_API_KEY, and so on. A
// missing config file is fine; missing mandatory values are not.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("ftrack-sync")
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/ftrack-sync")
	}
	v.SetEnvPrefix("AYON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addon_name", "ftrack")
	v.SetDefault("addon_version", "1.0.0")
	v.SetDefault("sender", "ftrack-sync")
	v.SetDefault("journal_path", "ftrack-sync.db")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
