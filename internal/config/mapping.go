package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/ynput/ayon-ftrack/internal/mapping"
)

// LoadMappingOverride parses a local attribute-mapping YAML file:
//
//	enabled: true
//	items:
//	  - hub: fps
//	    tracker: [fps]
func LoadMappingOverride(path string) (mapping.MappingSettings, error) {
	var out mapping.MappingSettings
	raw, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("read mapping override: %w", err)
	}
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("parse mapping override: %w", err)
	}
	return out, nil
}

// WatchMappingOverride watches the override file and calls onChange
// with each successfully parsed revision. The watch sits on the
// file's directory so editors that replace the file atomically keep
// being observed. The returned stop function releases the watcher.
func WatchMappingOverride(path string, logger *slog.Logger, onChange func(mapping.MappingSettings)) (stop func(), err error) {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create mapping watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(path)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				settings, err := LoadMappingOverride(target)
				if err != nil {
					logger.Warn("mapping override reload failed", "error", err)
					continue
				}
				logger.Info("mapping override reloaded", "path", target)
				onChange(settings)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("mapping watcher error", "error", err)
			}
		}
	}()
	return func() {
		close(done)
		watcher.Close()
	}, nil
}
