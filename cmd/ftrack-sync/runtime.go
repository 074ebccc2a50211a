package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/ynput/ayon-ftrack/internal/ayon"
	"github.com/ynput/ayon-ftrack/internal/config"
	"github.com/ynput/ayon-ftrack/internal/ftrack"
	"github.com/ynput/ayon-ftrack/internal/journal"
	"github.com/ynput/ayon-ftrack/internal/mapping"
)

// runtime wires the pieces every service command shares: config,
// logger, both API clients, the addon settings, the journal, and the
// live attribute-mapping settings.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   *ayon.Client
	session  *ftrack.Session
	settings *ayon.AddonSettings
	ledger   *journal.Journal

	mappingSettings atomic.Pointer[mapping.MappingSettings]
	stopWatch       func()
}

// newRuntime loads config, connects both clients, fetches the addon
// settings, and opens the journal when asked for.
func newRuntime(ctx context.Context, withJournal bool) (*runtime, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.LogPath)

	client, err := ayon.NewClient(ayon.Config{
		ServerURL: cfg.ServerURL,
		APIKey:    cfg.APIKey,
	}, logger)
	if err != nil {
		return nil, err
	}

	settings, err := client.GetAddonSettings(ctx, cfg.AddonName, cfg.AddonVersion)
	if err != nil {
		return nil, fmt.Errorf("fetch addon settings: %w", err)
	}

	session, err := ftrack.NewSession(ftrack.Config{
		ServerURL: settings.Tracker.ServerURL,
		APIKey:    settings.Tracker.APIKey,
		Username:  settings.Tracker.Username,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open tracker session: %w", err)
	}

	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		session:  session,
		settings: settings,
	}
	rt.initMapping()

	if withJournal {
		rt.ledger, err = journal.Open(cfg.JournalPath)
		if err != nil {
			return nil, err
		}
	}
	return rt, nil
}

// initMapping seeds the attribute-mapping settings from the addon
// settings, or from the local override file when configured, and
// keeps the override hot-reloaded.
func (rt *runtime) initMapping() {
	fromSettings := mapping.MappingSettings{
		Enabled: rt.settings.Sync.AttributesMapping.Enabled,
	}
	for _, item := range rt.settings.Sync.AttributesMapping.Mapping {
		fromSettings.Items = append(fromSettings.Items, mapping.MappingItem{
			HubName:      item.Name,
			TrackerNames: item.Attr,
		})
	}
	rt.mappingSettings.Store(&fromSettings)

	if rt.cfg.MappingFile == "" {
		return
	}
	if override, err := config.LoadMappingOverride(rt.cfg.MappingFile); err != nil {
		rt.logger.Warn("mapping override unreadable, using addon settings", "error", err)
	} else {
		rt.mappingSettings.Store(&override)
	}
	stop, err := config.WatchMappingOverride(rt.cfg.MappingFile, rt.logger,
		func(next mapping.MappingSettings) {
			rt.mappingSettings.Store(&next)
		})
	if err != nil {
		rt.logger.Warn("mapping override watch failed", "error", err)
		return
	}
	rt.stopWatch = stop
}

// currentMapping returns the live attribute-mapping settings.
func (rt *runtime) currentMapping() mapping.MappingSettings {
	return *rt.mappingSettings.Load()
}

// close releases the journal and the override watcher.
func (rt *runtime) close() {
	if rt.stopWatch != nil {
		rt.stopWatch()
	}
	if rt.ledger != nil {
		if err := rt.ledger.Close(); err != nil {
			rt.logger.Warn("journal close failed", "error", err)
		}
	}
}
