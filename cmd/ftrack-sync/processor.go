package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ynput/ayon-ftrack/internal/ayon"
	"github.com/ynput/ayon-ftrack/internal/events"
	"github.com/ynput/ayon-ftrack/internal/leech"
	"github.com/ynput/ayon-ftrack/internal/sync"
	"github.com/ynput/ayon-ftrack/internal/worker"
)

func newProcessorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "processor",
		Short: "Apply relayed tracker events to the hub",
		Long: `Processor consumes tracker events previously relayed into the hub
event stream by the leecher, classifies them, and applies hierarchy,
attribute, and assignment changes to hub projects. Switching a
project's automatic synchronization on triggers a full pull.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcessor(cmd.Context())
		},
	}
}

func runProcessor(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, true)
	if err != nil {
		return err
	}
	defer rt.close()

	if !rt.settings.Sync.Enabled {
		return fmt.Errorf("synchronization is disabled in the addon settings")
	}

	handler := func(ctx context.Context, source *ayon.Event) error {
		var wrapper struct {
			Topic string                  `json:"topic"`
			Data  events.TrackerEventData `json:"data"`
		}
		if len(source.Payload) > 0 {
			if err := json.Unmarshal(source.Payload, &wrapper); err != nil {
				return fmt.Errorf("decode relayed tracker event: %w", err)
			}
		}
		cls := events.ClassifyTracker(wrapper.Data)
		if cls.Empty() {
			return nil
		}
		processor := sync.NewProcessor(rt.client, rt.session, rt.currentMapping(), rt.logger)
		if processor.NeedsFullSync(cls) {
			report, err := processor.RunFullSync(ctx, cls.AutoSyncProject)
			if report != nil && !report.Empty() {
				rt.logger.Warn("full sync finished with conflicts", "report", report.Summary())
			}
			return err
		}
		return processor.ProcessEvent(ctx, cls)
	}

	w, err := worker.New(worker.Config{
		Client:      rt.client,
		Journal:     rt.ledger,
		SourceTopic: leech.RelayTopic,
		TargetTopic: "ftrack.sync",
		Sender:      rt.cfg.Sender,
		Sequential:  true,
		Handler:     handler,
		Logger:      rt.logger,
	})
	if err != nil {
		return err
	}
	rt.logger.Info("processor starting")
	err = w.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}
