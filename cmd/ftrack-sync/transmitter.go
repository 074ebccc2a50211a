package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ynput/ayon-ftrack/internal/ayon"
	"github.com/ynput/ayon-ftrack/internal/sync"
	"github.com/ynput/ayon-ftrack/internal/worker"
)

func newTransmitterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transmitter",
		Short: "Propagate hub entity changes back to the tracker",
		Long: `Transmitter consumes hub entity events and mirrors status,
assignee, attribute, and name changes onto the tracker. On an
interval it also mirrors hub comments as tracker notes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransmitter(cmd.Context())
		},
	}
}

func runTransmitter(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, true)
	if err != nil {
		return err
	}
	defer rt.close()

	handler := func(ctx context.Context, source *ayon.Event) error {
		transmitter := sync.NewTransmitter(rt.client, rt.session, rt.currentMapping(), rt.logger)
		return transmitter.HandleEvent(ctx, source)
	}
	w, err := worker.New(worker.Config{
		Client:      rt.client,
		Journal:     rt.ledger,
		SourceTopic: "entity.*",
		TargetTopic: "ftrack.push",
		Sender:      rt.cfg.Sender,
		Handler:     handler,
		Logger:      rt.logger,
	})
	if err != nil {
		return err
	}

	scheduler := worker.NewScheduler(rt.logger)
	if rt.settings.Comments.Enabled {
		if err := scheduler.Add(worker.Task{
			Name:     "comment-mirror",
			Interval: rt.settings.CommentInterval(),
			Run: func(ctx context.Context) error {
				return mirrorComments(ctx, rt)
			},
		}); err != nil {
			return err
		}
	}
	if err := scheduler.Add(worker.Task{
		Name:     "settings-refresh",
		Interval: 10 * time.Minute,
		Run: func(ctx context.Context) error {
			next, err := rt.client.GetAddonSettings(ctx, rt.cfg.AddonName, rt.cfg.AddonVersion)
			if err != nil {
				return err
			}
			rt.settings = next
			scheduler.Rearm("comment-mirror", next.CommentInterval())
			return nil
		},
	}); err != nil {
		return err
	}
	if err := scheduler.Add(worker.Task{
		Name:     "journal-prune",
		Interval: 24 * time.Hour,
		Run: func(ctx context.Context) error {
			pruned, err := rt.ledger.Prune(ctx, time.Now().AddDate(0, 0, -14))
			if err == nil && pruned > 0 {
				rt.logger.Info("journal pruned", "events", pruned)
			}
			return err
		},
	}); err != nil {
		return err
	}

	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	rt.logger.Info("transmitter starting")
	err = w.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

// mirrorComments runs one comment-mirror pass over every active hub
// project, persisting a per-project watermark in the journal.
func mirrorComments(ctx context.Context, rt *runtime) error {
	projects, err := rt.client.ListProjectNames(ctx)
	if err != nil {
		return err
	}
	transmitter := sync.NewTransmitter(rt.client, rt.session, rt.currentMapping(), rt.logger)
	for _, project := range projects {
		key := "comments:" + project
		watermark, err := rt.ledger.Watermark(ctx, key)
		if err != nil {
			return err
		}
		next, err := transmitter.SyncComments(ctx, project, watermark)
		if err != nil {
			rt.logger.Warn("comment mirror failed", "project", project, "error", err)
			continue
		}
		if next != watermark {
			if err := rt.ledger.SetWatermark(ctx, key, next); err != nil {
				return err
			}
		}
	}
	return nil
}
