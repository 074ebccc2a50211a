package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ynput/ayon-ftrack/internal/ftrack"
	"github.com/ynput/ayon-ftrack/internal/leech"
)

func newLeecherCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leecher",
		Short: "Relay tracker events into the hub event stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeecher(cmd.Context())
		},
	}
}

func runLeecher(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, false)
	if err != nil {
		return err
	}
	defer rt.close()

	leecher, err := leech.New(rt.client, ftrack.Config{
		ServerURL: rt.settings.Tracker.ServerURL,
		APIKey:    rt.settings.Tracker.APIKey,
		Username:  rt.settings.Tracker.Username,
	}, rt.cfg.Sender, rt.logger)
	if err != nil {
		return err
	}
	rt.logger.Info("leecher starting")
	err = leecher.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}
