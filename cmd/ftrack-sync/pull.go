package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ynput/ayon-ftrack/internal/sync"
)

func newPullCmd() *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Run one full project pull from the tracker",
		Long: `Pull synchronizes the complete hierarchy of one project from the
tracker into the hub: project configuration, folders, tasks,
assignees, and attributes. Conflicts are printed as a report.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPull(cmd.Context(), project)
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project name (required)")
	cmd.MarkFlagRequired("project")
	return cmd
}

func runPull(parent context.Context, project string) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, false)
	if err != nil {
		return err
	}
	defer rt.close()

	fs := sync.NewFullSync(rt.client, rt.session, project, rt.currentMapping(), rt.logger)
	report, err := fs.Run(ctx)
	if err != nil {
		var missing *sync.MissingAttributesError
		if errors.As(err, &missing) {
			return fmt.Errorf("%w (create them on the tracker first)", err)
		}
		return err
	}
	fmt.Println(report.Summary())
	stats := fs.Stats()
	fmt.Printf("matched %d, created %d, updated %d, deactivated %d, removed %d, recreated on tracker %d\n",
		stats.Matched, stats.Created, stats.Updated, stats.Deactivated, stats.Removed, stats.Recreated)
	return nil
}
