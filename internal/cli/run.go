package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"comment_notifier/internal/scheduler"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Sync now and then on the configured schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(setupLogger("info"))
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := scheduler.ParseSchedule(a.cfg.Sync.Schedule, a.cfg.Sync.Interval)
			if err != nil {
				return err
			}

			syncService, err := a.newSyncService()
			if err != nil {
				return err
			}

			a.logger.Info("starting comment notifier",
				"schedule", a.cfg.Sync.Schedule,
				"interval", a.cfg.Sync.Interval,
				"run_timeout", a.cfg.Sync.RunTimeout,
			)

			err = scheduler.NewScheduler(syncService, sched, a.cfg.Sync.RunTimeout, a.logger).Start(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("scheduler: %w", err)
			}
			return nil
		},
	}
}
