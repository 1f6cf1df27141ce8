package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"comment_notifier/internal/storage"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run a single sync and exit",
		Long:  "Runs one sync pass. The command fails when the pass ends in a fatal error; pages that could not be fetched are reported but do not fail it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(setupLogger("info"))
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			syncService, err := a.newSyncService()
			if err != nil {
				return err
			}

			if a.cfg.Sync.RunTimeout > 0 {
				var cancelRun context.CancelFunc
				ctx, cancelRun = context.WithTimeout(ctx, a.cfg.Sync.RunTimeout)
				defer cancelRun()
			}

			stats, err := syncService.Sync(ctx)
			if err != nil {
				return err
			}

			stored, err := storage.NewCommentStore(a.db).Count(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "fetched %d, new %d, updated %d, notified %d, failed pages %d, stored %d\n",
				stats.Fetched, stats.New, stats.Updated, stats.Notified, stats.FailedPages, stored)
			return nil
		},
	}
}
