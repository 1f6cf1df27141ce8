package cli

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(setupLogger("info"))
			defer cancel()

			// Opening the database applies pending migrations.
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			a.logger.Info("database is up to date", "driver", a.cfg.Database.Driver)
			return nil
		},
	}
}
