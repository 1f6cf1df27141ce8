// Package cli defines the cobra command tree for the comment notifier.
package cli

import (
	"github.com/spf13/cobra"
)

var flagConfig string

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "notifier",
		Short:         "Email new and edited comments on your LBRY claims",
		Long:          "Walks every account, claim and comment known to a local LBRY SDK, remembers what it has seen and sends a notification for each new or edited comment.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "config.yaml", "path to config file")

	root.AddCommand(
		newRunCmd(),
		newSyncCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)

	return root
}
