// Command notifier watches a LBRY SDK for new and edited comments.
package main

import (
	"fmt"
	"os"

	"comment_notifier/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
