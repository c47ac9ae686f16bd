// Command lockupctl is the operator tool: schedule checks, migrations and
// whitelist maintenance without going through the API.
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "lockupctl",
		Short:         "Lockup ledger operator tool",
		SilenceUsage: true,
	}
	root.AddCommand(scheduleCommand(), accountCommand(), migrateCommand(), whitelistCommand())

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
