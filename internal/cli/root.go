package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "setuser",
	Short: "Session-scoped identity impersonation with a tamper-evident audit trail",
	Long:  "Lets a session switch to another principal for a bounded window and back again.\nEvery transition is logged to a hash-chained audit trail, statement logging is\nforced to maximum while impersonating, and privileged statement classes can be\nblocked during the window.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
