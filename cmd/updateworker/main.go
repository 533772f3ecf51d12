// Command updateworker polls one monitored host per invocation (for a
// dispatcher or cron) or loops locally for interactive testing.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opswatch/updateworker/logger"
)

var verbosity int

var rootCmd = &cobra.Command{
	Use:   "updateworker",
	Short: "Polls one monitored node and updates its round-robin time series",
	Long: `updateworker connects to a single monitoring agent, negotiates
capabilities, enumerates its plugins, and persists samples to an
on-disk RRD store and optionally a Carbon relay.

Examples:
  updateworker run db1.example.org --config updateworker.toml
  updateworker serve --config updateworker.toml --interval 5m`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.InitializeAtLevel(logger.VerbosityToLevel(verbosity))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase output verbosity (-v, -vv, -vvv)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
