// Package cli defines the qx-algo command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "qx-algo",
	Short: "Session-range futures trader with a monitoring dashboard",
	Long: `qx-algo trades the ODR/RDR/ADR session-range strategy on MES futures
through the TopstepX API and serves a mobile monitoring dashboard.

Commands:
  run       - start the trader and dashboard (default deployment entrypoint)
  backtest  - replay historical bars through the strategy
  version   - print build information`,
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}
