package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantex/qx-algo/internal/backtest"
	"github.com/quantex/qx-algo/pkg/config"
	"github.com/quantex/qx-algo/pkg/logger"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay historical bars through the strategy",
	Long: `Replay a CSV of historical 5-minute bars through the session-range
strategy and print the per-trade results.

The CSV needs a start,open,high,low,close,volume header. Timestamps may be
RFC3339 or "2006-01-02 15:04:05" Eastern.

Example:
  qx-algo backtest --bars mes_5m.csv`,
	RunE: runBacktest,
}

var backtestBarsPath string

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&backtestBarsPath, "bars", "b", "", "path to bars CSV (required)")
	_ = backtestCmd.MarkFlagRequired("bars")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel, "")
	defer logger.Sync()

	bars, err := backtest.LoadBars(backtestBarsPath)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}
	fmt.Printf("Loaded %d bars from %s\n\n", len(bars), backtestBarsPath)

	runner := backtest.NewRunner(cfg, logger.L())
	report, err := runner.Run(bars)
	if err != nil {
		return err
	}

	for _, res := range report.Results {
		if !res.Filled {
			fmt.Printf("%s %s %-7s  no entry (entry %.2f never filled)\n",
				res.Date, res.Session.Upper(), res.Bias, res.Entry)
			continue
		}
		fmt.Printf("%s %s %-7s  entry %.2f stop %.2f tp %.2f size %d  %-20s pnl $%.2f\n",
			res.Date, res.Session.Upper(), res.Bias,
			res.Entry, res.Stop, res.TakeProfit, res.Contracts,
			res.ExitReason, res.PnL)
	}

	fmt.Printf("\nTrades: %d  Wins: %d  Losses: %d  No entry: %d\n",
		report.Trades, report.Wins, report.Losses, report.NoEntry)
	fmt.Printf("Total P&L: $%.2f  Final balance: $%.2f\n",
		report.TotalPnL, report.FinalBalance)
	return nil
}
