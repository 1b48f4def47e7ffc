// cmd/backtest runs signal backtests from the command line, imports bar
// history into SQLite and serves the asynchronous job API.
//
// Usage:
//
//	backtest run --csv-dir=data --symbol=XAUUSD --days=180 --out=results
//	backtest import --csv=data/XAUUSD.csv --symbol=XAUUSD --db=data/backtest.db
//	backtest serve
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appconfig "trading-backtestv1/config"
	"trading-backtestv1/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(appconfig.Load()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(cfg *appconfig.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "backtest",
		Short:         "Signal backtesting engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init("backtest", logger.ParseLevel(cfg.LogLevel))
		},
	}
	root.AddCommand(newRunCmd(cfg), newServeCmd(cfg), newImportCmd(cfg))
	return root
}
