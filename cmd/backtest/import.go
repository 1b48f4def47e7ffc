package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	appconfig "trading-backtestv1/config"
	"trading-backtestv1/internal/marketdata"
	"trading-backtestv1/internal/store/sqlite"
)

func newImportCmd(cfg *appconfig.Config) *cobra.Command {
	var csvPath, symbol, dbPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load bars from a CSV export into SQLite",
		RunE: func(cmd *cobra.Command, args []string) error {
			if csvPath == "" || strings.TrimSpace(symbol) == "" {
				return errors.New("--csv and --symbol are required")
			}
			bars, err := marketdata.ReadCSVFile(csvPath)
			if err != nil {
				return err
			}
			store, err := sqlite.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.InsertBars(cmd.Context(), symbol, bars); err != nil {
				return err
			}
			from, to := marketdata.Span(bars)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d %s bars (%s → %s) into %s\n",
				len(bars), symbol, from.Format("2006-01-02 15:04"), to.Format("2006-01-02 15:04"), dbPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV or MT5 tab export to import")
	cmd.Flags().StringVar(&symbol, "symbol", "", "Symbol to store the bars under")
	cmd.Flags().StringVar(&dbPath, "db", cfg.SQLitePath, "SQLite database path")
	return cmd
}
