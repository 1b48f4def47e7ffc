package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	appconfig "trading-backtestv1/config"
	"trading-backtestv1/internal/backtest"
	"trading-backtestv1/internal/history"
	"trading-backtestv1/internal/marketdata"
	"trading-backtestv1/internal/model"
	"trading-backtestv1/internal/store/sqlite"
	"trading-backtestv1/internal/strategy"
)

type runFlags struct {
	configPath string
	csvDir     string
	dbPath     string
	symbol     string
	days       int
	modelPath  string
	outDir     string
	save       bool
}

func newRunCmd(cfg *appconfig.Config) *cobra.Command {
	f := runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one backtest and write its JSON result and trade CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBacktest(cmd, cfg, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", cfg.StrategyFile, "YAML run description (defaults when empty)")
	fl.StringVar(&f.csvDir, "csv-dir", "", "Read bars from <dir>/<symbol>.csv instead of SQLite")
	fl.StringVar(&f.dbPath, "db", cfg.SQLitePath, "SQLite database with imported bars")
	fl.StringVar(&f.symbol, "symbol", "", "Override the configured symbol")
	fl.IntVar(&f.days, "days", 0, "Override the lookback in days (0 = all bars)")
	fl.StringVar(&f.modelPath, "model", cfg.ModelPath, "Logistic model JSON (built-in model when empty)")
	fl.StringVar(&f.outDir, "out", "results", "Output directory")
	fl.BoolVar(&f.save, "save", false, "Record the run in the strategy history (SQLite)")
	return cmd
}

func runBacktest(cmd *cobra.Command, appCfg *appconfig.Config, f runFlags) error {
	ctx := cmd.Context()

	cfg, err := loadRunConfig(f.configPath)
	if err != nil {
		return err
	}
	if f.symbol != "" {
		cfg.Symbol = f.symbol
	}
	if cmd.Flags().Changed("days") {
		cfg.PeriodDays = f.days
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	clf, err := loadClassifier(f.modelPath)
	if err != nil {
		return err
	}

	var (
		source model.BarSource
		store  *sqlite.Store
	)
	if f.csvDir != "" {
		source = marketdata.NewCSVSource(f.csvDir)
	}
	if f.csvDir == "" || f.save {
		store, err = sqlite.Open(f.dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		if source == nil {
			source = store
		}
	}

	res, err := backtest.NewRunner(source, clf).Run(ctx, cfg, func(percent int, message string) {
		slog.Debug("backtest progress", slog.Int("percent", percent), slog.String("message", message))
	})
	if err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), res)

	jsonPath, csvPath, err := writeOutputs(f.outDir, res)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nresult: %s\ntrades: %s\n", jsonPath, csvPath)

	if f.save {
		if err := history.NewRecorder(store).Save(ctx, "", res); err != nil {
			return fmt.Errorf("save strategy: %w", err)
		}
	}
	return nil
}

func loadRunConfig(path string) (backtest.Config, error) {
	if path == "" {
		return backtest.DefaultConfig(), nil
	}
	return backtest.LoadConfigFile(path)
}

func loadClassifier(path string) (strategy.Classifier, error) {
	if path == "" {
		return strategy.DefaultModel(), nil
	}
	return strategy.LoadModel(path)
}

// writeOutputs writes the result JSON and trade CSV into dir.
func writeOutputs(dir string, res *backtest.Result) (jsonPath, csvPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create output dir: %w", err)
	}
	stem := fmt.Sprintf("%s_%s", strings.ToLower(res.Symbol), res.FinishedAt.Format("20060102_150405"))
	jsonPath = filepath.Join(dir, stem+".json")
	csvPath = filepath.Join(dir, stem+"_trades.csv")

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", "", fmt.Errorf("write result: %w", err)
	}

	out, err := os.Create(csvPath)
	if err != nil {
		return "", "", fmt.Errorf("create trades csv: %w", err)
	}
	defer out.Close()
	if err := backtest.WriteTradesCSV(out, res.Trades); err != nil {
		return "", "", err
	}
	return jsonPath, csvPath, out.Close()
}

func printSummary(w io.Writer, res *backtest.Result) {
	m := res.Metrics
	line := func(label string, value any) {
		fmt.Fprintf(w, "║  %-20s %-22v ║\n", label, value)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔═════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║              BACKTEST COMPLETE              ║")
	fmt.Fprintln(w, "╠═════════════════════════════════════════════╣")
	line("Symbol:", res.Symbol)
	line("Bars:", res.Bars)
	line("From:", res.From.Format(time.DateOnly))
	line("To:", res.To.Format(time.DateOnly))
	line("Signals (buy/sell):", fmt.Sprintf("%d / %d", res.SignalStats.Buy, res.SignalStats.Sell))
	line("Trades:", fmt.Sprintf("%d (%d open)", m.TotalTrades, m.OpenTrades))
	line("Win rate:", fmt.Sprintf("%.2f%%", m.WinRate*100))
	line("Profit factor:", m.ProfitFactor)
	line("Total pips:", fmt.Sprintf("%.1f", m.TotalPips))
	line("Net profit:", fmt.Sprintf("%.2f", m.NetProfit))
	line("Final balance:", fmt.Sprintf("%.2f", m.FinalBalance))
	line("Return:", fmt.Sprintf("%.2f%%", m.ReturnPercent))
	line("Max drawdown:", fmt.Sprintf("%.2f%%", m.MaxDrawdownPercent))
	line("Max daily drawdown:", fmt.Sprintf("%.2f%%", m.MaxDailyDrawdownPercent))
	fmt.Fprintln(w, "╚═════════════════════════════════════════════╝")
}
