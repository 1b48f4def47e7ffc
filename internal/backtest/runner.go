// Package backtest wires the pipeline: bars → indicators → signals →
// simulated trades → performance report.
package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"trading-backtestv1/internal/indicator"
	"trading-backtestv1/internal/logger"
	"trading-backtestv1/internal/marketdata"
	"trading-backtestv1/internal/model"
	"trading-backtestv1/internal/performance"
	"trading-backtestv1/internal/simulator"
	"trading-backtestv1/internal/strategy"
)

// Pipeline stage progress marks, in percent.
const (
	ProgressLoaded     = 10
	ProgressIndicators = 30
	ProgressSignals    = 50
	ProgressSimulated  = 90
	ProgressDone       = 100
)

// ProgressFunc receives the overall percentage and a short stage message.
type ProgressFunc func(percent int, message string)

// Result is the bundle produced by a completed run.
type Result struct {
	Name        string         `json:"name,omitempty"`
	Symbol      string         `json:"symbol"`
	PeriodDays  int            `json:"period_days"`
	Bars        int            `json:"bars"`
	From        time.Time      `json:"from"`
	To          time.Time      `json:"to"`
	Config      Config         `json:"config"`
	Classifier  string         `json:"classifier,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	SignalStats strategy.Stats `json:"signal_stats"`

	Trades   []model.Trade                       `json:"trades"`
	Metrics  performance.Metrics                 `json:"metrics"`
	Equity   []model.EquityPoint                 `json:"equity_curve"`
	Drawdown []model.DrawdownPoint               `json:"drawdown_curve"`
	Monthly  map[string]performance.MonthlyStats `json:"monthly_performance"`
	Daily    map[string]performance.DailyStats   `json:"daily_performance"`
}

// Runner executes backtests against one bar source and classifier.
// A Runner holds no per-run state and is safe for concurrent use.
type Runner struct {
	source     model.BarSource
	classifier strategy.Classifier
	now        func() time.Time
}

// NewRunner creates a runner. A nil classifier falls back to strategy.DefaultModel.
func NewRunner(source model.BarSource, classifier strategy.Classifier) *Runner {
	if classifier == nil {
		classifier = strategy.DefaultModel()
	}
	return &Runner{source: source, classifier: classifier, now: time.Now}
}

// Run validates cfg and executes the whole pipeline. progress may be nil.
// Nothing is returned on failure; partial results are discarded.
func (r *Runner) Run(ctx context.Context, cfg Config, progress ProgressFunc) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = func(int, string) {}
	}
	attrs := logger.LogWithJob(ctx)
	started := r.now().UTC()

	bars, err := r.source.LoadBars(ctx, cfg.Symbol, cfg.PeriodDays)
	if err != nil {
		return nil, fmt.Errorf("load bars %s: %w", cfg.Symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("load bars %s: %w", cfg.Symbol, model.ErrNoBars)
	}
	from, to := marketdata.Span(bars)
	progress(ProgressLoaded, fmt.Sprintf("loaded %d bars", len(bars)))
	slog.Info("backtest bars loaded", append(attrs,
		slog.String("symbol", cfg.Symbol),
		slog.Int("bars", len(bars)),
		slog.Time("from", from),
		slog.Time("to", to))...)

	if len(bars) < cfg.Indicators.Warmup() {
		slog.Warn("fewer bars than indicator warmup", append(attrs,
			slog.Int("bars", len(bars)),
			slog.Int("warmup", cfg.Indicators.Warmup()))...)
	}

	enriched := indicator.Enrich(bars, cfg.Indicators)
	progress(ProgressIndicators, "indicators computed")

	signals, stats, err := strategy.NewGenerator(cfg.Strategy).Scan(enriched, r.classifier)
	if err != nil {
		return nil, fmt.Errorf("generate signals: %w", err)
	}
	progress(ProgressSignals, fmt.Sprintf("%d buy / %d sell signals", stats.Buy, stats.Sell))

	span := ProgressSimulated - ProgressSignals
	ledger, err := simulator.Run(ctx, cfg.Risk, enriched, signals, func(done, total int) {
		progress(ProgressSignals+span*done/total, "simulating trades")
	})
	if err != nil {
		return nil, err
	}

	report := performance.Aggregate(ledger.Trades, ledger.Equity, cfg.Risk.InitialCapital)
	progress(ProgressDone, "completed")

	res := &Result{
		Name:        cfg.Name,
		Symbol:      cfg.Symbol,
		PeriodDays:  cfg.PeriodDays,
		Bars:        len(bars),
		From:        from,
		To:          to,
		Config:      cfg,
		Classifier:  classifierName(r.classifier),
		StartedAt:   started,
		FinishedAt:  r.now().UTC(),
		SignalStats: stats,
		Trades:      ledger.Trades,
		Metrics:     report.Metrics,
		Equity:      ledger.Equity,
		Drawdown:    report.Drawdown,
		Monthly:     report.Monthly,
		Daily:       report.Daily,
	}

	slog.Info("backtest completed", append(attrs,
		slog.String("symbol", cfg.Symbol),
		slog.Int("trades", res.Metrics.TotalTrades),
		slog.Float64("win_rate", res.Metrics.WinRate),
		slog.Float64("net_profit", res.Metrics.NetProfit),
		slog.String("profit_factor", res.Metrics.ProfitFactor.String()))...)
	return res, nil
}

func classifierName(c strategy.Classifier) string {
	if m, ok := c.(*strategy.LogisticModel); ok {
		return m.Name
	}
	return fmt.Sprintf("%T", c)
}
