package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	appconfig "trading-backtestv1/config"
	"trading-backtestv1/internal/api"
	"trading-backtestv1/internal/backtest"
	"trading-backtestv1/internal/history"
	"trading-backtestv1/internal/jobs"
	"trading-backtestv1/internal/marketdata"
	"trading-backtestv1/internal/metrics"
	"trading-backtestv1/internal/model"
	"trading-backtestv1/internal/notification"
	"trading-backtestv1/internal/store/redis"
	"trading-backtestv1/internal/store/sqlite"
)

const pruneInterval = 10 * time.Minute

func newServeCmd(cfg *appconfig.Config) *cobra.Command {
	var csvDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the asynchronous backtest job API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg, csvDir)
		},
	}
	cmd.Flags().StringVar(&csvDir, "csv-dir", "", "Read bars from <dir>/<symbol>.csv instead of SQLite")
	cmd.Flags().StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "HTTP listen address")
	return cmd
}

func serve(ctx context.Context, cfg *appconfig.Config, csvDir string) error {
	defaults, err := loadRunConfig(cfg.StrategyFile)
	if err != nil {
		return err
	}
	if err := defaults.Validate(); err != nil {
		return err
	}
	clf, err := loadClassifier(cfg.ModelPath)
	if err != nil {
		return err
	}

	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()

	var source model.BarSource = store
	if csvDir != "" {
		source = marketdata.NewCSVSource(csvDir)
	}

	m := metrics.NewMetrics()
	manager := jobs.NewManager(ctx, cfg.MaxConcurrentJobs)
	runner := &countingRunner{runner: backtest.NewRunner(source, clf), metrics: m}

	var (
		cache api.ResultCache
		pub   *redis.Publisher
	)
	if cfg.RedisAddr != "" {
		pub, err = redis.New(redis.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, TTL: cfg.ResultTTL})
		if err != nil {
			// the API still works from memory without Redis
			log.Printf("[serve] redis unavailable, continuing without it: %v", err)
		} else {
			defer pub.Close()
			pub.OnStateChange = m.ObserveBreaker
			cache = pub
			manager.OnEvent(pub.Listen)
		}
	}

	var health *metrics.HealthStatus
	if pub != nil {
		health = metrics.NewHealthStatus(pub.Client(), store)
	} else {
		health = metrics.NewHealthStatus(nil, store)
	}
	health.StartLivenessChecker(ctx, 15*time.Second)

	dispatcher := notification.NewDispatcher(notification.Build(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.WebhookURL))
	manager.OnEvent(m.ObserveJob)
	manager.OnEvent(history.NewRecorder(store).Listen)
	manager.OnEvent(dispatcher.Listen)
	manager.OnEvent(func(jobs.Event) {
		health.SetRunningJobs(countRunning(manager.Registry().List()))
	})

	go pruneJobs(ctx, manager.Registry(), cfg.ResultTTL)

	srv := api.NewServer(cfg.HTTPAddr, api.NewRouter(api.Options{
		Jobs:        manager,
		Runner:      runner,
		Defaults:    defaults,
		Cache:       cache,
		Strategies:  store,
		Metrics:     m,
		Health:      health,
		TOTPSecret:  cfg.TOTPSecret,
		SubmitRate:  cfg.SubmitRate,
		SubmitBurst: cfg.SubmitBurst,
	}))
	srv.Start()
	slog.Info("backtest api started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Int("max_concurrent_jobs", cfg.MaxConcurrentJobs),
		slog.Bool("redis", pub != nil),
		slog.Bool("totp", cfg.TOTPSecret != ""))

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Printf("[serve] http shutdown: %v", err)
	}
	manager.Close()
	dispatcher.Wait()
	return nil
}

// countingRunner feeds the bar and trade counters from finished runs.
type countingRunner struct {
	runner  *backtest.Runner
	metrics *metrics.Metrics
}

func (c *countingRunner) Run(ctx context.Context, cfg backtest.Config, progress backtest.ProgressFunc) (*backtest.Result, error) {
	res, err := c.runner.Run(ctx, cfg, progress)
	if err != nil {
		return nil, err
	}
	c.metrics.BarsProcessed.Add(float64(res.Bars))
	c.metrics.TradesSimulated.Add(float64(len(res.Trades)))
	return res, nil
}

func countRunning(list []jobs.Snapshot) int {
	n := 0
	for _, s := range list {
		if s.Status == jobs.StatusRunning {
			n++
		}
	}
	return n
}

func pruneJobs(ctx context.Context, reg *jobs.Registry, ttl time.Duration) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := reg.Prune(now.Add(-ttl)); n > 0 {
				slog.Info("pruned finished jobs", slog.Int("count", n))
			}
		}
	}
}
