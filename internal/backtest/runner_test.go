package backtest

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-backtestv1/config"
	"trading-backtestv1/internal/indicator"
	"trading-backtestv1/internal/marketdata"
	"trading-backtestv1/internal/model"
	"trading-backtestv1/internal/strategy"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func synthBars(n int) []model.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, n)
	for i := range bars {
		c := 2000 + 15*math.Sin(float64(i)/6) + 0.05*float64(i)
		bars[i] = model.NewBar(start.Add(time.Duration(i)*time.Hour), c, c+2.5, c-2.5, c, 100)
	}
	return bars
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PeriodDays = 0
	cfg.Indicators = indicator.Config{
		RSIPeriod: 5, MACDFast: 3, MACDSlow: 6, MACDSignal: 3,
		BBPeriod: 5, BBStdDev: 2, ATRPeriod: 5, EMAFast: 4, EMASlow: 8,
	}
	cfg.Risk.StopLossPercent = 0.002
	cfg.Risk.TakeProfitPercent = 0.003
	return cfg
}

// momentum leans with the last return so the synthetic wave produces trades.
var momentum = strategy.ClassifierFunc(func(f []float64) (float64, error) {
	if f[7] > 0 {
		return 0.8, nil
	}
	return 0.2, nil
})

func newTestRunner(bars []model.Bar, clf strategy.Classifier) *Runner {
	src := marketdata.NewSliceSource()
	src.Add("XAUUSD", bars)
	r := NewRunner(src, clf)
	r.now = func() time.Time { return fixedNow }
	return r
}

func TestRun_ProducesConsistentBundle(t *testing.T) {
	var marks []int
	r := newTestRunner(synthBars(400), momentum)
	res, err := r.Run(context.Background(), testConfig(), func(p int, _ string) { marks = append(marks, p) })
	require.NoError(t, err)

	assert.Equal(t, 400, res.Bars)
	require.NotEmpty(t, res.Trades)
	assert.Equal(t, len(res.Trades), res.Metrics.TotalTrades)
	assert.Equal(t, res.Metrics.ClosedTrades,
		res.Metrics.WinningTrades+res.Metrics.LosingTrades+res.Metrics.BreakevenTrades)
	assert.Zero(t, res.Metrics.OpenTrades)
	assert.True(t, res.Equity[0].Start)
	assert.InDelta(t, res.Metrics.FinalBalance, res.Equity[len(res.Equity)-1].Balance, 1e-6)
	assert.Equal(t, 400, res.SignalStats.Buy+res.SignalStats.Sell+res.SignalStats.None)

	dailySum := 0.0
	for _, d := range res.Daily {
		dailySum += d.Profit
	}
	assert.InDelta(t, res.Metrics.NetProfit, dailySum, 1e-6)

	require.NotEmpty(t, marks)
	assert.Equal(t, ProgressDone, marks[len(marks)-1])
	for i := 1; i < len(marks); i++ {
		assert.GreaterOrEqual(t, marks[i], marks[i-1])
	}
}

func TestRun_Deterministic(t *testing.T) {
	bars := synthBars(300)
	a, err := newTestRunner(bars, momentum).Run(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	b, err := newTestRunner(bars, momentum).Run(context.Background(), testConfig(), nil)
	require.NoError(t, err)

	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	assert.Equal(t, string(ja), string(jb))
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Strategy.ProbThreshold = 0.3
	cfg.Risk.PipSize = -1
	_, err := newTestRunner(synthBars(10), momentum).Run(context.Background(), cfg, nil)

	var ve *config.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Fields, 2)
}

func TestRun_NoBars(t *testing.T) {
	cfg := testConfig()
	cfg.Symbol = "EURUSD"
	_, err := newTestRunner(synthBars(10), momentum).Run(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, model.ErrNoBars)
}

func TestRun_ClassifierFailure(t *testing.T) {
	boom := errors.New("model exploded")
	clf := strategy.ClassifierFunc(func([]float64) (float64, error) { return 0, boom })
	res, err := newTestRunner(synthBars(100), clf).Run(context.Background(), testConfig(), nil)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, res)
}

func TestRun_DefaultClassifier(t *testing.T) {
	res, err := newTestRunner(synthBars(200), nil).Run(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, "default-momentum", res.Classifier)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
symbol: XAUUSD
period_days: 30
strategy:
  prob_threshold: 0.6
  use_trend_filter: true
risk:
  use_atr_stops: true
`), 0o644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.PeriodDays)
	assert.Equal(t, 0.6, cfg.Strategy.ProbThreshold)
	assert.True(t, cfg.Strategy.UseTrendFilter)
	assert.Equal(t, 47.0, cfg.Strategy.RSIBuyMin)
	assert.True(t, cfg.Risk.UseATRStops)
	assert.Equal(t, 2.0, cfg.Risk.ATRStopMultiplier)
	assert.Equal(t, 14, cfg.Indicators.RSIPeriod)
	require.NoError(t, cfg.Validate())
}

func TestConfig_RejectsPathSymbols(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Symbol = "../etc/passwd"
	assert.Error(t, cfg.Validate())
}

func TestWriteTradesCSV(t *testing.T) {
	open := time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)
	trades := []model.Trade{
		{
			OpenTime: open, Direction: model.Buy, EntryPrice: 101, StopLoss: 98.98, TakeProfit: 104.03,
			Confidence: 0.8, Status: model.TradeClosed, CloseTime: open.Add(time.Hour),
			ClosePrice: 103, CloseReason: model.CloseEndOfData, Pips: 2,
		},
		{OpenTime: open.Add(2 * time.Hour), Direction: model.Sell, EntryPrice: 103, Status: model.TradeOpen, Confidence: 0.7},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTradesCSV(&buf, trades))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, TradeCSVHeader, rows[0])
	assert.Equal(t, []string{"2024-01-02 03:00:00", "BUY", "101", "98.98", "104.03", "103", "2024-01-02 04:00:00", "2.0", "0.8000"}, rows[1])
	assert.Equal(t, "", rows[2][5])
	assert.Equal(t, "", rows[2][6])
	assert.Equal(t, "", rows[2][7])
}
