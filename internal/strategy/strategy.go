// Package strategy turns classifier probabilities and indicator state into
// directional trade signals.
//
// The Generator is pure: the same bar and probability always produce the same
// Signal, and nothing outside the returned value is touched.
package strategy

import (
	"fmt"
	"log/slog"
	"math"

	"trading-backtestv1/config"
	"trading-backtestv1/internal/model"
)

// Config holds the signal thresholds and optional filters.
type Config struct {
	ProbThreshold       float64 `json:"prob_threshold" yaml:"prob_threshold"`
	UseTrendFilter      bool    `json:"use_trend_filter" yaml:"use_trend_filter"`
	UseVolatilityFilter bool    `json:"use_volatility_filter" yaml:"use_volatility_filter"`
	ATRFilterMin        float64 `json:"atr_filter_min" yaml:"atr_filter_min"`
	ATRFilterMax        float64 `json:"atr_filter_max" yaml:"atr_filter_max"`
	UseMomentumFilter   bool    `json:"use_momentum_filter" yaml:"use_momentum_filter"`
	RSIBuyMin           float64 `json:"rsi_buy_min" yaml:"rsi_buy_min"`
	RSISellMax          float64 `json:"rsi_sell_max" yaml:"rsi_sell_max"`
}

// DefaultConfig returns a 0.55 threshold with every filter off.
func DefaultConfig() Config {
	return Config{
		ProbThreshold: 0.55,
		RSIBuyMin:     47,
		RSISellMax:    53,
	}
}

// Validate returns a *config.ValidationError listing every invalid field.
func (c Config) Validate() error {
	var v config.ValidationError
	if math.IsNaN(c.ProbThreshold) || c.ProbThreshold < 0.5 || c.ProbThreshold >= 1 {
		v.Addf("prob_threshold", "must be in [0.5, 1), got %g", c.ProbThreshold)
	}
	if c.UseVolatilityFilter {
		if c.ATRFilterMin < 0 {
			v.Addf("atr_filter_min", "must be >= 0, got %g", c.ATRFilterMin)
		}
		if c.ATRFilterMax < c.ATRFilterMin {
			v.Addf("atr_filter_max", "must be >= atr_filter_min (%g), got %g", c.ATRFilterMin, c.ATRFilterMax)
		}
	}
	if c.UseMomentumFilter {
		if c.RSIBuyMin < 0 || c.RSIBuyMin > 100 {
			v.Addf("rsi_buy_min", "must be in [0, 100], got %g", c.RSIBuyMin)
		}
		if c.RSISellMax < 0 || c.RSISellMax > 100 {
			v.Addf("rsi_sell_max", "must be in [0, 100], got %g", c.RSISellMax)
		}
	}
	return v.Err()
}

// Generator maps (bar, probability) to a Signal.
type Generator struct {
	cfg Config
}

// NewGenerator creates a generator for cfg. cfg is assumed valid.
func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg}
}

// Generate returns the signal for bar given prob, the probability that the
// next bar closes higher. A bar with any undefined indicator field, or an
// undefined prob, is NONE with ReasonWarmup whatever the filters say.
func (g *Generator) Generate(bar model.Bar, prob float64) model.Signal {
	sig := model.Signal{Time: bar.Time, Direction: model.None, Probability: prob}

	if !model.IsFinite(prob) || !bar.IndicatorsReady() {
		sig.Reason = model.ReasonWarmup
		return sig
	}

	dir := g.direction(prob)
	if dir == model.None {
		sig.Reason = model.ReasonThreshold
		return sig
	}

	sig.TrendOK = !g.cfg.UseTrendFilter || trendAgrees(bar, dir)
	sig.VolatilityOK = !g.cfg.UseVolatilityFilter ||
		(bar.ATR >= g.cfg.ATRFilterMin && bar.ATR <= g.cfg.ATRFilterMax)
	sig.MomentumOK = !g.cfg.UseMomentumFilter || g.momentumAgrees(bar, dir)

	switch {
	case !sig.TrendOK:
		sig.Reason = model.ReasonTrend
	case !sig.VolatilityOK:
		sig.Reason = model.ReasonVolatility
	case !sig.MomentumOK:
		sig.Reason = model.ReasonMomentum
	default:
		sig.Direction = dir
	}
	return sig
}

// probEpsilon absorbs float error at the band edges (1-0.55 != 0.45 in float64).
const probEpsilon = 1e-9

// direction applies the symmetric probability bands. BUY is checked first.
func (g *Generator) direction(prob float64) model.Direction {
	switch {
	case prob >= g.cfg.ProbThreshold-probEpsilon:
		return model.Buy
	case prob <= 1-g.cfg.ProbThreshold+probEpsilon:
		return model.Sell
	}
	return model.None
}

func trendAgrees(bar model.Bar, dir model.Direction) bool {
	if dir == model.Buy {
		return bar.EMAFast > bar.EMASlow
	}
	return bar.EMAFast < bar.EMASlow
}

func (g *Generator) momentumAgrees(bar model.Bar, dir model.Direction) bool {
	if dir == model.Buy {
		return bar.MACD > bar.MACDSignal && bar.RSI > g.cfg.RSIBuyMin
	}
	return bar.MACD < bar.MACDSignal && bar.RSI < g.cfg.RSISellMax
}

// Stats counts generated signals by direction and NONE reason.
type Stats struct {
	Buy     int            `json:"buy"`
	Sell    int            `json:"sell"`
	None    int            `json:"none"`
	Reasons map[string]int `json:"reasons"`
}

func (s *Stats) add(sig model.Signal) {
	switch sig.Direction {
	case model.Buy:
		s.Buy++
	case model.Sell:
		s.Sell++
	default:
		s.None++
		s.Reasons[sig.Reason]++
	}
}

// Scan generates one signal per bar. The classifier is only consulted for
// bars whose feature vector is fully defined; its errors abort the scan.
func (g *Generator) Scan(bars []model.Bar, clf Classifier) ([]model.Signal, Stats, error) {
	signals := make([]model.Signal, len(bars))
	stats := Stats{Reasons: make(map[string]int)}

	for i, bar := range bars {
		prob := math.NaN()
		if features, ok := Features(bar); ok {
			p, err := clf.PredictProba(features)
			if err != nil {
				return nil, Stats{}, fmt.Errorf("predict bar %d (%s): %w", i, bar.Time.Format("2006-01-02 15:04"), err)
			}
			prob = p
		}
		signals[i] = g.Generate(bar, prob)
		stats.add(signals[i])
	}

	slog.Debug("signals generated",
		slog.Int("bars", len(bars)),
		slog.Int("buy", stats.Buy),
		slog.Int("sell", stats.Sell),
		slog.Int("none", stats.None))
	return signals, stats, nil
}
