package simulator

import (
	"math"

	"trading-backtestv1/config"
)

// Config defines position sizing, stop placement and pip accounting.
type Config struct {
	InitialCapital          float64 `json:"initial_capital" yaml:"initial_capital"`
	StopLossPercent         float64 `json:"stop_loss_percent" yaml:"stop_loss_percent"`
	TakeProfitPercent       float64 `json:"take_profit_percent" yaml:"take_profit_percent"`
	UseATRStops             bool    `json:"use_atr_stops" yaml:"use_atr_stops"`
	ATRStopMultiplier       float64 `json:"atr_stop_multiplier" yaml:"atr_stop_multiplier"`
	ATRTakeProfitMultiplier float64 `json:"atr_take_profit_multiplier" yaml:"atr_take_profit_multiplier"`
	PipSize                 float64 `json:"pip_size" yaml:"pip_size"`
	PipValue                float64 `json:"pip_value" yaml:"pip_value"`
	PositionSize            float64 `json:"position_size" yaml:"position_size"`
	PriceDecimals           int     `json:"price_decimals" yaml:"price_decimals"`
}

// DefaultConfig returns gold-style defaults: 0.1 price move = 1 pip.
func DefaultConfig() Config {
	return Config{
		InitialCapital:          10000,
		StopLossPercent:         0.01,
		TakeProfitPercent:       0.02,
		ATRStopMultiplier:       2.0,
		ATRTakeProfitMultiplier: 5.0,
		PipSize:                 0.1,
		PipValue:                1,
		PositionSize:            1,
		PriceDecimals:           2,
	}
}

// Validate returns a *config.ValidationError listing every invalid field.
func (c Config) Validate() error {
	var v config.ValidationError
	positive := func(field string, x float64) {
		if math.IsNaN(x) || math.IsInf(x, 0) || x <= 0 {
			v.Addf(field, "must be > 0, got %g", x)
		}
	}
	unit := func(field string, x float64) {
		if math.IsNaN(x) || x <= 0 || x >= 1 {
			v.Addf(field, "must be in (0, 1), got %g", x)
		}
	}

	positive("initial_capital", c.InitialCapital)
	positive("pip_size", c.PipSize)
	positive("pip_value", c.PipValue)
	positive("position_size", c.PositionSize)
	if c.UseATRStops {
		positive("atr_stop_multiplier", c.ATRStopMultiplier)
		positive("atr_take_profit_multiplier", c.ATRTakeProfitMultiplier)
	} else {
		unit("stop_loss_percent", c.StopLossPercent)
		unit("take_profit_percent", c.TakeProfitPercent)
	}
	if c.PriceDecimals < 0 || c.PriceDecimals > 8 {
		v.Addf("price_decimals", "must be in [0, 8], got %d", c.PriceDecimals)
	}
	return v.Err()
}
