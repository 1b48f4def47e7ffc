package backtest

import (
	"strings"

	"trading-backtestv1/config"
	"trading-backtestv1/internal/indicator"
	"trading-backtestv1/internal/simulator"
	"trading-backtestv1/internal/strategy"
)

// Config is the full description of one backtest run.
type Config struct {
	Name       string           `json:"name,omitempty" yaml:"name"`
	Symbol     string           `json:"symbol" yaml:"symbol"`
	PeriodDays int              `json:"period_days" yaml:"period_days"`
	Indicators indicator.Config `json:"indicators" yaml:"indicators"`
	Strategy   strategy.Config  `json:"strategy" yaml:"strategy"`
	Risk       simulator.Config `json:"risk" yaml:"risk"`
}

// DefaultConfig returns a 180-day XAUUSD run with default components.
func DefaultConfig() Config {
	return Config{
		Symbol:     "XAUUSD",
		PeriodDays: 180,
		Indicators: indicator.DefaultConfig(),
		Strategy:   strategy.DefaultConfig(),
		Risk:       simulator.DefaultConfig(),
	}
}

// LoadConfigFile reads a YAML run description over the defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := config.LoadStrategyFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section and returns a single *config.ValidationError.
func (c Config) Validate() error {
	var v config.ValidationError
	if strings.TrimSpace(c.Symbol) == "" {
		v.Addf("symbol", "must not be empty")
	}
	if strings.ContainsAny(c.Symbol, `/\`) || strings.Contains(c.Symbol, "..") {
		v.Addf("symbol", "must not contain path characters, got %q", c.Symbol)
	}
	if c.PeriodDays < 0 {
		v.Addf("period_days", "must be >= 0, got %d", c.PeriodDays)
	}
	v.Merge(c.Indicators.Validate())
	v.Merge(c.Strategy.Validate())
	v.Merge(c.Risk.Validate())
	return v.Err()
}
