package indicator

import "trading-backtestv1/config"

// Config holds the indicator periods used by the Engine.
type Config struct {
	RSIPeriod  int     `json:"rsi_period" yaml:"rsi_period"`
	MACDFast   int     `json:"macd_fast" yaml:"macd_fast"`
	MACDSlow   int     `json:"macd_slow" yaml:"macd_slow"`
	MACDSignal int     `json:"macd_signal" yaml:"macd_signal"`
	BBPeriod   int     `json:"bb_period" yaml:"bb_period"`
	BBStdDev   float64 `json:"bb_std_dev" yaml:"bb_std_dev"`
	ATRPeriod  int     `json:"atr_period" yaml:"atr_period"`
	EMAFast    int     `json:"ema_fast" yaml:"ema_fast"`
	EMASlow    int     `json:"ema_slow" yaml:"ema_slow"`
}

// DefaultConfig returns the conventional periods.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		BBPeriod:   20,
		BBStdDev:   2,
		ATRPeriod:  14,
		EMAFast:    50,
		EMASlow:    200,
	}
}

// Validate returns a *config.ValidationError listing every invalid field.
func (c Config) Validate() error {
	var v config.ValidationError
	for _, p := range []struct {
		field string
		value int
	}{
		{"rsi_period", c.RSIPeriod},
		{"macd_fast", c.MACDFast},
		{"macd_slow", c.MACDSlow},
		{"macd_signal", c.MACDSignal},
		{"atr_period", c.ATRPeriod},
		{"ema_fast", c.EMAFast},
		{"ema_slow", c.EMASlow},
	} {
		if p.value < 1 {
			v.Addf(p.field, "must be >= 1, got %d", p.value)
		}
	}
	if c.BBPeriod < 2 {
		v.Addf("bb_period", "must be >= 2, got %d", c.BBPeriod)
	}
	if c.BBStdDev <= 0 {
		v.Addf("bb_std_dev", "must be > 0, got %g", c.BBStdDev)
	}
	if c.MACDFast >= c.MACDSlow {
		v.Addf("macd_fast", "must be < macd_slow (%d), got %d", c.MACDSlow, c.MACDFast)
	}
	if c.EMAFast >= c.EMASlow {
		v.Addf("ema_fast", "must be < ema_slow (%d), got %d", c.EMASlow, c.EMAFast)
	}
	return v.Err()
}

// Warmup returns the number of bars before every indicator field is defined.
func (c Config) Warmup() int {
	w := c.RSIPeriod + 1
	for _, n := range []int{
		c.MACDSlow + c.MACDSignal - 1,
		c.BBPeriod,
		c.ATRPeriod,
		c.EMASlow,
	} {
		if n > w {
			w = n
		}
	}
	return w
}
