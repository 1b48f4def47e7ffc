package model

import (
	"math"
	"time"
)

// Bar is one OHLCV bar plus the indicator fields derived from it.
// Indicator fields are NaN until their warmup window has been filled.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`

	RSI         float64 `json:"rsi"`
	MACD        float64 `json:"macd"`
	MACDSignal  float64 `json:"macd_signal"`
	MACDHist    float64 `json:"macd_hist"`
	BBUpper     float64 `json:"bb_upper"`
	BBMiddle    float64 `json:"bb_middle"`
	BBLower     float64 `json:"bb_lower"`
	ATR         float64 `json:"atr"`
	EMAFast     float64 `json:"ema_fast"`
	EMASlow     float64 `json:"ema_slow"`
	PriceReturn float64 `json:"price_return"` // percent
}

// NewBar returns a raw bar with every indicator field set to NaN.
func NewBar(ts time.Time, open, high, low, close, volume float64) Bar {
	nan := math.NaN()
	return Bar{
		Time: ts, Open: open, High: high, Low: low, Close: close, Volume: volume,
		RSI: nan, MACD: nan, MACDSignal: nan, MACDHist: nan,
		BBUpper: nan, BBMiddle: nan, BBLower: nan,
		ATR: nan, EMAFast: nan, EMASlow: nan, PriceReturn: nan,
	}
}

// IndicatorsReady reports whether every derived field is finite.
func (b *Bar) IndicatorsReady() bool {
	for _, v := range [...]float64{
		b.RSI, b.MACD, b.MACDSignal, b.MACDHist,
		b.BBUpper, b.BBMiddle, b.BBLower,
		b.ATR, b.EMAFast, b.EMASlow, b.PriceReturn,
	} {
		if !IsFinite(v) {
			return false
		}
	}
	return true
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
