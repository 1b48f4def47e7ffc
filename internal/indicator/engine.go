package indicator

import (
	"math"

	"trading-backtestv1/internal/model"
)

var nan = math.NaN()

// Engine computes every indicator field of a bar series, one bar at a time.
// Designed for single-goroutine usage: no locks needed.
type Engine struct {
	cfg Config

	rsi     *RSI
	macd    *MACD
	bb      *Bollinger
	atr     *ATR
	emaFast *EMA
	emaSlow *EMA

	prevClose float64
	count     int
}

// NewEngine creates an indicator engine for cfg. cfg is assumed valid.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:     cfg,
		rsi:     NewRSI(cfg.RSIPeriod),
		macd:    NewMACD(cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal),
		bb:      NewBollinger(cfg.BBPeriod, cfg.BBStdDev),
		atr:     NewATR(cfg.ATRPeriod),
		emaFast: NewEMA(cfg.EMAFast),
		emaSlow: NewEMA(cfg.EMASlow),
	}
}

// Indicators returns the engine's indicators in a stable order.
func (e *Engine) Indicators() []Indicator {
	return []Indicator{e.rsi, e.macd, e.bb, e.atr, e.emaFast, e.emaSlow}
}

// Process feeds the next bar and returns a copy of it with every indicator
// field filled. Fields whose warmup is incomplete are NaN.
func (e *Engine) Process(bar model.Bar) model.Bar {
	for _, ind := range e.Indicators() {
		ind.Update(bar)
	}

	out := bar
	out.RSI = valueOrNaN(e.rsi.Ready(), e.rsi.Value())
	out.MACD = valueOrNaN(e.macd.Ready(), e.macd.Value())
	out.MACDSignal = valueOrNaN(e.macd.SignalReady(), e.macd.Signal())
	out.MACDHist = valueOrNaN(e.macd.SignalReady(), e.macd.Hist())
	out.BBMiddle = valueOrNaN(e.bb.Ready(), e.bb.Value())
	out.BBUpper = valueOrNaN(e.bb.Ready(), e.bb.Upper())
	out.BBLower = valueOrNaN(e.bb.Ready(), e.bb.Lower())
	out.ATR = valueOrNaN(e.atr.Ready(), e.atr.Value())
	out.EMAFast = valueOrNaN(e.emaFast.Ready(), e.emaFast.Value())
	out.EMASlow = valueOrNaN(e.emaSlow.Ready(), e.emaSlow.Value())

	out.PriceReturn = nan
	if e.count > 0 && e.prevClose != 0 {
		out.PriceReturn = 100 * (bar.Close - e.prevClose) / e.prevClose
	}
	e.prevClose = bar.Close
	e.count++
	return out
}

// Count returns the number of bars processed.
func (e *Engine) Count() int { return e.count }

// Enrich runs a fresh engine over bars and returns a new slice.
// The input slice is not modified.
func Enrich(bars []model.Bar, cfg Config) []model.Bar {
	eng := NewEngine(cfg)
	out := make([]model.Bar, len(bars))
	for i, b := range bars {
		out[i] = eng.Process(b)
	}
	return out
}
