// Package simulator replays signals against bars and tracks the life of each
// trade, the account balance and the cumulative pip count.
//
// One position at most is open at any bar. Exits are evaluated against the
// bar's high/low before any new entry is considered, so a trade that stops
// out on bar i leaves room for a fresh entry on the same bar's close.
package simulator

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"trading-backtestv1/internal/model"
)

// Ledger is the outcome of a run.
type Ledger struct {
	Trades       []model.Trade       `json:"trades"`
	Equity       []model.EquityPoint `json:"equity_curve"`
	FinalBalance float64             `json:"final_balance"`
	TotalPips    float64             `json:"total_pips"`
}

// ProgressFunc receives the number of bars processed so far out of total.
type ProgressFunc func(done, total int)

// Simulator owns the trades and equity of a single run. Not safe for
// concurrent use.
type Simulator struct {
	cfg Config

	pipSize  decimal.Decimal
	perPip   decimal.Decimal // pip_value * position_size
	decimals int32

	trades  []model.Trade
	equity  []model.EquityPoint
	openIdx int

	balance   decimal.Decimal
	pips      decimal.Decimal
	lastClose float64
	started   bool
}

// New creates a simulator for cfg. cfg is assumed valid.
func New(cfg Config) *Simulator {
	return &Simulator{
		cfg:      cfg,
		pipSize:  decimal.NewFromFloat(cfg.PipSize),
		perPip:   decimal.NewFromFloat(cfg.PipValue).Mul(decimal.NewFromFloat(cfg.PositionSize)),
		decimals: int32(cfg.PriceDecimals),
		openIdx:  -1,
		balance:  decimal.NewFromFloat(cfg.InitialCapital),
	}
}

// Step advances the simulation by one bar. last marks the final bar of the
// series, where any open trade is force-closed.
func (s *Simulator) Step(bar model.Bar, sig model.Signal, last bool) {
	if !s.started {
		s.equity = append(s.equity, model.EquityPoint{
			Time:    bar.Time,
			Start:   true,
			Balance: s.balance.InexactFloat64(),
		})
		s.started = true
	}
	if model.IsFinite(bar.Close) && bar.Close > 0 {
		s.lastClose = bar.Close
	}

	if s.openIdx >= 0 {
		s.checkExit(bar)
	}
	if s.openIdx < 0 && sig.Actionable() {
		s.open(bar, sig)
	}
	if last && s.openIdx >= 0 {
		s.close(bar.Time, s.lastClose, model.CloseEndOfData)
	}
}

// checkExit closes the open trade if this bar touched its stop or target.
// When both are touched the stop wins.
func (s *Simulator) checkExit(bar model.Bar) {
	t := &s.trades[s.openIdx]
	if !model.IsFinite(bar.High) || !model.IsFinite(bar.Low) {
		return
	}

	var slHit, tpHit bool
	if t.Direction == model.Buy {
		slHit = bar.Low <= t.StopLoss
		tpHit = bar.High >= t.TakeProfit
	} else {
		slHit = bar.High >= t.StopLoss
		tpHit = bar.Low <= t.TakeProfit
	}

	switch {
	case slHit:
		s.close(bar.Time, t.StopLoss, model.CloseStopLoss)
	case tpHit:
		s.close(bar.Time, t.TakeProfit, model.CloseTakeProfit)
	}
}

// open enters at the bar close. Bars without a usable close (or ATR, in ATR
// mode) are skipped.
func (s *Simulator) open(bar model.Bar, sig model.Signal) {
	if !model.IsFinite(bar.Close) || bar.Close <= 0 {
		return
	}
	entry := decimal.NewFromFloat(bar.Close)

	var slDist, tpDist decimal.Decimal
	if s.cfg.UseATRStops {
		if !model.IsFinite(bar.ATR) || bar.ATR <= 0 {
			return
		}
		atr := decimal.NewFromFloat(bar.ATR)
		slDist = atr.Mul(decimal.NewFromFloat(s.cfg.ATRStopMultiplier))
		tpDist = atr.Mul(decimal.NewFromFloat(s.cfg.ATRTakeProfitMultiplier))
	} else {
		slDist = entry.Mul(decimal.NewFromFloat(s.cfg.StopLossPercent))
		tpDist = entry.Mul(decimal.NewFromFloat(s.cfg.TakeProfitPercent))
	}

	sl, tp := entry.Sub(slDist), entry.Add(tpDist)
	if sig.Direction == model.Sell {
		sl, tp = entry.Add(slDist), entry.Sub(tpDist)
	}

	confidence := sig.Probability
	if sig.Direction == model.Sell {
		confidence = 1 - sig.Probability
	}

	s.trades = append(s.trades, model.Trade{
		OpenTime:   bar.Time,
		Direction:  sig.Direction,
		EntryPrice: bar.Close,
		StopLoss:   sl.Round(s.decimals).InexactFloat64(),
		TakeProfit: tp.Round(s.decimals).InexactFloat64(),
		Confidence: confidence,
		Status:     model.TradeOpen,
	})
	s.openIdx = len(s.trades) - 1
}

// close books the open trade at price and appends an equity point.
func (s *Simulator) close(ts time.Time, price float64, reason model.CloseReason) {
	t := &s.trades[s.openIdx]

	diff := decimal.NewFromFloat(price).Sub(decimal.NewFromFloat(t.EntryPrice))
	if t.Direction == model.Sell {
		diff = diff.Neg()
	}
	pips := diff.Div(s.pipSize)
	money := pips.Mul(s.perPip)

	t.Status = model.TradeClosed
	t.CloseTime = ts
	t.ClosePrice = price
	t.CloseReason = reason
	t.Pips = pips.InexactFloat64()
	t.Money = money.InexactFloat64()

	s.pips = s.pips.Add(pips)
	s.balance = s.balance.Add(money)
	s.equity = append(s.equity, model.EquityPoint{
		Time:    ts,
		Pips:    s.pips.InexactFloat64(),
		Balance: s.balance.InexactFloat64(),
	})
	s.openIdx = -1
}

// Ledger returns copies of the trades and equity curve.
func (s *Simulator) Ledger() Ledger {
	trades := make([]model.Trade, len(s.trades))
	copy(trades, s.trades)
	equity := make([]model.EquityPoint, len(s.equity))
	copy(equity, s.equity)
	return Ledger{
		Trades:       trades,
		Equity:       equity,
		FinalBalance: s.balance.InexactFloat64(),
		TotalPips:    s.pips.InexactFloat64(),
	}
}

// Run simulates signals[i] against bars[i] for the whole series.
// progress may be nil.
func Run(ctx context.Context, cfg Config, bars []model.Bar, signals []model.Signal, progress ProgressFunc) (Ledger, error) {
	if len(bars) != len(signals) {
		return Ledger{}, fmt.Errorf("simulator: %d bars but %d signals", len(bars), len(signals))
	}

	sim := New(cfg)
	n := len(bars)
	every := n / 100
	if every < 1 {
		every = 1
	}

	for i := range bars {
		if i%every == 0 {
			if err := ctx.Err(); err != nil {
				return Ledger{}, fmt.Errorf("simulator: %w", err)
			}
		}
		sim.Step(bars[i], signals[i], i == n-1)
		if progress != nil && ((i+1)%every == 0 || i == n-1) {
			progress(i+1, n)
		}
	}
	return sim.Ledger(), nil
}
