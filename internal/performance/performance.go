// Package performance turns a simulated ledger into summary metrics, a daily
// drawdown curve and per-day and per-month rollups.
//
// Money sums use exact decimal arithmetic; results are converted to float64
// only at the edge.
package performance

import (
	"github.com/shopspring/decimal"

	"trading-backtestv1/internal/model"
)

// Rollup key layouts.
const (
	MonthLayout = "2006-01"
	DayLayout   = "2006-01-02"
)

var hundred = decimal.NewFromInt(100)

// Metrics summarizes a run.
type Metrics struct {
	TotalTrades     int `json:"total_trades"`
	ClosedTrades    int `json:"closed_trades"`
	OpenTrades      int `json:"open_trades"`
	WinningTrades   int `json:"winning_trades"`
	LosingTrades    int `json:"losing_trades"`
	BreakevenTrades int `json:"breakeven_trades"`

	// WinRate is a fraction in [0, 1].
	WinRate float64 `json:"win_rate"`

	AvgWinPips   float64 `json:"avg_win_pips"`
	AvgLossPips  float64 `json:"avg_loss_pips"`
	AvgWinMoney  float64 `json:"avg_win_money"`
	AvgLossMoney float64 `json:"avg_loss_money"`

	GrossProfit  float64 `json:"gross_profit"`
	GrossLoss    float64 `json:"gross_loss"`
	ProfitFactor Ratio   `json:"profit_factor"`

	TotalPips      float64 `json:"total_pips"`
	NetProfit      float64 `json:"net_profit"`
	InitialCapital float64 `json:"initial_capital"`
	FinalBalance   float64 `json:"final_balance"`
	ReturnPercent  float64 `json:"return_percent"`

	// Drawdowns are percentages <= 0.
	MaxDrawdownPercent      float64 `json:"max_drawdown_percent"`
	MaxDailyDrawdownPercent float64 `json:"max_daily_drawdown_percent"`
}

// MonthlyStats is the rollup of trades closed in one calendar month.
type MonthlyStats struct {
	Profit  float64 `json:"profit"`
	Percent float64 `json:"percent"`
	Pips    float64 `json:"pips"`
	Trades  int     `json:"trades"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	WinRate float64 `json:"win_rate"`
}

// DailyStats is the rollup of trades closed on one calendar date.
type DailyStats struct {
	Profit  float64 `json:"profit"`
	Percent float64 `json:"percent"`
	Count   int     `json:"count"`
	Pips    float64 `json:"pips"`
}

// Report bundles everything Aggregate derives from a ledger.
type Report struct {
	Metrics  Metrics                 `json:"metrics"`
	Drawdown []model.DrawdownPoint   `json:"drawdown_curve"`
	Monthly  map[string]MonthlyStats `json:"monthly_performance"`
	Daily    map[string]DailyStats   `json:"daily_performance"`
}

// Aggregate computes the report for trades and their equity curve.
// Only closed trades contribute to money, pip and rollup figures.
func Aggregate(trades []model.Trade, equity []model.EquityPoint, initialCapital float64) Report {
	initial := decimal.NewFromFloat(initialCapital)
	m := Metrics{TotalTrades: len(trades), InitialCapital: initialCapital}

	var grossWin, grossLoss, winPips, lossPips, totalPips decimal.Decimal
	for i := range trades {
		t := &trades[i]
		if !t.Closed() {
			m.OpenTrades++
			continue
		}
		m.ClosedTrades++
		money := decimal.NewFromFloat(t.Money)
		pips := decimal.NewFromFloat(t.Pips)
		totalPips = totalPips.Add(pips)

		switch {
		case t.Pips > 0:
			m.WinningTrades++
			grossWin = grossWin.Add(money)
			winPips = winPips.Add(pips)
		case t.Pips < 0:
			m.LosingTrades++
			grossLoss = grossLoss.Add(money)
			lossPips = lossPips.Add(pips)
		default:
			m.BreakevenTrades++
		}
	}

	if m.ClosedTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.ClosedTrades)
	}
	if m.WinningTrades > 0 {
		n := decimal.NewFromInt(int64(m.WinningTrades))
		m.AvgWinPips = winPips.Div(n).InexactFloat64()
		m.AvgWinMoney = grossWin.Div(n).InexactFloat64()
	}
	if m.LosingTrades > 0 {
		n := decimal.NewFromInt(int64(m.LosingTrades))
		m.AvgLossPips = lossPips.Div(n).InexactFloat64()
		m.AvgLossMoney = grossLoss.Div(n).InexactFloat64()
	}

	m.GrossProfit = grossWin.InexactFloat64()
	m.GrossLoss = grossLoss.Abs().InexactFloat64()
	m.ProfitFactor = profitFactor(grossWin, grossLoss.Abs())

	net := grossWin.Add(grossLoss)
	m.TotalPips = totalPips.InexactFloat64()
	m.NetProfit = net.InexactFloat64()
	m.FinalBalance = initial.Add(net).InexactFloat64()
	m.ReturnPercent = percentOf(net, initial)

	curve := DrawdownCurve(equity)
	for _, p := range curve {
		if p.Drawdown < m.MaxDrawdownPercent {
			m.MaxDrawdownPercent = p.Drawdown
		}
	}
	m.MaxDailyDrawdownPercent = MaxDailyDrawdown(equity)

	return Report{
		Metrics:  m,
		Drawdown: curve,
		Monthly:  Monthly(trades, initialCapital),
		Daily:    Daily(trades, initialCapital),
	}
}

// profitFactor is gross win / gross loss. No losses with some wins is +Inf;
// no money either way is 0.
func profitFactor(win, loss decimal.Decimal) Ratio {
	if loss.IsZero() {
		if win.IsPositive() {
			return Inf
		}
		return 0
	}
	return Ratio(win.Div(loss).InexactFloat64())
}

// percentOf returns part / whole * 100, or 0 when whole is zero.
func percentOf(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	return part.Div(whole).Mul(hundred).InexactFloat64()
}
