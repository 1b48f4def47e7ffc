package performance

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-backtestv1/internal/model"
)

func at(day, hour int) time.Time {
	return time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC)
}

func closed(ts time.Time, pips, money float64) model.Trade {
	return model.Trade{
		OpenTime:    ts.Add(-time.Hour),
		Direction:   model.Buy,
		Status:      model.TradeClosed,
		CloseTime:   ts,
		CloseReason: model.CloseTakeProfit,
		Pips:        pips,
		Money:       money,
	}
}

// equityFor builds the curve a simulator would emit for trades.
func equityFor(start time.Time, initial float64, trades []model.Trade) []model.EquityPoint {
	eq := []model.EquityPoint{{Time: start, Start: true, Balance: initial}}
	bal, pips := initial, 0.0
	for _, t := range trades {
		if !t.Closed() {
			continue
		}
		bal += t.Money
		pips += t.Pips
		eq = append(eq, model.EquityPoint{Time: t.CloseTime, Pips: pips, Balance: bal})
	}
	return eq
}

func TestAggregate_ProfitFactorExample(t *testing.T) {
	trades := []model.Trade{
		closed(at(4, 10), 30, 300),
		closed(at(4, 12), -10, -100),
		closed(at(5, 10), 20, 200),
		closed(at(6, 10), -15, -150),
	}
	r := Aggregate(trades, equityFor(at(4, 0), 10000, trades), 10000)
	m := r.Metrics

	assert.Equal(t, Ratio(2.0), m.ProfitFactor)
	assert.Equal(t, 500.0, m.GrossProfit)
	assert.Equal(t, 250.0, m.GrossLoss)
	assert.Equal(t, 4, m.ClosedTrades)
	assert.Equal(t, 2, m.WinningTrades)
	assert.Equal(t, 2, m.LosingTrades)
	assert.Equal(t, 0.5, m.WinRate)
	assert.Equal(t, 25.0, m.AvgWinPips)
	assert.Equal(t, -12.5, m.AvgLossPips)
	assert.Equal(t, 250.0, m.NetProfit)
	assert.Equal(t, 10250.0, m.FinalBalance)
	assert.Equal(t, 2.5, m.ReturnPercent)
	assert.Equal(t, 25.0, m.TotalPips)
}

func TestAggregate_CountsAddUp(t *testing.T) {
	open := model.Trade{OpenTime: at(7, 1), Direction: model.Sell, Status: model.TradeOpen}
	trades := []model.Trade{
		closed(at(4, 10), 5, 50),
		closed(at(4, 11), 0, 0),
		closed(at(5, 10), -3, -30),
		open,
	}
	m := Aggregate(trades, equityFor(at(4, 0), 1000, trades), 1000).Metrics
	assert.Equal(t, 4, m.TotalTrades)
	assert.Equal(t, 1, m.OpenTrades)
	assert.Equal(t, m.ClosedTrades, m.WinningTrades+m.LosingTrades+m.BreakevenTrades)
	assert.Equal(t, 1, m.BreakevenTrades)
}

func TestAggregate_ProfitFactorSentinels(t *testing.T) {
	winners := []model.Trade{closed(at(4, 10), 10, 100)}
	m := Aggregate(winners, nil, 1000).Metrics
	assert.True(t, m.ProfitFactor.IsInf())

	m = Aggregate(nil, nil, 1000).Metrics
	assert.Equal(t, Ratio(0), m.ProfitFactor)
	assert.Zero(t, m.WinRate)

	flat := []model.Trade{closed(at(4, 10), 0, 0)}
	m = Aggregate(flat, nil, 1000).Metrics
	assert.Equal(t, Ratio(0), m.ProfitFactor)
}

func TestDaily_Example(t *testing.T) {
	trades := []model.Trade{
		closed(at(4, 10), 3, 30),
		closed(at(4, 15), -1, -10),
	}
	d := Daily(trades, 10000)
	require.Contains(t, d, "2024-03-04")
	day := d["2024-03-04"]
	assert.Equal(t, 2, day.Count)
	assert.Equal(t, 20.0, day.Profit)
	assert.Equal(t, 0.2, day.Percent)
	assert.Equal(t, 2.0, day.Pips)
}

func TestMonthly_AgreesWithDaily(t *testing.T) {
	trades := []model.Trade{
		closed(at(4, 10), 3, 30.1),
		closed(at(4, 15), -1, -10.2),
		closed(at(28, 9), 7, 70.3),
		closed(time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC), -2, -20),
	}
	monthly := Monthly(trades, 10000)
	daily := Daily(trades, 10000)

	require.Len(t, monthly, 2)
	march := monthly["2024-03"]
	assert.Equal(t, 3, march.Trades)
	assert.Equal(t, 2, march.Wins)
	assert.Equal(t, 1, march.Losses)
	assert.InDelta(t, 2.0/3.0, march.WinRate, 1e-12)
	assert.Equal(t, 90.2, march.Profit)

	sum := 0.0
	for k, d := range daily {
		if k[:7] == "2024-03" {
			sum += d.Profit
		}
	}
	assert.InDelta(t, march.Profit, sum, 1e-9)
	assert.Equal(t, -20.0, monthly["2024-04"].Profit)
}

func TestDrawdownCurve_ForwardFillsAndIsNonPositive(t *testing.T) {
	eq := []model.EquityPoint{
		{Time: at(1, 0), Start: true, Balance: 10000},
		{Time: at(1, 12), Balance: 11000},
		{Time: at(3, 12), Balance: 9900},
		{Time: at(5, 12), Balance: 11500},
	}
	curve := DrawdownCurve(eq)
	require.Len(t, curve, 5)
	assert.Equal(t, "2024-03-01", curve[0].Day)
	assert.Equal(t, 0.0, curve[0].Drawdown)
	assert.Equal(t, 0.0, curve[1].Drawdown) // carried 11000
	assert.InDelta(t, -10.0, curve[2].Drawdown, 1e-9)
	assert.InDelta(t, -10.0, curve[3].Drawdown, 1e-9) // carried 9900
	assert.Equal(t, 0.0, curve[4].Drawdown)
	for _, p := range curve {
		assert.LessOrEqual(t, p.Drawdown, 0.0)
	}

	m := Aggregate(nil, eq, 10000).Metrics
	assert.InDelta(t, -10.0, m.MaxDrawdownPercent, 1e-9)
}

func TestMaxDailyDrawdown_Intraday(t *testing.T) {
	// Day 1 closes at 10000 after an intraday dip the daily curve never sees.
	eq := []model.EquityPoint{
		{Time: at(1, 0), Start: true, Balance: 10000},
		{Time: at(1, 10), Balance: 10500},
		{Time: at(1, 11), Balance: 9450}, // -10% from 10500
		{Time: at(1, 15), Balance: 10000},
		{Time: at(2, 10), Balance: 9500}, // -5% from day-1 close
	}
	assert.InDelta(t, -10.0, MaxDailyDrawdown(eq), 1e-9)

	curve := DrawdownCurve(eq)
	assert.InDelta(t, -5.0, curve[1].Drawdown, 1e-9)
}

func TestDrawdown_Empty(t *testing.T) {
	assert.Empty(t, DrawdownCurve(nil))
	assert.Zero(t, MaxDailyDrawdown(nil))
}

func TestRatio_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		PF Ratio `json:"pf"`
	}{Inf})
	require.NoError(t, err)
	assert.JSONEq(t, `{"pf":"Infinity"}`, string(b))

	b, err = json.Marshal(Ratio(2))
	require.NoError(t, err)
	assert.Equal(t, "2", string(b))

	var r Ratio
	require.NoError(t, json.Unmarshal([]byte(`"Infinity"`), &r))
	assert.True(t, r.IsInf())
	require.NoError(t, json.Unmarshal([]byte(`1.5`), &r))
	assert.Equal(t, Ratio(1.5), r)
	assert.Equal(t, "1.50", r.String())
	assert.False(t, math.IsNaN(float64(r)))
}
