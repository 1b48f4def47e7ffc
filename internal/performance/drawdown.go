package performance

import (
	"time"

	"trading-backtestv1/internal/model"
)

type dayClose struct {
	day     time.Time
	balance float64
}

// dailyCloses resamples the equity curve to one balance per UTC calendar day,
// from the first point's day to the last. Days without events carry the
// previous balance forward.
func dailyCloses(equity []model.EquityPoint) []dayClose {
	if len(equity) == 0 {
		return nil
	}
	last := make(map[time.Time]float64)
	first := truncDay(equity[0].Time)
	end := first
	for _, p := range equity {
		d := truncDay(p.Time)
		last[d] = p.Balance
		if d.After(end) {
			end = d
		}
	}

	var out []dayClose
	bal := equity[0].Balance
	for d := first; !d.After(end); d = d.AddDate(0, 0, 1) {
		if b, ok := last[d]; ok {
			bal = b
		}
		out = append(out, dayClose{day: d, balance: bal})
	}
	return out
}

// DrawdownCurve returns the daily drawdown from the running peak, in percent.
// Every value is <= 0.
func DrawdownCurve(equity []model.EquityPoint) []model.DrawdownPoint {
	closes := dailyCloses(equity)
	out := make([]model.DrawdownPoint, 0, len(closes))
	peak := 0.0
	for i, c := range closes {
		if i == 0 || c.balance > peak {
			peak = c.balance
		}
		out = append(out, model.DrawdownPoint{
			Day:      c.day.Format(DayLayout),
			Drawdown: drawdown(c.balance, peak),
		})
	}
	return out
}

// MaxDailyDrawdown returns the worst peak-to-trough move inside a single day,
// in percent (<= 0). Each day starts from the previous day's closing balance
// and walks every equity point of that day.
func MaxDailyDrawdown(equity []model.EquityPoint) float64 {
	worst := 0.0
	if len(equity) == 0 {
		return worst
	}

	day := truncDay(equity[0].Time)
	peak := equity[0].Balance
	prevClose := equity[0].Balance
	for _, p := range equity {
		if d := truncDay(p.Time); !d.Equal(day) {
			day = d
			peak = prevClose
		}
		if p.Balance > peak {
			peak = p.Balance
		}
		if dd := drawdown(p.Balance, peak); dd < worst {
			worst = dd
		}
		prevClose = p.Balance
	}
	return worst
}

func drawdown(balance, peak float64) float64 {
	if peak <= 0 {
		return 0
	}
	return (balance - peak) / peak * 100
}

func truncDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
