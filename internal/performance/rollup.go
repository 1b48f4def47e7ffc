package performance

import (
	"github.com/shopspring/decimal"

	"trading-backtestv1/internal/model"
)

type bucket struct {
	profit, pips       decimal.Decimal
	count, wins, losses int
}

func (b *bucket) add(t *model.Trade) {
	b.profit = b.profit.Add(decimal.NewFromFloat(t.Money))
	b.pips = b.pips.Add(decimal.NewFromFloat(t.Pips))
	b.count++
	switch {
	case t.Pips > 0:
		b.wins++
	case t.Pips < 0:
		b.losses++
	}
}

// group buckets closed trades by their UTC close time formatted with layout.
func group(trades []model.Trade, layout string) map[string]*bucket {
	out := make(map[string]*bucket)
	for i := range trades {
		t := &trades[i]
		if !t.Closed() {
			continue
		}
		key := t.CloseTime.UTC().Format(layout)
		b, ok := out[key]
		if !ok {
			b = &bucket{}
			out[key] = b
		}
		b.add(t)
	}
	return out
}

// Monthly rolls closed trades up by close month ("2006-01").
// Percent is relative to the initial capital.
func Monthly(trades []model.Trade, initialCapital float64) map[string]MonthlyStats {
	initial := decimal.NewFromFloat(initialCapital)
	out := make(map[string]MonthlyStats)
	for key, b := range group(trades, MonthLayout) {
		s := MonthlyStats{
			Profit:  b.profit.InexactFloat64(),
			Percent: percentOf(b.profit, initial),
			Pips:    b.pips.InexactFloat64(),
			Trades:  b.count,
			Wins:    b.wins,
			Losses:  b.losses,
		}
		if b.count > 0 {
			s.WinRate = float64(b.wins) / float64(b.count)
		}
		out[key] = s
	}
	return out
}

// Daily rolls closed trades up by close date ("2006-01-02").
// Percent is relative to the initial capital.
func Daily(trades []model.Trade, initialCapital float64) map[string]DailyStats {
	initial := decimal.NewFromFloat(initialCapital)
	out := make(map[string]DailyStats)
	for key, b := range group(trades, DayLayout) {
		out[key] = DailyStats{
			Profit:  b.profit.InexactFloat64(),
			Percent: percentOf(b.profit, initial),
			Count:   b.count,
			Pips:    b.pips.InexactFloat64(),
		}
	}
	return out
}
