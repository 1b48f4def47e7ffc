// Package marketdata loads historical bars from files and memory and applies
// the lookback window shared by every bar source.
package marketdata

import (
	"context"
	"sort"
	"time"

	"trading-backtestv1/internal/model"
)

// Window keeps bars whose time lies within periodDays of the newest bar.
// periodDays <= 0 keeps everything. bars must be sorted.
func Window(bars []model.Bar, periodDays int) []model.Bar {
	if periodDays <= 0 || len(bars) == 0 {
		return bars
	}
	cutoff := bars[len(bars)-1].Time.AddDate(0, 0, -periodDays)
	i := sort.Search(len(bars), func(i int) bool { return !bars[i].Time.Before(cutoff) })
	return bars[i:]
}

// Normalize sorts bars by time and drops duplicate timestamps, keeping the
// last occurrence, so the result is strictly increasing.
func Normalize(bars []model.Bar) []model.Bar {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

// SliceSource serves bars held in memory.
type SliceSource struct {
	bars map[string][]model.Bar
}

// NewSliceSource creates an empty in-memory source.
func NewSliceSource() *SliceSource {
	return &SliceSource{bars: make(map[string][]model.Bar)}
}

// Add stores a copy of bars for symbol, normalized.
func (s *SliceSource) Add(symbol string, bars []model.Bar) {
	cp := make([]model.Bar, len(bars))
	copy(cp, bars)
	s.bars[symbol] = Normalize(cp)
}

// LoadBars implements model.BarSource.
func (s *SliceSource) LoadBars(ctx context.Context, symbol string, periodDays int) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bars := Window(s.bars[symbol], periodDays)
	if len(bars) == 0 {
		return nil, model.ErrNoBars
	}
	out := make([]model.Bar, len(bars))
	copy(out, bars)
	return out, nil
}

// Span returns the first and last bar times.
func Span(bars []model.Bar) (from, to time.Time) {
	if len(bars) == 0 {
		return
	}
	return bars[0].Time, bars[len(bars)-1].Time
}
