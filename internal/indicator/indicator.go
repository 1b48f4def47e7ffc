// Package indicator computes technical indicators over bar series.
//
// Every indicator is streaming: it sees one bar at a time and never looks
// ahead, so a value at bar i depends only on bars 0..i.
package indicator

import "trading-backtestv1/internal/model"

// Indicator is the interface for all technical indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "EMA_50", "RSI_14").
	Name() string

	// Update feeds the next bar and recalculates.
	Update(bar model.Bar)

	// Value returns the current value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}

// valueOrNaN maps a not-ready indicator to NaN.
func valueOrNaN(ready bool, v float64) float64 {
	if !ready {
		return nan
	}
	return v
}
