package model

import (
	"context"
	"errors"
)

// ErrNoBars is returned when a bar source has nothing for the requested window.
var ErrNoBars = errors.New("no bars available")

// BarSource loads historical bars for one symbol.
// periodDays bounds the lookback relative to the newest bar; <= 0 keeps everything.
// Implementations return bars ordered by strictly increasing time.
type BarSource interface {
	LoadBars(ctx context.Context, symbol string, periodDays int) ([]Bar, error)
}

// BarWriter persists raw bars.
type BarWriter interface {
	InsertBars(ctx context.Context, symbol string, bars []Bar) error
}
