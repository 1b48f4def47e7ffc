package indicator

import (
	"math"
	"strconv"

	"trading-backtestv1/internal/model"
)

// ATR is the Wilder-smoothed average of true range.
// The first bar has no previous close, so its true range is high - low.
type ATR struct {
	smma      *SMMA
	prevClose float64
	seen      bool
}

// NewATR creates an ATR with the given period.
func NewATR(period int) *ATR {
	return &ATR{smma: NewSMMA(period)}
}

func (a *ATR) Name() string { return "ATR_" + strconv.Itoa(a.smma.period) }

func (a *ATR) Update(bar model.Bar) {
	a.smma.Push(TrueRange(bar, a.prevClose, a.seen))
	a.prevClose = bar.Close
	a.seen = true
}

func (a *ATR) Value() float64 { return a.smma.Value() }
func (a *ATR) Ready() bool    { return a.smma.Ready() }

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|),
// or high-low when there is no previous close.
func TrueRange(bar model.Bar, prevClose float64, hasPrev bool) float64 {
	tr := bar.High - bar.Low
	if !hasPrev {
		return tr
	}
	return math.Max(tr, math.Max(math.Abs(bar.High-prevClose), math.Abs(bar.Low-prevClose)))
}
