package indicator

import (
	"math"
	"strconv"

	"trading-backtestv1/internal/model"
)

// Bollinger computes SMA(period) +/- k * sample standard deviation of the window.
type Bollinger struct {
	sma *SMA
	k   float64
	std float64
}

// NewBollinger creates Bollinger Bands over period bars with width k.
func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{sma: NewSMA(period), k: k}
}

func (b *Bollinger) Name() string { return "BB_" + strconv.Itoa(b.sma.period) }

func (b *Bollinger) Update(bar model.Bar) {
	b.sma.Update(bar)
	if !b.sma.Ready() {
		return
	}
	b.std = sampleStd(b.sma.Window(), b.sma.Value())
}

// Value returns the middle band.
func (b *Bollinger) Value() float64 { return b.sma.Value() }

// Ready reports whether a full window has been seen.
func (b *Bollinger) Ready() bool { return b.sma.Ready() }

// Upper returns the upper band.
func (b *Bollinger) Upper() float64 { return b.sma.Value() + b.k*b.std }

// Lower returns the lower band.
func (b *Bollinger) Lower() float64 { return b.sma.Value() - b.k*b.std }

// sampleStd is the standard deviation with n-1 degrees of freedom.
func sampleStd(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
