package model

import "time"

// Direction is the side of a signal or trade.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
	None Direction = "NONE"
)

// Sign returns +1 for Buy, -1 for Sell and 0 otherwise.
func (d Direction) Sign() float64 {
	switch d {
	case Buy:
		return 1
	case Sell:
		return -1
	}
	return 0
}

// Reasons a signal resolved to NONE.
const (
	ReasonWarmup     = "warmup"
	ReasonThreshold  = "threshold"
	ReasonTrend      = "trend"
	ReasonVolatility = "volatility"
	ReasonMomentum   = "momentum"
)

// Signal is the per-bar trading decision.
type Signal struct {
	Time         time.Time `json:"time"`
	Direction    Direction `json:"direction"`
	Probability  float64   `json:"probability"`
	TrendOK      bool      `json:"trend_ok"`
	VolatilityOK bool      `json:"volatility_ok"`
	MomentumOK   bool      `json:"momentum_ok"`
	Reason       string    `json:"reason,omitempty"`
}

// Actionable reports whether the signal asks to open a position.
func (s Signal) Actionable() bool {
	return s.Direction == Buy || s.Direction == Sell
}
