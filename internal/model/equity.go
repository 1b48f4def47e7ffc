package model

import (
	"encoding/json"
	"time"
)

// StartLabel is the timestamp rendered for the synthetic first equity point.
const StartLabel = "Start"

// EquityPoint is the account state after a close event.
type EquityPoint struct {
	Time    time.Time
	Start   bool
	Pips    float64
	Balance float64
}

type equityJSON struct {
	Timestamp string  `json:"timestamp"`
	Pips      float64 `json:"pips"`
	Balance   float64 `json:"balance"`
}

// MarshalJSON renders the start anchor's timestamp as "Start".
func (p EquityPoint) MarshalJSON() ([]byte, error) {
	ts := StartLabel
	if !p.Start {
		ts = p.Time.UTC().Format(time.RFC3339)
	}
	return json.Marshal(equityJSON{Timestamp: ts, Pips: p.Pips, Balance: p.Balance})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (p *EquityPoint) UnmarshalJSON(data []byte) error {
	var in equityJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*p = EquityPoint{Pips: in.Pips, Balance: in.Balance}
	if in.Timestamp == StartLabel {
		p.Start = true
		return nil
	}
	ts, err := time.Parse(time.RFC3339, in.Timestamp)
	if err != nil {
		return err
	}
	p.Time = ts
	return nil
}

// DrawdownPoint is the daily drawdown from the running peak, in percent (<= 0).
type DrawdownPoint struct {
	Day      string  `json:"day"`
	Drawdown float64 `json:"drawdown"`
}
