package model

import (
	"encoding/json"
	"time"
)

// TradeStatus is the lifecycle state of a trade.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "Open"
	TradeClosed TradeStatus = "Closed"
)

// CloseReason records why a trade was closed.
type CloseReason string

const (
	CloseStopLoss   CloseReason = "StopLoss"
	CloseTakeProfit CloseReason = "TakeProfit"
	CloseEndOfData  CloseReason = "EndOfData"
)

// Trade is a single simulated position from entry to exit.
type Trade struct {
	OpenTime    time.Time
	Direction   Direction
	EntryPrice  float64
	StopLoss    float64
	TakeProfit  float64
	Confidence  float64
	Status      TradeStatus
	CloseTime   time.Time
	ClosePrice  float64
	CloseReason CloseReason
	Pips        float64
	Money       float64
}

// Closed reports whether the trade has been exited.
func (t *Trade) Closed() bool { return t.Status == TradeClosed }

type tradeJSON struct {
	Timestamp      time.Time    `json:"timestamp"`
	Type           Direction    `json:"type"`
	EntryPrice     float64      `json:"entry_price"`
	SL             float64      `json:"sl"`
	TP             float64      `json:"tp"`
	Confidence     float64      `json:"confidence"`
	Status         TradeStatus  `json:"status"`
	ClosePrice     *float64     `json:"close_price"`
	CloseTimestamp *time.Time   `json:"close_timestamp"`
	CloseReason    *CloseReason `json:"close_reason"`
	Pips           *float64     `json:"pips"`
	ProfitMoney    *float64     `json:"profit_money"`
}

// MarshalJSON renders close fields as null while the trade is open.
func (t Trade) MarshalJSON() ([]byte, error) {
	out := tradeJSON{
		Timestamp:  t.OpenTime,
		Type:       t.Direction,
		EntryPrice: t.EntryPrice,
		SL:         t.StopLoss,
		TP:         t.TakeProfit,
		Confidence: t.Confidence,
		Status:     t.Status,
	}
	if t.Closed() {
		closeTime, reason := t.CloseTime, t.CloseReason
		price, pips, money := t.ClosePrice, t.Pips, t.Money
		out.ClosePrice = &price
		out.CloseTimestamp = &closeTime
		out.CloseReason = &reason
		out.Pips = &pips
		out.ProfitMoney = &money
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (t *Trade) UnmarshalJSON(data []byte) error {
	var in tradeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*t = Trade{
		OpenTime:   in.Timestamp,
		Direction:  in.Type,
		EntryPrice: in.EntryPrice,
		StopLoss:   in.SL,
		TakeProfit: in.TP,
		Confidence: in.Confidence,
		Status:     in.Status,
	}
	if in.ClosePrice != nil {
		t.ClosePrice = *in.ClosePrice
	}
	if in.CloseTimestamp != nil {
		t.CloseTime = *in.CloseTimestamp
	}
	if in.CloseReason != nil {
		t.CloseReason = *in.CloseReason
	}
	if in.Pips != nil {
		t.Pips = *in.Pips
	}
	if in.ProfitMoney != nil {
		t.Money = *in.ProfitMoney
	}
	return nil
}
