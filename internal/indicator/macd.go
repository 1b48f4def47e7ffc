package indicator

import (
	"fmt"

	"trading-backtestv1/internal/model"
)

// MACD is EMA(fast) - EMA(slow) with an EMA signal line over the MACD values.
// The signal line only starts accumulating once the MACD line itself is ready.
type MACD struct {
	fast, slow *EMA
	signal     *EMA
	line       float64
}

// NewMACD creates a MACD with the given fast, slow and signal periods.
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fast:   NewEMA(fast),
		slow:   NewEMA(slow),
		signal: NewEMA(signal),
	}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD_%d_%d_%d", m.fast.period, m.slow.period, m.signal.period)
}

func (m *MACD) Update(bar model.Bar) {
	m.fast.Update(bar)
	m.slow.Update(bar)
	if !m.slow.Ready() {
		return
	}
	m.line = m.fast.Value() - m.slow.Value()
	m.signal.Push(m.line)
}

// Value returns the MACD line.
func (m *MACD) Value() float64 { return m.line }

// Ready reports whether the MACD line is defined.
func (m *MACD) Ready() bool { return m.slow.Ready() && m.fast.Ready() }

// Signal returns the signal line.
func (m *MACD) Signal() float64 { return m.signal.Value() }

// Hist returns MACD minus signal.
func (m *MACD) Hist() float64 { return m.line - m.signal.Value() }

// SignalReady reports whether the signal line and histogram are defined.
func (m *MACD) SignalReady() bool { return m.Ready() && m.signal.Ready() }
