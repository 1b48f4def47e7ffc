package indicator

import (
	"math"
	"testing"
	"time"

	"trading-backtestv1/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helper
// ────────────────────────────────────────────────────────────

var t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func bar(close float64) model.Bar {
	return model.NewBar(t0, close, close+0.5, close-0.5, close, 0)
}

func hlc(i int, high, low, close float64) model.Bar {
	return model.NewBar(t0.Add(time.Duration(i)*time.Hour), close, high, low, close, 0)
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// ────────────────────────────────────────────────────────────
// SMA
// ────────────────────────────────────────────────────────────

func TestSMA_Correctness_Period3(t *testing.T) {
	// SMA after bar 3: (100+102+104)/3 = 102
	// SMA after bar 4: (102+104+103)/3 = 103
	// SMA after bar 5: (104+103+105)/3 = 104
	sma := NewSMA(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.0, 103.0, 104.0}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		sma.Update(bar(p))
		if sma.Ready() != ready[i] {
			t.Errorf("bar %d: Ready()=%v, want %v", i, sma.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "SMA(3)", sma.Value(), expected[i], 0.0001)
		}
	}
}

func TestSMA_Window_OldestFirst(t *testing.T) {
	sma := NewSMA(3)
	for _, p := range []float64{1, 2} {
		sma.Push(p)
	}
	if got := sma.Window(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("partial window = %v, want [1 2]", got)
	}
	for _, p := range []float64{3, 4, 5} {
		sma.Push(p)
	}
	got := sma.Window()
	want := []float64{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("window = %v, want %v", got, want)
		}
	}
}

// ────────────────────────────────────────────────────────────
// EMA
// ────────────────────────────────────────────────────────────

func TestEMA_Correctness_Period3(t *testing.T) {
	// multiplier = 2/(3+1) = 0.5
	// seed after bar 3 = (100+102+104)/3 = 102
	// bar 4: 103*0.5 + 102*0.5 = 102.5
	// bar 5: 105*0.5 + 102.5*0.5 = 103.75
	ema := NewEMA(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.0, 102.5, 103.75}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		ema.Update(bar(p))
		if ema.Ready() != ready[i] {
			t.Errorf("bar %d: Ready()=%v, want %v", i, ema.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "EMA(3)", ema.Value(), expected[i], 0.0001)
		}
	}
}

func TestEMA_Correctness_Period5(t *testing.T) {
	mult := 2.0 / 6.0
	prices := []float64{44, 44.25, 44.50, 43.75, 44.50, 44.25, 44.00}
	seed := (44.0 + 44.25 + 44.50 + 43.75 + 44.50) / 5.0

	ema := NewEMA(5)
	for _, p := range prices[:5] {
		ema.Update(bar(p))
	}
	assertClose(t, "EMA(5) seed", ema.Value(), seed, 1e-9)

	ema.Update(bar(prices[5]))
	e6 := 44.25*mult + seed*(1-mult)
	assertClose(t, "EMA(5) bar 6", ema.Value(), e6, 1e-9)

	ema.Update(bar(prices[6]))
	assertClose(t, "EMA(5) bar 7", ema.Value(), 44.00*mult+e6*(1-mult), 1e-9)
}

// ────────────────────────────────────────────────────────────
// SMMA (Wilder)
// ────────────────────────────────────────────────────────────

func TestSMMA_Correctness_Period3(t *testing.T) {
	// seed = 102, then (102*2+103)/3 = 102.3333, (102.3333*2+105)/3 = 103.2222
	smma := NewSMMA(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.0, 102.3333, 103.2222}

	for i, p := range prices {
		smma.Update(bar(p))
		if i >= 2 {
			assertClose(t, "SMMA(3)", smma.Value(), expected[i], 0.001)
		}
	}
}

// ────────────────────────────────────────────────────────────
// RSI (Wilder)
// ────────────────────────────────────────────────────────────

func TestRSI_Correctness_Period5(t *testing.T) {
	// Deltas over the first 5 steps: +0.34 -0.25 -0.48 +0.72 +0.50
	//   avgGain = 1.56/5 = 0.312, avgLoss = 0.73/5 = 0.146
	//   RSI = 100 - 100/(1+2.13699) = 68.112
	// Then Wilder smoothing:
	//   +0.27 → 72.219, +0.32 → 76.658, +0.42 → 81.509
	prices := []float64{44, 44.34, 44.09, 43.61, 44.33, 44.83, 45.10, 45.42, 45.84}
	want := map[int]float64{5: 68.112, 6: 72.219, 7: 76.658, 8: 81.509}

	rsi := NewRSI(5)
	for i, p := range prices {
		rsi.Update(bar(p))
		if (i >= 5) != rsi.Ready() {
			t.Errorf("bar %d: Ready()=%v", i, rsi.Ready())
		}
		if w, ok := want[i]; ok {
			assertClose(t, "RSI(5)", rsi.Value(), w, 0.1)
		}
	}
}

func TestRSI_AllUp_Is100(t *testing.T) {
	rsi := NewRSI(5)
	for i := 0; i < 10; i++ {
		rsi.Update(bar(100 + float64(i)))
	}
	assertClose(t, "RSI all up", rsi.Value(), 100.0, 0.001)
}

func TestRSI_AllDown_Is0(t *testing.T) {
	rsi := NewRSI(5)
	for i := 0; i < 10; i++ {
		rsi.Update(bar(200 - float64(i)))
	}
	assertClose(t, "RSI all down", rsi.Value(), 0.0, 0.001)
}

func TestRSI_Flat_IsNeutral(t *testing.T) {
	rsi := NewRSI(5)
	for i := 0; i < 10; i++ {
		rsi.Update(bar(100))
	}
	assertClose(t, "RSI flat", rsi.Value(), 50.0, 0.001)
}

// ────────────────────────────────────────────────────────────
// MACD
// ────────────────────────────────────────────────────────────

func TestMACD_Correctness(t *testing.T) {
	// EMA(2): 10.5, 11.5, 12.5, 13.5 from bar 2 on
	// EMA(3): 11, 12, 13 from bar 3 on
	// MACD = 0.5 from bar 3; signal EMA(2) over MACD ready one bar later.
	m := NewMACD(2, 3, 2)
	prices := []float64{10, 11, 12, 13, 14}
	for i, p := range prices {
		m.Update(bar(p))
		switch i {
		case 0, 1:
			if m.Ready() {
				t.Errorf("bar %d: MACD should not be ready", i)
			}
		case 2:
			if !m.Ready() || m.SignalReady() {
				t.Errorf("bar 2: Ready=%v SignalReady=%v", m.Ready(), m.SignalReady())
			}
			assertClose(t, "MACD bar 2", m.Value(), 0.5, 1e-9)
		default:
			if !m.SignalReady() {
				t.Errorf("bar %d: signal should be ready", i)
			}
			assertClose(t, "MACD", m.Value(), 0.5, 1e-9)
			assertClose(t, "signal", m.Signal(), 0.5, 1e-9)
			assertClose(t, "hist", m.Hist(), 0, 1e-9)
		}
	}
}

func TestMACD_SignalLagsLine(t *testing.T) {
	m := NewMACD(3, 6, 4)
	for i := 0; i < 30; i++ {
		m.Update(bar(100 + float64(i*i)/10))
	}
	// Accelerating uptrend: MACD rises, signal trails below it.
	if m.Hist() <= 0 {
		t.Errorf("expected positive histogram in accelerating uptrend, got %.6f", m.Hist())
	}
}

// ────────────────────────────────────────────────────────────
// Bollinger
// ────────────────────────────────────────────────────────────

func TestBollinger_SampleStd(t *testing.T) {
	// Window 1,2,3: mean 2, sample std 1 → 0 / 2 / 4
	// Window 2,3,4: mean 3 → 1 / 3 / 5
	bb := NewBollinger(3, 2)
	for _, p := range []float64{1, 2, 3} {
		bb.Update(bar(p))
	}
	assertClose(t, "middle", bb.Value(), 2, 1e-9)
	assertClose(t, "upper", bb.Upper(), 4, 1e-9)
	assertClose(t, "lower", bb.Lower(), 0, 1e-9)

	bb.Update(bar(4))
	assertClose(t, "middle", bb.Value(), 3, 1e-9)
	assertClose(t, "upper", bb.Upper(), 5, 1e-9)
	assertClose(t, "lower", bb.Lower(), 1, 1e-9)
}

// ────────────────────────────────────────────────────────────
// ATR
// ────────────────────────────────────────────────────────────

func TestATR_Correctness_Period2(t *testing.T) {
	// TR: 2 (first bar, high-low), 2, 4 → seed 2, then (2+4)/2 = 3
	// Gap bar: TR = max(1, |20-13|, |19-13|) = 7 → (3+7)/2 = 5
	atr := NewATR(2)
	atr.Update(hlc(0, 10, 8, 9))
	if atr.Ready() {
		t.Fatal("ATR(2) ready after one bar")
	}
	atr.Update(hlc(1, 11, 9, 10))
	assertClose(t, "ATR seed", atr.Value(), 2, 1e-9)
	atr.Update(hlc(2, 14, 10, 13))
	assertClose(t, "ATR bar 3", atr.Value(), 3, 1e-9)
	atr.Update(hlc(3, 20, 19, 19.5))
	assertClose(t, "ATR gap", atr.Value(), 5, 1e-9)
}

func TestTrueRange_FirstBar(t *testing.T) {
	got := TrueRange(hlc(0, 12, 9, 10), 0, false)
	assertClose(t, "first TR", got, 3, 1e-9)
}

// ────────────────────────────────────────────────────────────
// Cross-indicator ordering
// ────────────────────────────────────────────────────────────

func TestIndicators_TrendingUp_Ordering(t *testing.T) {
	sma5 := NewSMA(5)
	sma20 := NewSMA(20)
	ema5 := NewEMA(5)

	for i := 0; i < 30; i++ {
		b := bar(100 + float64(i))
		sma5.Update(b)
		sma20.Update(b)
		ema5.Update(b)
	}

	if sma5.Value() <= sma20.Value() {
		t.Errorf("SMA(5) should be > SMA(20) in uptrend: SMA5=%.2f, SMA20=%.2f", sma5.Value(), sma20.Value())
	}
	if ema5.Value() <= sma20.Value() {
		t.Errorf("EMA(5) should be > SMA(20) in uptrend: EMA5=%.2f, SMA20=%.2f", ema5.Value(), sma20.Value())
	}
}

func TestEMA_MoreResponsiveThanSMA(t *testing.T) {
	sma := NewSMA(10)
	ema := NewEMA(10)
	for i := 0; i < 20; i++ {
		sma.Update(bar(100))
		ema.Update(bar(100))
	}
	sma.Update(bar(120))
	ema.Update(bar(120))

	if ema.Value()-100 <= sma.Value()-100 {
		t.Errorf("EMA should react more to a jump: EMA=%.4f SMA=%.4f", ema.Value(), sma.Value())
	}
}
