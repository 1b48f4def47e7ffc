package notification

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"trading-backtestv1/internal/backtest"
	"trading-backtestv1/internal/jobs"
)

const sendTimeout = 10 * time.Second

// Dispatcher turns terminal job events into alerts and sends them in the
// background so job goroutines never wait on the network.
type Dispatcher struct {
	notifier Notifier
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher sending through n.
func NewDispatcher(n Notifier) *Dispatcher {
	return &Dispatcher{notifier: n}
}

// Listen is a jobs.Listener.
func (d *Dispatcher) Listen(ev jobs.Event) {
	alert, ok := JobAlert(ev)
	if !ok {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := d.notifier.Send(ctx, alert); err != nil {
			log.Printf("[notify] job %s: %v", alert.JobID, err)
		}
	}()
}

// Wait blocks until every in-flight alert has been sent or has failed.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// JobAlert builds the alert for a terminal job event. ok is false for
// non-terminal events.
func JobAlert(ev jobs.Event) (alert Alert, ok bool) {
	s := ev.Snapshot
	switch s.Status {
	case jobs.StatusCompleted:
		alert = Alert{
			Level:   AlertInfo,
			Event:   s.Kind + ".completed",
			Title:   fmt.Sprintf("%s %s completed", s.Kind, shortID(s.ID)),
			Message: "completed",
			JobID:   s.ID,
		}
		if res, isBacktest := ev.Result.(*backtest.Result); isBacktest && res != nil {
			alert.Message = Summary(res)
			alert.Fields = ReportFields(res)
			if res.Metrics.NetProfit < 0 {
				alert.Level = AlertWarning
			}
		}
		if d, ok := elapsed(s); ok {
			alert.Fields = append(alert.Fields, Field{"Elapsed", d})
		}
		return alert, true
	case jobs.StatusFailed:
		alert = Alert{
			Level:   AlertCritical,
			Event:   s.Kind + ".failed",
			Title:   fmt.Sprintf("%s %s failed", s.Kind, shortID(s.ID)),
			Message: s.Error,
			JobID:   s.ID,
		}
		if d, ok := elapsed(s); ok {
			alert.Fields = append(alert.Fields, Field{"Elapsed", d})
		}
		return alert, true
	}
	return Alert{}, false
}

// Summary renders the headline numbers of a backtest result on one line.
func Summary(res *backtest.Result) string {
	m := res.Metrics
	return fmt.Sprintf("%s %dd: %d trades, win rate %.1f%%, net %.2f (%.2f%%), PF %s, max DD %.2f%%",
		res.Symbol, res.PeriodDays, m.TotalTrades, m.WinRate*100, m.NetProfit, m.ReturnPercent,
		m.ProfitFactor, m.MaxDrawdownPercent)
}

// ReportFields lays out a backtest result as labelled report lines.
func ReportFields(res *backtest.Result) []Field {
	m := res.Metrics
	return []Field{
		{"Symbol", res.Symbol},
		{"Period", fmt.Sprintf("%dd (%d bars)", res.PeriodDays, res.Bars)},
		{"Signals", fmt.Sprintf("%d buy / %d sell", res.SignalStats.Buy, res.SignalStats.Sell)},
		{"Trades", fmt.Sprintf("%d (%d W / %d L)", m.TotalTrades, m.WinningTrades, m.LosingTrades)},
		{"Win rate", fmt.Sprintf("%.1f%%", m.WinRate*100)},
		{"Net profit", fmt.Sprintf("%+.2f (%+.2f%%)", m.NetProfit, m.ReturnPercent)},
		{"Total pips", fmt.Sprintf("%+.1f", m.TotalPips)},
		{"Profit factor", m.ProfitFactor.String()},
		{"Max drawdown", fmt.Sprintf("%.2f%%", m.MaxDrawdownPercent)},
		{"Final balance", fmt.Sprintf("%.2f", m.FinalBalance)},
	}
}

func elapsed(s jobs.Snapshot) (string, bool) {
	if s.StartedAt == nil || s.FinishedAt == nil {
		return "", false
	}
	return s.FinishedAt.Sub(*s.StartedAt).Round(time.Millisecond).String(), true
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
