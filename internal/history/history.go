// Package history records completed backtests as saved strategies.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"trading-backtestv1/internal/backtest"
	"trading-backtestv1/internal/jobs"
	"trading-backtestv1/internal/store/sqlite"
)

// Saver persists strategy records.
type Saver interface {
	SaveStrategy(ctx context.Context, rec sqlite.StrategyRecord) error
}

// Recorder saves every completed backtest job.
type Recorder struct {
	saver Saver
	now   func() time.Time
}

// NewRecorder creates a recorder writing through saver.
func NewRecorder(saver Saver) *Recorder {
	return &Recorder{saver: saver, now: time.Now}
}

// Listen is a jobs.Listener.
func (r *Recorder) Listen(ev jobs.Event) {
	if ev.Snapshot.Status != jobs.StatusCompleted {
		return
	}
	res, ok := ev.Result.(*backtest.Result)
	if !ok || res == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Save(ctx, ev.Snapshot.ID, res); err != nil {
		log.Printf("[history] job %s: %v", ev.Snapshot.ID, err)
	}
}

// Save stores res under a new strategy id.
func (r *Recorder) Save(ctx context.Context, jobID string, res *backtest.Result) error {
	rec, err := Record(jobID, res, r.now().UTC())
	if err != nil {
		return err
	}
	return r.saver.SaveStrategy(ctx, rec)
}

// Record builds the strategy record of res.
func Record(jobID string, res *backtest.Result, now time.Time) (sqlite.StrategyRecord, error) {
	cfg, err := json.Marshal(res.Config)
	if err != nil {
		return sqlite.StrategyRecord{}, fmt.Errorf("marshal config: %w", err)
	}
	metrics, err := json.Marshal(res.Metrics)
	if err != nil {
		return sqlite.StrategyRecord{}, fmt.Errorf("marshal metrics: %w", err)
	}
	name := res.Name
	if name == "" {
		name = fmt.Sprintf("%s %dd %s", res.Symbol, res.PeriodDays, now.Format("2006-01-02 15:04"))
	}
	return sqlite.StrategyRecord{
		ID:        uuid.NewString(),
		JobID:     jobID,
		Name:      name,
		Symbol:    res.Symbol,
		Config:    cfg,
		Metrics:   metrics,
		CreatedAt: now,
	}, nil
}
