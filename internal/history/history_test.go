package history

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-backtestv1/internal/backtest"
	"trading-backtestv1/internal/jobs"
	"trading-backtestv1/internal/performance"
	"trading-backtestv1/internal/store/sqlite"
)

func TestRecord_DefaultName(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	res := &backtest.Result{Symbol: "XAUUSD", PeriodDays: 90, Config: backtest.DefaultConfig(),
		Metrics: performance.Metrics{TotalTrades: 3, ProfitFactor: performance.Inf}}

	rec, err := Record("job-1", res, now)
	require.NoError(t, err)
	assert.Equal(t, "XAUUSD 90d 2024-03-05 14:30", rec.Name)
	assert.Equal(t, "job-1", rec.JobID)
	assert.NotEmpty(t, rec.ID)

	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Metrics, &m))
	assert.Equal(t, "Infinity", m["profit_factor"])
}

func TestRecorder_SavesCompletedBacktests(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)
	defer store.Close()

	r := NewRecorder(store)
	res := &backtest.Result{Name: "gold momentum", Symbol: "XAUUSD", Config: backtest.DefaultConfig()}

	r.Listen(jobs.Event{Snapshot: jobs.Snapshot{ID: "a", Status: jobs.StatusRunning}})
	r.Listen(jobs.Event{Snapshot: jobs.Snapshot{ID: "b", Status: jobs.StatusCompleted}, Result: "not a result"})
	r.Listen(jobs.Event{Snapshot: jobs.Snapshot{ID: "c", Status: jobs.StatusCompleted}, Result: res})

	list, err := store.ListStrategies(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "gold momentum", list[0].Name)
	assert.Equal(t, "c", list[0].JobID)
}
