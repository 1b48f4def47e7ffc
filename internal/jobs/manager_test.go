package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-backtestv1/internal/logger"
)

func waitDone(t *testing.T, m *Manager, id string) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := m.Wait(ctx, id)
	require.NoError(t, err)
	return s
}

func TestSubmit_Completes(t *testing.T) {
	m := NewManager(context.Background(), 2)
	id := m.Submit("backtest", func(ctx context.Context, progress ProgressFunc) (any, error) {
		progress(50, "halfway")
		return "ok", nil
	})

	_, err := uuid.Parse(id)
	require.NoError(t, err)

	s := waitDone(t, m, id)
	assert.Equal(t, StatusCompleted, s.Status)
	assert.Equal(t, 100, s.Progress)
	require.NotNil(t, s.StartedAt)
	require.NotNil(t, s.FinishedAt)

	res, _, err := m.Result(id)
	require.NoError(t, err)
	assert.Equal(t, "ok", res)
}

func TestSubmit_ReturnsBeforeWorkFinishes(t *testing.T) {
	m := NewManager(context.Background(), 1)
	release := make(chan struct{})
	id := m.Submit("backtest", func(ctx context.Context, progress ProgressFunc) (any, error) {
		<-release
		return nil, nil
	})

	s, err := m.Get(id)
	require.NoError(t, err)
	assert.Contains(t, []Status{StatusPending, StatusRunning}, s.Status)
	_, _, err = m.Result(id)
	require.NoError(t, err)

	close(release)
	assert.Equal(t, StatusCompleted, waitDone(t, m, id).Status)
}

func TestSubmit_FailureDiscardsResult(t *testing.T) {
	m := NewManager(context.Background(), 1)
	id := m.Submit("backtest", func(ctx context.Context, progress ProgressFunc) (any, error) {
		return "partial", errors.New("no bars available")
	})

	s := waitDone(t, m, id)
	assert.Equal(t, StatusFailed, s.Status)
	assert.Equal(t, "no bars available", s.Error)

	res, _, err := m.Result(id)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestSubmit_PanicIsRecovered(t *testing.T) {
	m := NewManager(context.Background(), 1)
	id := m.Submit("backtest", func(ctx context.Context, progress ProgressFunc) (any, error) {
		var bars []int
		_ = bars[3]
		return nil, nil
	})

	s := waitDone(t, m, id)
	assert.Equal(t, StatusFailed, s.Status)
	assert.Contains(t, s.Error, "panic")
}

func TestProgress_NeverDecreases(t *testing.T) {
	m := NewManager(context.Background(), 1)
	updates, cancel := m.Subscribe(64)
	defer cancel()

	id := m.Submit("backtest", func(ctx context.Context, progress ProgressFunc) (any, error) {
		progress(30, "")
		progress(10, "")
		progress(60, "")
		progress(60, "")
		progress(150, "")
		return nil, nil
	})
	waitDone(t, m, id)

	last := -1
	for {
		select {
		case s := <-updates:
			if s.ID != id {
				continue
			}
			assert.GreaterOrEqual(t, s.Progress, last)
			last = s.Progress
			if s.Status.Terminal() {
				assert.Equal(t, 100, last)
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatal("terminal snapshot never delivered")
		}
	}
}

func TestConcurrencyIsBounded(t *testing.T) {
	m := NewManager(context.Background(), 2)
	var running, peak int32
	var ids []string
	for i := 0; i < 6; i++ {
		ids = append(ids, m.Submit("backtest", func(ctx context.Context, progress ProgressFunc) (any, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil, nil
		}))
	}
	for _, id := range ids {
		waitDone(t, m, id)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestListeners_SeeTransitions(t *testing.T) {
	m := NewManager(context.Background(), 1)
	var mu sync.Mutex
	var seen []Status
	var result any
	m.OnEvent(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ev.Snapshot.Status)
		if ev.Snapshot.Status == StatusCompleted {
			result = ev.Result
		}
	})

	id := m.Submit("backtest", func(ctx context.Context, progress ProgressFunc) (any, error) {
		progress(40, "working")
		return 42, nil
	})
	waitDone(t, m, id)
	m.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusPending, StatusRunning, StatusCompleted}, seen)
	assert.Equal(t, 42, result)
}

func TestJobContextCarriesID(t *testing.T) {
	m := NewManager(context.Background(), 1)
	got := make(chan string, 1)
	var id string
	id = m.Submit("backtest", func(ctx context.Context, progress ProgressFunc) (any, error) {
		got <- logger.JobID(ctx)
		return nil, nil
	})
	waitDone(t, m, id)
	assert.Equal(t, id, <-got)
}

func TestGet_Unknown(t *testing.T) {
	m := NewManager(context.Background(), 1)
	_, err := m.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Wait(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_ListAndPrune(t *testing.T) {
	m := NewManager(context.Background(), 2)
	a := m.Submit("backtest", func(context.Context, ProgressFunc) (any, error) { return nil, nil })
	waitDone(t, m, a)
	time.Sleep(2 * time.Millisecond)
	b := m.Submit("backtest", func(context.Context, ProgressFunc) (any, error) { return nil, nil })
	waitDone(t, m, b)

	list := m.Registry().List()
	require.Len(t, list, 2)
	assert.Equal(t, b, list[0].ID)

	assert.Equal(t, 2, m.Registry().Prune(time.Now().Add(time.Minute)))
	assert.Zero(t, m.Registry().Len())
}

func TestSlowListener_DoesNotDelaySubmit(t *testing.T) {
	m := NewManager(context.Background(), 1)
	var calls int32
	m.OnEvent(func(Event) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(300 * time.Millisecond)
	})

	start := time.Now()
	id := m.Submit("backtest", func(context.Context, ProgressFunc) (any, error) { return nil, nil })
	assert.Less(t, time.Since(start), 100*time.Millisecond, "Submit waited on a listener")

	start = time.Now()
	_, cancel := m.Subscribe(1)
	cancel()
	assert.Less(t, time.Since(start), 100*time.Millisecond, "Subscribe waited on a listener")

	s := waitDone(t, m, id)
	assert.Less(t, s.FinishedAt.Sub(*s.StartedAt), 100*time.Millisecond)

	m.Close()
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestListenerPanic_DoesNotStopOthers(t *testing.T) {
	m := NewManager(context.Background(), 1)
	m.OnEvent(func(Event) { panic("listener bug") })
	var seen int32
	m.OnEvent(func(Event) { atomic.AddInt32(&seen, 1) })

	id := m.Submit("backtest", func(context.Context, ProgressFunc) (any, error) { return nil, nil })
	waitDone(t, m, id)
	m.Close()
	assert.Equal(t, int32(3), atomic.LoadInt32(&seen))
}
