package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-backtestv1/internal/backtest"
	"trading-backtestv1/internal/jobs"
	"trading-backtestv1/internal/performance"
)

type recorder struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
}

func (r *recorder) Send(_ context.Context, a Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return r.err
}

func TestJobAlert_Completed(t *testing.T) {
	res := &backtest.Result{
		Symbol:     "XAUUSD",
		PeriodDays: 180,
		Metrics: performance.Metrics{
			TotalTrades:  4,
			WinRate:      0.5,
			NetProfit:    -12.5,
			ProfitFactor: performance.Inf,
		},
	}
	alert, ok := JobAlert(jobs.Event{
		Snapshot: jobs.Snapshot{ID: "0123456789abcdef", Kind: "backtest", Status: jobs.StatusCompleted},
		Result:   res,
	})
	require.True(t, ok)
	assert.Equal(t, AlertWarning, alert.Level)
	assert.Equal(t, "backtest 01234567 completed", alert.Title)
	assert.Contains(t, alert.Message, "4 trades")
	assert.Contains(t, alert.Message, "win rate 50.0%")
	assert.Contains(t, alert.Message, "PF Infinity")
	assert.Equal(t, "backtest.completed", alert.Event)

	report := map[string]string{}
	for _, f := range alert.Fields {
		report[f.Name] = f.Value
	}
	assert.Equal(t, "XAUUSD", report["Symbol"])
	assert.Equal(t, "50.0%", report["Win rate"])
	assert.Equal(t, "-12.50 (+0.00%)", report["Net profit"])
	assert.Equal(t, "Infinity", report["Profit factor"])
	assert.Equal(t, "Symbol", alert.Fields[0].Name)
}

func TestJobAlert_FailedAndNonTerminal(t *testing.T) {
	alert, ok := JobAlert(jobs.Event{Snapshot: jobs.Snapshot{ID: "j1", Kind: "backtest", Status: jobs.StatusFailed, Error: "no bars"}})
	require.True(t, ok)
	assert.Equal(t, AlertCritical, alert.Level)
	assert.Equal(t, "no bars", alert.Message)
	assert.Equal(t, "backtest.failed", alert.Event)

	_, ok = JobAlert(jobs.Event{Snapshot: jobs.Snapshot{Status: jobs.StatusRunning}})
	assert.False(t, ok)
}

func TestDispatcher_SendsTerminalEventsOnly(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec)
	d.Listen(jobs.Event{Snapshot: jobs.Snapshot{ID: "a", Status: jobs.StatusPending}})
	d.Listen(jobs.Event{Snapshot: jobs.Snapshot{ID: "a", Status: jobs.StatusFailed, Error: "boom"}})
	d.Wait()

	require.Len(t, rec.alerts, 1)
	assert.Equal(t, "a", rec.alerts[0].JobID)
}

func TestMulti_JoinsErrors(t *testing.T) {
	ok := &recorder{}
	bad := &recorder{err: errors.New("down")}
	err := Multi{bad, ok}.Send(context.Background(), Alert{Title: "x"})
	assert.ErrorContains(t, err, "down")
	assert.Len(t, ok.alerts, 1)
}

func TestWebhookNotifier(t *testing.T) {
	var got map[string]any
	var event string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		event = r.Header.Get("X-Backtest-Event")
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{
		Level: AlertInfo, Event: "backtest.completed", Title: "t", Message: "m", JobID: "j",
		Fields: []Field{{"Symbol", "XAUUSD"}, {"Win rate", "55.0%"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "backtest.completed", event)
	assert.Equal(t, "INFO", got["level"])
	assert.Equal(t, "j", got["job_id"])
	assert.NotEmpty(t, got["ts"])
	assert.Equal(t, map[string]any{"Symbol": "XAUUSD", "Win rate": "55.0%"}, got["report"])
}

func TestWebhookNotifier_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{})
	assert.ErrorContains(t, err, "unexpected status 502")
}

func TestTelegramNotifier(t *testing.T) {
	var path string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&body)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42")
	n.baseURL = srv.URL
	require.NoError(t, n.Send(context.Background(), Alert{Level: AlertCritical, Title: "job-1 failed", Message: "x.y"}))

	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "42", body["chat_id"])
	assert.True(t, strings.Contains(body["text"].(string), `job\-1 failed`))
	assert.True(t, strings.Contains(body["text"].(string), `x\.y`))
}

func TestTelegramReport(t *testing.T) {
	text := telegramReport(Alert{
		Level:   AlertInfo,
		Title:   "backtest 01234567 completed",
		Message: "one-line summary",
		JobID:   "0123-4567",
		Fields:  []Field{{"Symbol", "XAUUSD"}, {"Net profit", "+12.50 (+1.25%)"}, {"Quote", "a`b"}},
	})

	lines := strings.Split(text, "\n")
	assert.Equal(t, "✅ *backtest 01234567 completed*", lines[0])
	assert.Equal(t, telegramRule, lines[1])
	assert.Equal(t, "Symbol: `XAUUSD`", lines[2])
	assert.Equal(t, "Net profit: `+12.50 (+1.25%)`", lines[3])
	assert.Equal(t, "Quote: `a\\`b`", lines[4])
	assert.Equal(t, "Job: `0123-4567`", lines[len(lines)-1])
	assert.NotContains(t, text, "summary", "report fields replace the summary line")
}

func TestTelegramReport_FailureKeepsErrorAndFitsLimit(t *testing.T) {
	text := telegramReport(Alert{
		Level:   AlertCritical,
		Title:   "backtest j1 failed",
		Message: strings.Repeat("x", 5000),
		Fields:  []Field{{"Elapsed", "1.2s"}},
	})
	assert.True(t, strings.HasPrefix(text, "🚨 *backtest j1 failed*"))
	assert.Contains(t, text, "Elapsed: `1.2s`")
	assert.Contains(t, text, "…")
	assert.LessOrEqual(t, len([]rune(text)), telegramMaxText)
}

func TestBuild(t *testing.T) {
	assert.Len(t, Build("", "", ""), 1)
	assert.Len(t, Build("tok", "chat", "http://hook"), 3)
}
