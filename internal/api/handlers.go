package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"trading-backtestv1/config"
	"trading-backtestv1/internal/backtest"
	"trading-backtestv1/internal/jobs"
	"trading-backtestv1/internal/logger"
	"trading-backtestv1/internal/store/redis"
	"trading-backtestv1/internal/strategy"
)

// KindBacktest is the job kind of submitted backtests.
const KindBacktest = "backtest"

const maxBodyBytes = 1 << 20

// SubmitResponse is returned for an accepted backtest.
type SubmitResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
		"jobs":   h.opts.Jobs.Registry().Len(),
	})
}

func (h *handler) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"defaults": h.opts.Defaults,
		"features": strategy.FeatureNames,
	})
}

func (h *handler) listJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.opts.Jobs.Registry().List())
}

func (h *handler) listStrategies(w http.ResponseWriter, r *http.Request) {
	if h.opts.Strategies == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	list, err := h.opts.Strategies.ListStrategies(r.Context(), limit)
	if err != nil {
		slog.Error("list strategies failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "could not list strategies")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// submit decodes a run description over the defaults, validates it and
// queues the job. Invalid configurations never create a job.
func (h *handler) submit(w http.ResponseWriter, r *http.Request) {
	cfg := h.opts.Defaults
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := cfg.Validate(); err != nil {
		var ve *config.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": ve.Error(), "fields": ve.Fields})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runner := h.opts.Runner
	id := h.opts.Jobs.Submit(KindBacktest, func(ctx context.Context, progress jobs.ProgressFunc) (any, error) {
		res, err := runner.Run(ctx, cfg, backtest.ProgressFunc(progress))
		if err != nil {
			return nil, err
		}
		return res, nil
	})
	slog.Info("backtest submitted",
		slog.String("job_id", id),
		slog.String("request_id", RequestID(r.Context())),
		slog.String("symbol", cfg.Symbol),
		slog.Int("period_days", cfg.PeriodDays))

	writeJSON(w, http.StatusAccepted, SubmitResponse{
		JobID:     id,
		Status:    string(jobs.StatusPending),
		StatusURL: "/api/v1/backtest/status/" + id,
	})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snap, err := h.opts.Jobs.Get(id)
	if err == nil {
		writeJSON(w, http.StatusOK, snap)
		return
	}
	if raw, ok := h.fromCache(r.Context(), id, false); ok {
		writeRaw(w, raw)
		return
	}
	writeError(w, http.StatusNotFound, "job not found")
}

func (h *handler) results(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	res, raw, code, msg := h.lookupResult(r.Context(), id)
	switch {
	case res != nil:
		writeJSON(w, http.StatusOK, res)
	case raw != nil:
		writeRaw(w, raw)
	default:
		writeError(w, code, msg)
	}
}

func (h *handler) tradesCSV(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	res, raw, code, msg := h.lookupResult(r.Context(), id)
	if raw != nil {
		res = &backtest.Result{}
		if err := json.Unmarshal(raw, res); err != nil {
			writeError(w, http.StatusInternalServerError, "cached result is unreadable")
			return
		}
	}
	if res == nil {
		writeError(w, code, msg)
		return
	}

	var buf bytes.Buffer
	if err := backtest.WriteTradesCSV(&buf, res.Trades); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="trades_%s.csv"`, id))
	w.Write(buf.Bytes())
}

// lookupResult finds the result of id in memory, falling back to the raw
// cached JSON for jobs this process does not know.
func (h *handler) lookupResult(ctx context.Context, id string) (res *backtest.Result, raw []byte, code int, msg string) {
	v, snap, err := h.opts.Jobs.Result(id)
	if errors.Is(err, jobs.ErrNotFound) {
		if raw, ok := h.fromCache(ctx, id, true); ok {
			return nil, raw, http.StatusOK, ""
		}
		return nil, nil, http.StatusNotFound, "job not found"
	}
	switch snap.Status {
	case jobs.StatusFailed:
		return nil, nil, http.StatusConflict, "job failed: " + snap.Error
	case jobs.StatusPending, jobs.StatusRunning:
		return nil, nil, http.StatusConflict, fmt.Sprintf("job is %s (%d%%)", snap.Status, snap.Progress)
	}
	res, ok := v.(*backtest.Result)
	if !ok || res == nil {
		return nil, nil, http.StatusInternalServerError, "job has no backtest result"
	}
	return res, nil, http.StatusOK, ""
}

func (h *handler) fromCache(ctx context.Context, id string, result bool) ([]byte, bool) {
	if h.opts.Cache == nil {
		return nil, false
	}
	load := h.opts.Cache.LoadStatus
	if result {
		load = h.opts.Cache.LoadResult
	}
	raw, err := load(ctx, id)
	if err != nil {
		if !errors.Is(err, redis.ErrNotFound) {
			slog.Warn("result cache lookup failed", append(logger.LogWithJob(logger.WithJobID(ctx, id)),
				slog.String("error", err.Error()))...)
		}
		return nil, false
	}
	return raw, true
}

func writeRaw(w http.ResponseWriter, raw []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}
