package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrStrategyNotFound is returned by GetStrategy for unknown ids.
var ErrStrategyNotFound = errors.New("strategy not found")

// StrategyRecord is a saved backtest configuration with its headline metrics.
type StrategyRecord struct {
	ID        string          `json:"id"`
	JobID     string          `json:"job_id,omitempty"`
	Name      string          `json:"name"`
	Symbol    string          `json:"symbol"`
	Config    json.RawMessage `json:"config"`
	Metrics   json.RawMessage `json:"metrics"`
	CreatedAt time.Time       `json:"created_at"`
}

type strategyRow struct {
	ID        string `db:"id"`
	JobID     string `db:"job_id"`
	Name      string `db:"name"`
	Symbol    string `db:"symbol"`
	Config    string `db:"config"`
	Metrics   string `db:"metrics"`
	CreatedAt int64  `db:"created_at"`
}

func (r strategyRow) record() StrategyRecord {
	return StrategyRecord{
		ID:        r.ID,
		JobID:     r.JobID,
		Name:      r.Name,
		Symbol:    r.Symbol,
		Config:    json.RawMessage(r.Config),
		Metrics:   json.RawMessage(r.Metrics),
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
	}
}

// SaveStrategy inserts or replaces rec.
func (s *Store) SaveStrategy(ctx context.Context, rec StrategyRecord) error {
	row := strategyRow{
		ID:        rec.ID,
		JobID:     rec.JobID,
		Name:      rec.Name,
		Symbol:    rec.Symbol,
		Config:    string(rec.Config),
		Metrics:   string(rec.Metrics),
		CreatedAt: rec.CreatedAt.UnixMilli(),
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO strategies (id, job_id, name, symbol, config, metrics, created_at)
		VALUES (:id, :job_id, :name, :symbol, :config, :metrics, :created_at)
	`, row)
	if err != nil {
		return fmt.Errorf("sqlite insert strategy: %w", err)
	}
	return nil
}

// ListStrategies returns up to limit saved strategies, newest first.
// limit <= 0 returns all.
func (s *Store) ListStrategies(ctx context.Context, limit int) ([]StrategyRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	var rows []strategyRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, job_id, name, symbol, config, metrics, created_at
		FROM strategies
		ORDER BY created_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query strategies: %w", err)
	}
	out := make([]StrategyRecord, len(rows))
	for i, r := range rows {
		out[i] = r.record()
	}
	return out, nil
}

// GetStrategy returns the strategy saved under id.
func (s *Store) GetStrategy(ctx context.Context, id string) (StrategyRecord, error) {
	var row strategyRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, job_id, name, symbol, config, metrics, created_at
		FROM strategies WHERE id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return StrategyRecord{}, ErrStrategyNotFound
	}
	if err != nil {
		return StrategyRecord{}, fmt.Errorf("sqlite query strategy: %w", err)
	}
	return row.record(), nil
}
