package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"trading-backtestv1/internal/model"
)

type barRow struct {
	TS     int64   `db:"ts"`
	Open   float64 `db:"open"`
	High   float64 `db:"high"`
	Low    float64 `db:"low"`
	Close  float64 `db:"close"`
	Volume float64 `db:"volume"`
}

// SymbolInfo summarizes the stored history of one symbol.
type SymbolInfo struct {
	Symbol string `db:"symbol" json:"symbol"`
	Bars   int    `db:"bars" json:"bars"`
	First  int64  `db:"first_ts" json:"first_ts"`
	Last   int64  `db:"last_ts" json:"last_ts"`
}

// InsertBars upserts bars for symbol in batched transactions.
func (s *Store) InsertBars(ctx context.Context, symbol string, bars []model.Bar) error {
	start := time.Now()
	for lo := 0; lo < len(bars); lo += defaultBatchSize {
		hi := lo + defaultBatchSize
		if hi > len(bars) {
			hi = len(bars)
		}
		if err := s.insertBatch(ctx, symbol, bars[lo:hi]); err != nil {
			return err
		}
	}
	log.Printf("[sqlite] committed %d %s bars in %v", len(bars), symbol, time.Since(start))
	return nil
}

// insertBatch inserts a batch of bars in a single transaction.
func (s *Store) insertBatch(ctx context.Context, symbol string, bars []model.Bar) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT OR REPLACE INTO bars (symbol, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("sqlite prepare bars: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, b.Time.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("sqlite insert bar %s: %w", b.Time.Format(time.DateTime), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit bars: %w", err)
	}
	return nil
}

// LoadBars implements model.BarSource. The lookback is measured from the
// newest stored bar of symbol.
func (s *Store) LoadBars(ctx context.Context, symbol string, periodDays int) ([]model.Bar, error) {
	var last sql.NullInt64
	if err := s.db.GetContext(ctx, &last, `SELECT MAX(ts) FROM bars WHERE symbol = ?`, symbol); err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	if !last.Valid {
		return nil, model.ErrNoBars
	}

	from := int64(0)
	if periodDays > 0 {
		from = time.Unix(last.Int64, 0).UTC().AddDate(0, 0, -periodDays).Unix()
	}

	var rows []barRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT ts, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND ts >= ?
		ORDER BY ts ASC
	`, symbol, from)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	if len(rows) == 0 {
		return nil, model.ErrNoBars
	}

	bars := make([]model.Bar, len(rows))
	for i, r := range rows {
		bars[i] = model.NewBar(time.Unix(r.TS, 0).UTC(), r.Open, r.High, r.Low, r.Close, r.Volume)
	}
	return bars, nil
}

// Symbols lists every stored symbol with its bar count and time span.
func (s *Store) Symbols(ctx context.Context) ([]SymbolInfo, error) {
	var out []SymbolInfo
	err := s.db.SelectContext(ctx, &out, `
		SELECT symbol, COUNT(*) AS bars, MIN(ts) AS first_ts, MAX(ts) AS last_ts
		FROM bars
		GROUP BY symbol
		ORDER BY symbol
	`)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	return out, nil
}
