package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"trading-backtestv1/internal/model"
)

// TradeCSVHeader is the column layout written by WriteTradesCSV.
var TradeCSVHeader = []string{
	"Timestamp", "Type", "Entry Price", "SL", "TP",
	"Close Price", "Close Timestamp", "Pips", "Confidence",
}

// WriteTradesCSV writes one row per trade. Close columns of open trades are empty.
func WriteTradesCSV(w io.Writer, trades []model.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TradeCSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	num := func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
	for i := range trades {
		t := &trades[i]
		row := []string{
			t.OpenTime.UTC().Format(time.DateTime),
			string(t.Direction),
			num(t.EntryPrice),
			num(t.StopLoss),
			num(t.TakeProfit),
			"", "", "",
			strconv.FormatFloat(t.Confidence, 'f', 4, 64),
		}
		if t.Closed() {
			row[5] = num(t.ClosePrice)
			row[6] = t.CloseTime.UTC().Format(time.DateTime)
			row[7] = strconv.FormatFloat(t.Pips, 'f', 1, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
