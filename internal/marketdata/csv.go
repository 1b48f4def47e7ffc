package marketdata

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"trading-backtestv1/internal/model"
)

// timeLayouts are tried in order when parsing the date column.
var timeLayouts = []string{
	"2006.01.02 15:04:05",
	"2006.01.02 15:04",
	"2006.01.02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339,
}

// CSVSource loads bars from "<dir>/<symbol>.csv".
//
// Two layouts are accepted: the MT5 export (tab separated, no header,
// columns Date Open High Low Close Volume) and a comma separated file with a
// header row whose first column is the timestamp.
type CSVSource struct {
	dir string
}

// NewCSVSource creates a source reading symbol files from dir.
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{dir: dir}
}

// Path returns the file backing symbol.
func (s *CSVSource) Path(symbol string) string {
	return filepath.Join(s.dir, symbol+".csv")
}

// LoadBars implements model.BarSource.
func (s *CSVSource) LoadBars(ctx context.Context, symbol string, periodDays int) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bars, err := ReadCSVFile(s.Path(symbol))
	if err != nil {
		return nil, err
	}
	bars = Window(bars, periodDays)
	if len(bars) == 0 {
		return nil, model.ErrNoBars
	}
	from, to := Span(bars)
	log.Printf("[marketdata] %s: loaded %d bars (%s → %s)", symbol, len(bars),
		from.Format(time.DateTime), to.Format(time.DateTime))
	return bars, nil
}

// ReadCSVFile reads and normalizes every bar in path.
func ReadCSVFile(path string) ([]model.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars csv: %w", err)
	}
	defer f.Close()

	bars, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// ReadCSV parses either supported layout from r.
func ReadCSV(r io.Reader) ([]model.Bar, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("peek csv: %w", err)
	}
	firstLine, _, _ := strings.Cut(string(head), "\n")

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if strings.Contains(firstLine, "\t") {
		cr.Comma = '\t'
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, model.ErrNoBars
	}

	cols := columns{date: 0, open: 1, high: 2, low: 3, close: 4, volume: 5}
	if _, err := parseTime(records[0][0]); err != nil {
		cols, err = headerColumns(records[0])
		if err != nil {
			return nil, err
		}
		records = records[1:]
	}

	bars := make([]model.Bar, 0, len(records))
	for i, rec := range records {
		b, err := cols.bar(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		bars = append(bars, b)
	}
	return Normalize(bars), nil
}

type columns struct {
	date, open, high, low, close, volume int
}

// headerColumns maps a header row to column indexes. Volume is optional
// (MT5 exports name it tickvol or vol).
func headerColumns(header []string) (columns, error) {
	c := columns{date: 0, open: -1, high: -1, low: -1, close: -1, volume: -1}
	for i, h := range header {
		switch strings.ToLower(strings.Trim(strings.TrimSpace(h), "<>")) {
		case "open":
			c.open = i
		case "high":
			c.high = i
		case "low":
			c.low = i
		case "close":
			c.close = i
		case "volume", "tickvol", "vol":
			if c.volume < 0 {
				c.volume = i
			}
		}
	}
	if c.open < 0 || c.high < 0 || c.low < 0 || c.close < 0 {
		return c, fmt.Errorf("csv header %v: need open, high, low and close columns", header)
	}
	return c, nil
}

func (c columns) bar(rec []string) (model.Bar, error) {
	field := func(i int) (float64, error) {
		if i < 0 || i >= len(rec) {
			return 0, nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
		if err != nil {
			return 0, fmt.Errorf("column %d: %w", i, err)
		}
		return v, nil
	}

	ts, err := parseTime(rec[c.date])
	if err != nil {
		return model.Bar{}, err
	}
	var vals [5]float64
	for j, idx := range []int{c.open, c.high, c.low, c.close, c.volume} {
		if j < 4 && idx >= len(rec) {
			return model.Bar{}, fmt.Errorf("want at least %d columns, got %d", idx+1, len(rec))
		}
		if vals[j], err = field(idx); err != nil {
			return model.Bar{}, err
		}
	}
	return model.NewBar(ts, vals[0], vals[1], vals[2], vals[3], vals[4]), nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
