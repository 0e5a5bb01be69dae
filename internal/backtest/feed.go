// Package backtest replays historical bars through the strategy to verify
// its behavior session by session.
package backtest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/quantex/qx-algo/internal/session"
	"github.com/quantex/qx-algo/pkg/model"
)

// LoadBars reads OHLCV bars from a CSV file with a
// start,open,high,low,close,volume header. Timestamps may be RFC3339 or
// "2006-01-02 15:04:05" (taken as ET).
func LoadBars(path string) ([]model.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	var bars []model.Bar
	first := true
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read bars file: %w", err)
		}
		if first {
			first = false
			if row[0] == "start" || row[0] == "t" || row[0] == "time" {
				continue
			}
		}
		if len(row) < 6 {
			return nil, fmt.Errorf("expected 6 fields, got %d", len(row))
		}
		start, err := parseBarTime(row[0])
		if err != nil {
			return nil, err
		}
		vals := make([]float64, 4)
		for i := 0; i < 4; i++ {
			v, err := strconv.ParseFloat(row[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("bad value %q: %w", row[i+1], err)
			}
			vals[i] = v
		}
		vol, err := strconv.ParseInt(row[5], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad volume %q: %w", row[5], err)
		}
		bars = append(bars, model.Bar{
			Start:  start.In(session.Eastern()),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vol,
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Start.Before(bars[j].Start) })
	return bars, nil
}

func parseBarTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", s, session.Eastern()); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unparseable bar time %q", s)
}
