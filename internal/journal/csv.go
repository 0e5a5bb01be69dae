// Package journal persists trade rows to the CSV trade log and to Postgres.
package journal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantex/qx-algo/internal/session"
	"github.com/quantex/qx-algo/pkg/model"
)

var csvHeader = []string{
	"timestamp_est", "session", "bias", "entry", "stop",
	"take_profit", "size", "order_id", "result",
}

const timestampLayout = "2006-01-02 15:04:05"

// CSVJournal appends trade rows to a CSV file, writing the header on first
// creation. Safe for concurrent use.
type CSVJournal struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// NewCSV creates a journal backed by the file at path. The file is not
// created until the first append.
func NewCSV(path string, logger *zap.Logger) *CSVJournal {
	return &CSVJournal{path: path, logger: logger}
}

// Append writes one trade row, creating the file with a header if needed.
func (j *CSVJournal) Append(rec model.TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, statErr := os.Stat(j.path)
	newFile := errors.Is(statErr, os.ErrNotExist)

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open trade log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if newFile {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("write trade log header: %w", err)
		}
	}
	if err := w.Write(toRow(rec)); err != nil {
		return fmt.Errorf("write trade log row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush trade log: %w", err)
	}

	j.logger.Info("journal.row_appended",
		zap.String("session", rec.Session.Upper()),
		zap.String("bias", string(rec.Bias)),
		zap.String("order_id", rec.OrderID),
		zap.String("result", rec.Result))
	return nil
}

// ReadAll returns every row in the journal. A missing file is an empty
// journal, not an error.
func (j *CSVJournal) ReadAll() ([]model.TradeRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open trade log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var out []model.TradeRecord
	first := true
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read trade log: %w", err)
		}
		if first {
			first = false
			if len(row) > 0 && row[0] == csvHeader[0] {
				continue
			}
		}
		rec, err := fromRow(row)
		if err != nil {
			j.logger.Warn("journal.bad_row", zap.Strings("row", row), zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Today returns the rows whose timestamp falls on the same ET date as now.
func (j *CSVJournal) Today(now time.Time) ([]model.TradeRecord, error) {
	all, err := j.ReadAll()
	if err != nil {
		return nil, err
	}
	et := now.In(session.Eastern())
	var out []model.TradeRecord
	for _, rec := range all {
		if rec.Timestamp.Year() == et.Year() && rec.Timestamp.YearDay() == et.YearDay() {
			out = append(out, rec)
		}
	}
	return out, nil
}

// LastN returns the newest n rows, oldest first.
func LastN(recs []model.TradeRecord, n int) []model.TradeRecord {
	if len(recs) <= n {
		return recs
	}
	return recs[len(recs)-n:]
}

func toRow(rec model.TradeRecord) []string {
	return []string{
		rec.Timestamp.In(session.Eastern()).Format(timestampLayout),
		string(rec.Session),
		string(rec.Bias),
		strconv.FormatFloat(rec.Entry, 'f', -1, 64),
		strconv.FormatFloat(rec.Stop, 'f', -1, 64),
		strconv.FormatFloat(rec.TakeProfit, 'f', -1, 64),
		strconv.Itoa(rec.Size),
		rec.OrderID,
		rec.Result,
	}
}

func fromRow(row []string) (model.TradeRecord, error) {
	if len(row) < 9 {
		return model.TradeRecord{}, fmt.Errorf("expected 9 fields, got %d", len(row))
	}
	ts, err := time.ParseInLocation(timestampLayout, row[0], session.Eastern())
	if err != nil {
		return model.TradeRecord{}, fmt.Errorf("bad timestamp %q: %w", row[0], err)
	}
	entry, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return model.TradeRecord{}, fmt.Errorf("bad entry %q: %w", row[3], err)
	}
	stop, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return model.TradeRecord{}, fmt.Errorf("bad stop %q: %w", row[4], err)
	}
	tp, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return model.TradeRecord{}, fmt.Errorf("bad take_profit %q: %w", row[5], err)
	}
	size, err := strconv.Atoi(row[6])
	if err != nil {
		return model.TradeRecord{}, fmt.Errorf("bad size %q: %w", row[6], err)
	}
	return model.TradeRecord{
		Timestamp:  ts,
		Session:    model.Session(row[1]),
		Bias:       model.Bias(row[2]),
		Entry:      entry,
		Stop:       stop,
		TakeProfit: tp,
		Size:       size,
		OrderID:    row[7],
		Result:     row[8],
	}, nil
}
