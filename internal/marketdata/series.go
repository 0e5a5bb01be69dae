// Package marketdata maintains the rolling window of bars the trader works on.
package marketdata

import (
	"sort"
	"sync"
	"time"

	"github.com/quantex/qx-algo/internal/session"
	"github.com/quantex/qx-algo/internal/topstepx"
	"github.com/quantex/qx-algo/pkg/model"
)

// Series is a rolling, ascending-by-time window of bars in ET.
type Series struct {
	mu   sync.RWMutex
	bars []model.Bar
	max  int
}

// NewSeries creates a series that retains at most max bars.
func NewSeries(max int) *Series {
	return &Series{max: max}
}

// FromRaw converts venue bars to ET model bars, sorted ascending.
func FromRaw(raw []topstepx.RawBar) []model.Bar {
	bars := make([]model.Bar, 0, len(raw))
	for _, rb := range raw {
		bars = append(bars, model.Bar{
			Start:  rb.T.In(session.Eastern()),
			Open:   rb.O,
			High:   rb.H,
			Low:    rb.L,
			Close:  rb.C,
			Volume: rb.V,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Start.Before(bars[j].Start) })
	return bars
}

// Replace swaps in a fresh snapshot, keeping only the trailing max bars.
func (s *Series) Replace(bars []model.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(bars) > s.max {
		bars = bars[len(bars)-s.max:]
	}
	s.bars = bars
}

// Len returns the number of bars held.
func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bars)
}

// All returns a copy of the bars.
func (s *Series) All() []model.Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// Last returns the most recent bar.
func (s *Series) Last() (model.Bar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.bars) == 0 {
		return model.Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// LastClose returns the close of the most recent bar.
func (s *Series) LastClose() (float64, bool) {
	b, ok := s.Last()
	if !ok {
		return 0, false
	}
	return b.Close, true
}

// RangeWindowBars returns the bars inside the session's range window on the
// given ET date. The range end is inclusive (the 10:25 bar belongs to RDR).
func RangeWindowBars(bars []model.Bar, s model.Session, date time.Time) []model.Bar {
	w := session.RangeWindow(s)
	var out []model.Bar
	for _, b := range bars {
		et := b.Start.In(session.Eastern())
		if et.Year() != date.Year() || et.YearDay() != date.YearDay() {
			continue
		}
		m := et.Hour()*60 + et.Minute()
		if m >= w.Start.Minutes() && m <= w.End.Minutes() {
			out = append(out, b)
		}
	}
	return out
}

// TradingWindowBars returns the bars inside the session's trading window for
// the given session date, in order. ADR spills past midnight into the next
// calendar day.
func TradingWindowBars(bars []model.Bar, s model.Session, sessionDate time.Time) []model.Bar {
	start, end := session.TradingWindowBounds(s, sessionDate)
	var out []model.Bar
	for _, b := range bars {
		if !b.Start.Before(start) && b.Start.Before(end) {
			out = append(out, b)
		}
	}
	return out
}
