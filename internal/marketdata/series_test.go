package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantex/qx-algo/internal/session"
	"github.com/quantex/qx-algo/internal/topstepx"
	"github.com/quantex/qx-algo/pkg/model"
)

func barAt(t *testing.T, y int, m time.Month, d, hh, mm int, close float64) model.Bar {
	t.Helper()
	start := time.Date(y, m, d, hh, mm, 0, 0, session.Eastern())
	return model.Bar{Start: start, Open: close, High: close + 1, Low: close - 1, Close: close, Volume: 10}
}

func TestSeriesReplaceKeepsTrailingMax(t *testing.T) {
	s := NewSeries(3)
	var bars []model.Bar
	for i := 0; i < 5; i++ {
		bars = append(bars, barAt(t, 2025, time.March, 10, 9, 30+5*i, 100+float64(i)))
	}
	s.Replace(bars)

	require.Equal(t, 3, s.Len())
	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, 104.0, last.Close)

	all := s.All()
	assert.Equal(t, 102.0, all[0].Close)
}

func TestFromRawSortsAscending(t *testing.T) {
	t2 := time.Date(2025, time.March, 10, 14, 35, 0, 0, time.UTC)
	t1 := time.Date(2025, time.March, 10, 14, 30, 0, 0, time.UTC)
	raw := []topstepx.RawBar{
		{T: t2, C: 2},
		{T: t1, C: 1},
	}
	bars := FromRaw(raw)
	require.Len(t, bars, 2)
	assert.Equal(t, 1.0, bars[0].Close)
	assert.Equal(t, 2.0, bars[1].Close)
	assert.Equal(t, session.Eastern(), bars[0].Start.Location())
}

func TestRangeWindowBars_InclusiveEnd(t *testing.T) {
	date := time.Date(2025, time.March, 10, 0, 0, 0, 0, session.Eastern())
	bars := []model.Bar{
		barAt(t, 2025, time.March, 10, 9, 25, 1),  // before window
		barAt(t, 2025, time.March, 10, 9, 30, 2),  // first bar
		barAt(t, 2025, time.March, 10, 10, 25, 3), // last bar, inclusive
		barAt(t, 2025, time.March, 10, 10, 30, 4), // after window
		barAt(t, 2025, time.March, 11, 9, 30, 5),  // wrong day
	}
	got := RangeWindowBars(bars, model.SessionRDR, date)
	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[0].Close)
	assert.Equal(t, 3.0, got[1].Close)
}

func TestTradingWindowBars_ADRSpansMidnight(t *testing.T) {
	date := time.Date(2025, time.March, 10, 0, 0, 0, 0, session.Eastern())
	bars := []model.Bar{
		barAt(t, 2025, time.March, 10, 20, 25, 1), // range bar, not trading
		barAt(t, 2025, time.March, 10, 20, 30, 2),
		barAt(t, 2025, time.March, 10, 23, 0, 3),
		barAt(t, 2025, time.March, 11, 0, 55, 4), // past midnight, still in window
		barAt(t, 2025, time.March, 11, 1, 0, 5),  // window closed
	}
	got := TradingWindowBars(bars, model.SessionADR, date)
	require.Len(t, got, 3)
	assert.Equal(t, 2.0, got[0].Close)
	assert.Equal(t, 4.0, got[2].Close)
}

func TestLastCloseEmpty(t *testing.T) {
	s := NewSeries(10)
	_, ok := s.LastClose()
	assert.False(t, ok)
}
