package ranges

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantex/qx-algo/internal/session"
	"github.com/quantex/qx-algo/pkg/model"
)

func rdrDate() time.Time {
	return time.Date(2025, time.March, 10, 0, 0, 0, 0, session.Eastern())
}

// rdrBars builds a full 09:30-10:25 RDR range window (12 bars).
func rdrBars(closes []float64) []model.Bar {
	bars := make([]model.Bar, 0, len(closes))
	for i, c := range closes {
		start := time.Date(2025, time.March, 10, 9, 30, 0, 0, session.Eastern()).
			Add(time.Duration(i) * 5 * time.Minute)
		bars = append(bars, model.Bar{
			Start: start,
			Open:  c,
			High:  c + 2,
			Low:   c - 2,
			Close: c,
		})
	}
	return bars
}

func TestCompute(t *testing.T) {
	closes := []float64{100, 102, 101, 104, 99, 103}
	b, err := Compute(rdrBars(closes), model.SessionRDR, rdrDate())
	require.NoError(t, err)

	assert.Equal(t, 106.0, b.DRHigh) // max high = 104+2
	assert.Equal(t, 97.0, b.DRLow)   // min low = 99-2
	assert.Equal(t, 104.0, b.IDRHigh)
	assert.Equal(t, 99.0, b.IDRLow)
	assert.Equal(t, 6, b.BarN)
	assert.Equal(t, "2025-03-10", b.Date)

	// Last bar opens 09:55, DREnd is its close time.
	want := time.Date(2025, time.March, 10, 10, 0, 0, 0, session.Eastern())
	assert.True(t, b.DREnd.Equal(want))

	// Sample std dev of the closes.
	mean := (100.0 + 102 + 101 + 104 + 99 + 103) / 6
	var ss float64
	for _, c := range closes {
		ss += (c - mean) * (c - mean)
	}
	assert.InDelta(t, math.Sqrt(ss/5), b.IDRStd, 1e-9)
}

func TestComputeRequiresFiveBars(t *testing.T) {
	_, err := Compute(rdrBars([]float64{100, 101, 102, 103}), model.SessionRDR, rdrDate())
	assert.ErrorIs(t, err, ErrInsufficientBars)
}

func TestComputeFlatWindowFallsBackToRangeFraction(t *testing.T) {
	// All closes equal: std is zero, fallback is 0.3 x IDR range (also zero
	// here, but highs/lows still spread the DR).
	b, err := Compute(rdrBars([]float64{100, 100, 100, 100, 100}), model.SessionRDR, rdrDate())
	require.NoError(t, err)
	assert.Equal(t, 0.0, b.IDRStd)
	assert.Equal(t, 0.0, b.IDRRange())
}

func TestCacheComputesOnce(t *testing.T) {
	c := NewCache(zap.NewNop())
	bars := rdrBars([]float64{100, 102, 101, 104, 99, 103})

	b1, err := c.GetOrCompute(bars, model.SessionRDR, rdrDate())
	require.NoError(t, err)

	// Different bars, same key: cached value wins.
	b2, err := c.GetOrCompute(rdrBars([]float64{1, 2, 3, 4, 5, 6}), model.SessionRDR, rdrDate())
	require.NoError(t, err)
	assert.Equal(t, b1, b2)

	got, ok := c.Get(model.SessionRDR, rdrDate())
	require.True(t, ok)
	assert.Equal(t, b1, got)

	c.Reset()
	_, ok = c.Get(model.SessionRDR, rdrDate())
	assert.False(t, ok)
}
