// Package ranges computes the DR/IDR levels each session trades off.
package ranges

import (
	"fmt"
	"math"
	"time"

	"github.com/quantex/qx-algo/internal/marketdata"
	"github.com/quantex/qx-algo/pkg/model"
)

// MinRangeBars is the minimum number of bars required to form a valid range.
const MinRangeBars = 5

// ErrInsufficientBars is returned when the range window has too few bars.
var ErrInsufficientBars = fmt.Errorf("fewer than %d bars in range window", MinRangeBars)

// barDuration is the nominal bar size; DREnd is the close time of the last
// range bar, i.e. its start plus this.
const barDuration = 5 * time.Minute

// Compute derives the DR/IDR boundaries for one session on one ET date.
// DR uses bar highs/lows; IDR uses closes only. IDRStd is the sample
// standard deviation of the window's closes, used for the take-profit level.
func Compute(bars []model.Bar, s model.Session, date time.Time) (model.RangeBounds, error) {
	window := marketdata.RangeWindowBars(bars, s, date)
	if len(window) < MinRangeBars {
		return model.RangeBounds{}, ErrInsufficientBars
	}

	b := model.RangeBounds{
		Session: s,
		Date:    date.Format("2006-01-02"),
		DRHigh:  window[0].High,
		DRLow:   window[0].Low,
		IDRHigh: window[0].Close,
		IDRLow:  window[0].Close,
		BarN:    len(window),
	}
	for _, bar := range window[1:] {
		if bar.High > b.DRHigh {
			b.DRHigh = bar.High
		}
		if bar.Low < b.DRLow {
			b.DRLow = bar.Low
		}
		if bar.Close > b.IDRHigh {
			b.IDRHigh = bar.Close
		}
		if bar.Close < b.IDRLow {
			b.IDRLow = bar.Close
		}
	}
	b.DREnd = window[len(window)-1].Start.Add(barDuration)
	b.IDRStd = closeStd(window)
	if b.IDRStd == 0 {
		// Degenerate flat window; fall back to a fraction of the range width.
		b.IDRStd = 0.3 * b.IDRRange()
	}
	return b, nil
}

// closeStd is the sample standard deviation (n-1 divisor) of the closes.
// MinRangeBars keeps the denominator positive.
func closeStd(bars []model.Bar) float64 {
	n := float64(len(bars))
	var sum float64
	for _, b := range bars {
		sum += b.Close
	}
	mean := sum / n

	var ss float64
	for _, b := range bars {
		d := b.Close - mean
		ss += d * d
	}
	return math.Sqrt(ss / (n - 1))
}
