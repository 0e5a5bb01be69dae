// Package signal detects range-break confirmations inside trading windows.
package signal

import (
	"time"

	"github.com/quantex/qx-algo/internal/marketdata"
	"github.com/quantex/qx-algo/pkg/model"
)

// Detect scans the session's trading window for the first bar whose close
// breaks the DR range. A close above DRHigh confirms bullish, below DRLow
// bearish. Only bars strictly after the range end count; the earliest break
// wins and later breaks in the opposite direction are ignored.
func Detect(bars []model.Bar, b model.RangeBounds, sessionDate time.Time) (model.Confirmation, bool) {
	window := marketdata.TradingWindowBars(bars, b.Session, sessionDate)
	for _, bar := range window {
		if bar.Start.Before(b.DREnd) {
			continue
		}
		if bar.Close > b.DRHigh {
			return model.Confirmation{
				Session: b.Session,
				Bias:    model.BiasBullish,
				Time:    bar.Start,
				Price:   bar.Close,
			}, true
		}
		if bar.Close < b.DRLow {
			return model.Confirmation{
				Session: b.Session,
				Bias:    model.BiasBearish,
				Time:    bar.Start,
				Price:   bar.Close,
			}, true
		}
	}
	return model.Confirmation{}, false
}
