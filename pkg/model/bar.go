package model

import "time"

// Bar is a single OHLCV bar. Start is the bar open time, already converted to
// Eastern Time by the market data layer.
type Bar struct {
	Start  time.Time `json:"start"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// RangeBounds holds the computed DR/IDR levels for one session on one day.
// DR uses bar highs/lows, IDR uses closes only.
type RangeBounds struct {
	Session Session   `json:"session"`
	Date    string    `json:"date"` // session date, YYYY-MM-DD in ET
	DRHigh  float64   `json:"dr_high"`
	DRLow   float64   `json:"dr_low"`
	IDRHigh float64   `json:"idr_high"`
	IDRLow  float64   `json:"idr_low"`
	DREnd   time.Time `json:"dr_end"`   // close time of the last range-window bar
	IDRStd  float64   `json:"idr_std"`  // std dev of range-window closes
	BarN    int       `json:"bar_count"`
}

// IDRRange returns the width of the IDR in points.
func (b RangeBounds) IDRRange() float64 {
	return b.IDRHigh - b.IDRLow
}

// IDRMidpoint returns the 50% level of the IDR.
func (b RangeBounds) IDRMidpoint() float64 {
	return b.IDRLow + 0.5*b.IDRRange()
}

// Confirmation marks the first close outside the DR during a trading window.
type Confirmation struct {
	Session Session   `json:"session"`
	Bias    Bias      `json:"bias"`
	Time    time.Time `json:"time"`  // bar start of the confirming close
	Price   float64   `json:"price"` // the confirming close
}
