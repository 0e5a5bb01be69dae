package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wire values used by the venue order API.
const (
	OrderSideSell = 1
	OrderSideBuy  = 2

	OrderTypeLimit  = 1
	OrderTypeMarket = 2
)

// SideForBias maps a confirmation bias to the venue's order side value.
func SideForBias(b Bias) int {
	if b == BiasBullish {
		return OrderSideBuy
	}
	return OrderSideSell
}

// Trade is an open position being managed by the trader.
type Trade struct {
	ID         string    `json:"id"` // internal ULID, also used in paper mode
	OrderID    string    `json:"order_id"`
	Session    Session   `json:"session"`
	Bias       Bias      `json:"bias"`
	Entry      float64   `json:"entry"`
	Stop       float64   `json:"stop"`
	TakeProfit float64   `json:"take_profit"`
	Contracts  int       `json:"contracts"`
	Remaining  int       `json:"remaining"`
	OpenTime   time.Time `json:"open_time"`

	PartialTaken bool    `json:"partial_taken"`
	TrailActive  bool    `json:"trail_active"`
	TrailStop    float64 `json:"trail_stop"`
	HighWater    float64 `json:"high_water"` // bullish water mark
	LowWater     float64 `json:"low_water"`  // bearish water mark
}

// Journal result values. Exit rows carry the exit reason; entry rows carry the
// order outcome.
const (
	ResultPaper  = "PAPER"
	ResultFailed = "FAILED"
	ResultOpen   = ""
	ResultStop   = "STOP"
	ResultTarget = "TARGET"
	ResultTrail  = "TRAIL"
	ResultTime   = "TIME"
)

// TradeRecord is one journal row (CSV and Postgres).
type TradeRecord struct {
	Timestamp  time.Time       `json:"timestamp_est"` // ET
	Session    Session         `json:"session"`
	Bias       Bias            `json:"bias"`
	Entry      float64         `json:"entry"`
	Stop       float64         `json:"stop"`
	TakeProfit float64         `json:"take_profit"`
	Size       int             `json:"size"`
	OrderID    string          `json:"order_id"`
	Result     string          `json:"result"`
	PnL        decimal.Decimal `json:"pnl"` // zero for entry rows; persisted to PG only
}
