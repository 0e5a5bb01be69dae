package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the canonical event wrapper published to NATS.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// SignalConfirmedEvent is emitted when a session confirmation is detected.
type SignalConfirmedEvent struct {
	Session Session   `json:"session"`
	Bias    Bias      `json:"bias"`
	Time    time.Time `json:"time"`
	Price   float64   `json:"price"`
	DRHigh  float64   `json:"dr_high"`
	DRLow   float64   `json:"dr_low"`
}

// TradeOpenedEvent is emitted when an order is placed.
type TradeOpenedEvent struct {
	TradeID    string  `json:"trade_id"`
	OrderID    string  `json:"order_id"`
	Session    Session `json:"session"`
	Bias       Bias    `json:"bias"`
	Entry      float64 `json:"entry"`
	Stop       float64 `json:"stop"`
	TakeProfit float64 `json:"take_profit"`
	Contracts  int     `json:"contracts"`
}

// TradeClosedEvent is emitted on any full or partial exit.
type TradeClosedEvent struct {
	TradeID   string  `json:"trade_id"`
	OrderID   string  `json:"order_id"`
	Session   Session `json:"session"`
	Reason    string  `json:"reason"` // STOP | TARGET | TRAIL | TIME
	Contracts int     `json:"contracts"`
	Price     float64 `json:"price"`
	PnL       float64 `json:"pnl"`
}
