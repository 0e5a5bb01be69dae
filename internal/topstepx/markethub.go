package topstepx

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Quote is a live price update from the market hub.
type Quote struct {
	ContractID string    `json:"contractId"`
	Price      float64   `json:"price"`
	Timestamp  time.Time `json:"timestamp"`
}

// QuoteHandler is called for every quote received.
type QuoteHandler func(q Quote)

// MarketHub is a websocket client for the live quote stream. The trader uses
// it to see prices between bar polls; the REST poll loop is the source of
// truth, so a dropped hub connection only degrades exit latency.
type MarketHub struct {
	url    string
	logger *zap.Logger

	conn        *websocket.Conn
	connected   bool
	connectedMu sync.RWMutex

	handlers   []QuoteHandler
	handlersMu sync.RWMutex

	done           chan struct{}
	reconnectDelay time.Duration
}

// NewMarketHub creates a market hub client. url may be empty, in which case
// Connect is a no-op and the trader runs on polled bars alone.
func NewMarketHub(url string, logger *zap.Logger) *MarketHub {
	return &MarketHub{
		url:            url,
		logger:         logger,
		done:           make(chan struct{}),
		reconnectDelay: 5 * time.Second,
	}
}

// AddHandler registers a handler for incoming quotes.
func (h *MarketHub) AddHandler(fn QuoteHandler) {
	h.handlersMu.Lock()
	defer h.handlersMu.Unlock()
	h.handlers = append(h.handlers, fn)
}

// Connect establishes the websocket connection and starts the read loop.
func (h *MarketHub) Connect(ctx context.Context) error {
	if h.url == "" {
		h.logger.Info("markethub.disabled")
		return nil
	}

	h.logger.Info("markethub.connecting", zap.String("url", h.url))

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, h.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to market hub: %w", err)
	}

	h.conn = conn
	h.setConnected(true)
	h.logger.Info("markethub.connected")

	go h.readLoop()

	return nil
}

// Close closes the connection and stops the read loop.
func (h *MarketHub) Close() error {
	close(h.done)
	h.setConnected(false)
	if h.conn != nil {
		return h.conn.Close()
	}
	return nil
}

// IsConnected returns whether the hub is connected.
func (h *MarketHub) IsConnected() bool {
	h.connectedMu.RLock()
	defer h.connectedMu.RUnlock()
	return h.connected
}

// Subscribe asks the hub for quotes on a contract.
func (h *MarketHub) Subscribe(contractID string) error {
	if h.conn == nil {
		return nil
	}
	msg := map[string]any{"action": "subscribe", "contractId": contractID}
	return h.conn.WriteJSON(msg)
}

func (h *MarketHub) setConnected(v bool) {
	h.connectedMu.Lock()
	h.connected = v
	h.connectedMu.Unlock()
}

func (h *MarketHub) readLoop() {
	for {
		select {
		case <-h.done:
			return
		default:
		}

		_, data, err := h.conn.ReadMessage()
		if err != nil {
			h.setConnected(false)
			h.logger.Warn("markethub.read_failed", zap.Error(err))
			h.reconnect()
			return
		}

		var q Quote
		if err := json.Unmarshal(data, &q); err != nil {
			h.logger.Debug("markethub.bad_message", zap.Error(err))
			continue
		}

		h.handlersMu.RLock()
		handlers := h.handlers
		h.handlersMu.RUnlock()
		for _, fn := range handlers {
			fn(q)
		}
	}
}

func (h *MarketHub) reconnect() {
	select {
	case <-h.done:
		return
	case <-time.After(h.reconnectDelay):
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := h.Connect(ctx); err != nil {
		h.logger.Warn("markethub.reconnect_failed", zap.Error(err))
		go h.reconnect()
	}
}
