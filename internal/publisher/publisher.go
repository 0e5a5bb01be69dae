// Package publisher emits canonical trading events to NATS JetStream.
package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/quantex/qx-algo/internal/metrics"
	"github.com/quantex/qx-algo/pkg/logger"
	"github.com/quantex/qx-algo/pkg/model"
)

// Event subjects.
const (
	SubjectSignalConfirmed = "evt.qx.signal.confirmed.v1"
	SubjectTradeOpened     = "evt.qx.trade.opened.v1"
	SubjectTradeClosed     = "evt.qx.trade.closed.v1"
)

// Publisher wraps a NATS connection and provides helpers for publishing
// canonical envelopes. A nil Publisher is valid and drops all events.
type Publisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	service string
}

// New creates a Publisher with JetStream enabled.
func New(nc *nats.Conn, service string) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc, js: js, service: service}, nil
}

// PublishEnvelope serializes and publishes a canonical event envelope.
func (p *Publisher) PublishEnvelope(ctx context.Context, subject string, env *model.Envelope) error {
	if p == nil {
		return nil
	}

	data, err := json.Marshal(env)
	if err != nil {
		logger.S().Errorw("publisher.marshal_failed",
			"subject", subject,
			"event_type", env.EventType,
			"error", err,
		)
		metrics.IncError("publisher", "marshal_failed")
		return err
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{env.EventType},
			"correlation_id": []string{env.CorrelationID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
		},
	}

	start := time.Now()
	_, err = p.js.PublishMsg(msg)
	metrics.ObserveDuration(metrics.NATSMessageLatency, start, subject)

	if err != nil {
		logger.S().Errorw("publisher.publish_failed",
			"subject", subject,
			"event_type", env.EventType,
			"error", err,
		)
		metrics.IncNATSMessage(subject, "error")
		return err
	}

	logger.S().Debugw("publisher.publish_success",
		"subject", subject,
		"event_type", env.EventType,
	)
	metrics.IncNATSMessage(subject, "ok")
	return nil
}

func (p *Publisher) publishEvent(ctx context.Context, subject, eventType string, payload any) error {
	if p == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.IncError("publisher", "marshal_failed")
		return err
	}
	env := &model.Envelope{
		ID:            uuid.New(),
		CorrelationID: uuid.New(),
		Topic:         subject,
		EventType:     eventType,
		Version:       "1.0.0",
		Timestamp:     time.Now().UTC(),
		Payload:       data,
	}
	return p.PublishEnvelope(ctx, subject, env)
}

// PublishSignalConfirmed emits a signal.confirmed event.
func (p *Publisher) PublishSignalConfirmed(ctx context.Context, ev model.SignalConfirmedEvent) error {
	return p.publishEvent(ctx, SubjectSignalConfirmed, "signal.confirmed", ev)
}

// PublishTradeOpened emits a trade.opened event.
func (p *Publisher) PublishTradeOpened(ctx context.Context, ev model.TradeOpenedEvent) error {
	return p.publishEvent(ctx, SubjectTradeOpened, "trade.opened", ev)
}

// PublishTradeClosed emits a trade.closed event.
func (p *Publisher) PublishTradeClosed(ctx context.Context, ev model.TradeClosedEvent) error {
	return p.publishEvent(ctx, SubjectTradeClosed, "trade.closed", ev)
}

// Close drains the underlying connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
