package trader

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quantex/qx-algo/internal/metrics"
	"github.com/quantex/qx-algo/internal/session"
	"github.com/quantex/qx-algo/pkg/model"
)

// manageExits walks the open trades against the freshest price: time stop
// first, then hard stop, then the partial take-profit, then the trailing
// stop on the remainder.
func (t *Trader) manageExits(ctx context.Context, now time.Time) {
	price, ok := t.exitPrice(now)
	if !ok {
		return
	}

	t.mu.Lock()
	trades := make([]model.Trade, len(t.openTrades))
	copy(trades, t.openTrades)
	t.mu.Unlock()

	var kept []model.Trade
	for i := range trades {
		tr := trades[i]

		if now.Sub(tr.OpenTime) > t.cfg.TimeStop {
			t.closeRemaining(ctx, &tr, price, model.ResultTime, now)
			continue
		}

		closed := false
		if tr.Bias == model.BiasBullish {
			closed = t.manageBullish(ctx, &tr, price, now)
		} else {
			closed = t.manageBearish(ctx, &tr, price, now)
		}
		if closed {
			continue
		}
		kept = append(kept, tr)
	}

	t.mu.Lock()
	t.openTrades = kept
	t.mu.Unlock()
	if len(trades) > 0 {
		t.persistOpenTrades(ctx)
	}
}

// exitPrice prefers a hub quote received within the poll interval over the
// last bar close, so exits do not wait out a full poll cycle.
func (t *Trader) exitPrice(now time.Time) (float64, bool) {
	t.mu.Lock()
	quote, at := t.lastQuote, t.lastQuoteAt
	t.mu.Unlock()
	if quote != 0 && t.cfg.PollInterval > 0 && now.Sub(at) <= t.cfg.PollInterval {
		return quote, true
	}
	return t.series.LastClose()
}

func (t *Trader) manageBullish(ctx context.Context, tr *model.Trade, price float64, now time.Time) bool {
	if price > tr.HighWater {
		tr.HighWater = price
	}

	if price <= tr.Stop {
		t.closeRemaining(ctx, tr, price, model.ResultStop, now)
		return true
	}

	if price >= tr.TakeProfit && !tr.PartialTaken {
		t.takePartial(ctx, tr, price, now)
		if tr.TrailActive {
			tr.TrailStop = price - t.cfg.TrailPoints
		}
	}

	if tr.TrailActive {
		if newTrail := tr.HighWater - t.cfg.TrailPoints; newTrail > tr.TrailStop {
			tr.TrailStop = newTrail
			t.logger.Debug("trader.trail_raised",
				zap.String("trade_id", tr.ID),
				zap.Float64("trail", tr.TrailStop))
		}
		if price <= tr.TrailStop {
			t.closeRemaining(ctx, tr, price, model.ResultTrail, now)
			return true
		}
	}
	return false
}

func (t *Trader) manageBearish(ctx context.Context, tr *model.Trade, price float64, now time.Time) bool {
	if tr.LowWater == 0 || price < tr.LowWater {
		tr.LowWater = price
	}

	if price >= tr.Stop {
		t.closeRemaining(ctx, tr, price, model.ResultStop, now)
		return true
	}

	if price <= tr.TakeProfit && !tr.PartialTaken {
		t.takePartial(ctx, tr, price, now)
		if tr.TrailActive {
			tr.TrailStop = price + t.cfg.TrailPoints
		}
	}

	if tr.TrailActive {
		if newTrail := tr.LowWater + t.cfg.TrailPoints; newTrail < tr.TrailStop {
			tr.TrailStop = newTrail
			t.logger.Debug("trader.trail_lowered",
				zap.String("trade_id", tr.ID),
				zap.Float64("trail", tr.TrailStop))
		}
		if price >= tr.TrailStop {
			t.closeRemaining(ctx, tr, price, model.ResultTrail, now)
			return true
		}
	}
	return false
}

// takePartial closes the configured fraction of the original size at the
// target and arms the trailing stop on what is left.
func (t *Trader) takePartial(ctx context.Context, tr *model.Trade, price float64, now time.Time) {
	toClose := int(float64(tr.Contracts) * t.cfg.PartialExitFraction)
	if toClose <= 0 {
		return
	}

	pnl := t.book.PnL(t.direction(tr, price), toClose)
	t.book.ApplyPnL(tr.Session, pnl)

	tr.PartialTaken = true
	tr.Remaining = tr.Contracts - toClose
	tr.TrailActive = true

	t.logger.Info("trader.partial_exit",
		zap.String("trade_id", tr.ID),
		zap.String("order_id", tr.OrderID),
		zap.Float64("price", price),
		zap.Int("closed", toClose),
		zap.Int("remaining", tr.Remaining),
		zap.String("pnl", pnl.StringFixed(2)))
	metrics.TradesClosedTotal.WithLabelValues(string(tr.Session), "partial").Inc()

	t.recordExit(ctx, tr, price, model.ResultTarget, toClose, now)
}

// closeRemaining flattens what is left of the trade and books the P&L.
func (t *Trader) closeRemaining(ctx context.Context, tr *model.Trade, price float64, reason string, now time.Time) {
	pnl := t.book.PnL(t.direction(tr, price), tr.Remaining)
	t.book.ApplyPnL(tr.Session, pnl)

	t.logger.Info("trader.exit",
		zap.String("trade_id", tr.ID),
		zap.String("order_id", tr.OrderID),
		zap.String("reason", reason),
		zap.Float64("price", price),
		zap.Int("contracts", tr.Remaining),
		zap.String("pnl", pnl.StringFixed(2)))
	metrics.TradesClosedTotal.WithLabelValues(string(tr.Session), reason).Inc()

	t.recordExit(ctx, tr, price, reason, tr.Remaining, now)
}

// direction returns the signed point move from entry for the trade's bias.
func (t *Trader) direction(tr *model.Trade, price float64) float64 {
	if tr.Bias == model.BiasBullish {
		return price - tr.Entry
	}
	return tr.Entry - price
}

func (t *Trader) recordExit(ctx context.Context, tr *model.Trade, price float64, reason string, contracts int, now time.Time) {
	rec := model.TradeRecord{
		Timestamp:  now.In(session.Eastern()),
		Session:    tr.Session,
		Bias:       tr.Bias,
		Entry:      tr.Entry,
		Stop:       tr.Stop,
		TakeProfit: tr.TakeProfit,
		Size:       contracts,
		OrderID:    tr.OrderID,
		Result:     reason,
		PnL:        t.book.PnL(t.direction(tr, price), contracts),
	}
	t.journalRow(ctx, rec)

	pnlF, _ := rec.PnL.Float64()
	if err := t.deps.Publisher.PublishTradeClosed(ctx, model.TradeClosedEvent{
		TradeID:   tr.ID,
		OrderID:   tr.OrderID,
		Session:   tr.Session,
		Reason:    reason,
		Contracts: contracts,
		Price:     price,
		PnL:       pnlF,
	}); err != nil {
		t.logger.Warn("trader.close_publish_failed", zap.Error(err))
	}
}
