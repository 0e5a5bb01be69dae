package journal

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/quantex/qx-algo/pkg/model"
)

// PGWriter mirrors journal rows into the trading.t_trade table so the desk
// can query history without touching the CSV on disk.
type PGWriter struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPGWriter constructs a writer over an existing pool. A nil pool disables
// mirroring; Upsert becomes a no-op.
func NewPGWriter(db *pgxpool.Pool, logger *zap.Logger) *PGWriter {
	return &PGWriter{db: db, logger: logger}
}

// Upsert inserts or updates a trade row keyed by order id plus result. Entry
// and exit rows for the same order are distinct records.
func (w *PGWriter) Upsert(ctx context.Context, rec model.TradeRecord) error {
	if w.db == nil {
		return nil
	}

	const query = `
		INSERT INTO trading.t_trade (
			s_order_id,
			s_session,
			s_bias,
			dec_entry,
			dec_stop,
			dec_take_profit,
			n_size,
			s_result,
			dec_pnl,
			dt_trade
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (s_order_id, s_result)
		DO UPDATE SET
			dec_pnl = EXCLUDED.dec_pnl,
			n_size = EXCLUDED.n_size,
			dt_trade = EXCLUDED.dt_trade;
	`

	_, err := w.db.Exec(ctx, query,
		rec.OrderID,
		string(rec.Session),
		string(rec.Bias),
		rec.Entry,
		rec.Stop,
		rec.TakeProfit,
		rec.Size,
		rec.Result,
		rec.PnL,
		rec.Timestamp,
	)
	if err != nil {
		w.logger.Error("journal.pg_upsert_failed",
			zap.String("order_id", rec.OrderID),
			zap.String("result", rec.Result),
			zap.Error(err))
		return err
	}

	w.logger.Debug("journal.pg_upsert",
		zap.String("order_id", rec.OrderID),
		zap.String("result", rec.Result))
	return nil
}
