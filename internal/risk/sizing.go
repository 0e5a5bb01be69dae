package risk

import (
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PositionSize converts entry/stop distance into a contract count: the flat
// RiskFraction of the current virtual balance divided by the dollar risk per
// contract at the stop, floored, minimum one contract.
func (b *Book) PositionSize(entry, stop float64) int {
	b.mu.Lock()
	balance, _ := b.virtualBalance.Float64()
	b.mu.Unlock()

	stopDistance := math.Abs(entry - stop)
	ticks := stopDistance / b.cfg.TickSize
	riskPerContract := ticks * b.cfg.TickValue
	riskDollars := math.Max(0, balance*b.cfg.RiskFraction)

	contracts := 1
	if riskPerContract > 0 {
		contracts = int(riskDollars / riskPerContract)
		if contracts < 1 {
			contracts = 1
		}
	}

	b.log.Info("risk.position_size",
		zap.Float64("balance", balance),
		zap.Float64("risk_dollars", riskDollars),
		zap.Float64("stop_points", stopDistance),
		zap.Float64("risk_per_contract", riskPerContract),
		zap.Int("contracts", contracts))
	return contracts
}

// PnL computes the dollar P&L for a move of points on size contracts.
func (b *Book) PnL(points float64, contracts int) decimal.Decimal {
	return decimal.NewFromFloat(points).
		Mul(decimal.NewFromInt(int64(contracts))).
		Mul(decimal.NewFromFloat(b.cfg.PointValue))
}
