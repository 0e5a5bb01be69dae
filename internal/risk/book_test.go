package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantex/qx-algo/pkg/model"
)

func testConfig() Config {
	return Config{
		VirtualBalance:      2000,
		MaxDailyLoss:        2000,
		MaxTradesPerSession: 2,
		RiskFraction:        0.12,
		TickSize:            0.25,
		TickValue:           1.25,
		PointValue:          5.0,
	}
}

func newTestBook() *Book {
	return NewBook(testConfig(), zap.NewNop())
}

func TestLadderTwoWinsRaisesRisk(t *testing.T) {
	b := newTestBook()
	assert.Equal(t, riskBase, b.Snapshot().RiskPercent)

	b.ApplyPnL(model.SessionRDR, decimal.NewFromInt(100))
	assert.Equal(t, riskBase, b.Snapshot().RiskPercent)

	b.ApplyPnL(model.SessionRDR, decimal.NewFromInt(100))
	assert.Equal(t, riskHotStreak, b.Snapshot().RiskPercent)

	// A third win drops back to base.
	b.ApplyPnL(model.SessionODR, decimal.NewFromInt(100))
	assert.Equal(t, riskBase, b.Snapshot().RiskPercent)
}

func TestLadderLossCutsRisk(t *testing.T) {
	b := newTestBook()
	b.ApplyPnL(model.SessionRDR, decimal.NewFromInt(100))
	b.ApplyPnL(model.SessionRDR, decimal.NewFromInt(-50))
	snap := b.Snapshot()
	assert.Equal(t, riskAfterLoss, snap.RiskPercent)
	assert.Equal(t, 1, snap.Wins)
	assert.Equal(t, 1, snap.Losses)
}

func TestPnLTracksBalance(t *testing.T) {
	b := newTestBook()
	b.ApplyPnL(model.SessionRDR, decimal.NewFromInt(150))
	b.ApplyPnL(model.SessionADR, decimal.NewFromInt(-250))

	snap := b.Snapshot()
	assert.Equal(t, "-100", snap.DailyPnL.String())
	assert.Equal(t, "1900", snap.VirtualBalance.String())
}

func TestCanTradeSessionSlots(t *testing.T) {
	b := newTestBook()
	ok, _ := b.CanTrade(model.SessionRDR)
	require.True(t, ok)

	b.ConsumeSlot(model.SessionRDR)
	b.ConsumeSlot(model.SessionRDR)
	ok, reason := b.CanTrade(model.SessionRDR)
	assert.False(t, ok)
	assert.Contains(t, reason, "max trades")

	// Other sessions are unaffected.
	ok, _ = b.CanTrade(model.SessionADR)
	assert.True(t, ok)
}

func TestCanTradeDailyLossLimit(t *testing.T) {
	b := newTestBook()
	b.ApplyPnL(model.SessionRDR, decimal.NewFromInt(-2000))
	ok, reason := b.CanTrade(model.SessionODR)
	assert.False(t, ok)
	assert.Contains(t, reason, "daily loss")
}

func TestResetDaily(t *testing.T) {
	b := newTestBook()
	b.ConsumeSlot(model.SessionRDR)
	b.ApplyPnL(model.SessionRDR, decimal.NewFromInt(-500))

	b.ResetDaily()
	snap := b.Snapshot()
	assert.True(t, snap.DailyPnL.IsZero())
	assert.Equal(t, "2000", snap.VirtualBalance.String())
	assert.Equal(t, 0, b.SessionTrades(model.SessionRDR))
	assert.Equal(t, riskBase, snap.RiskPercent)
}

func TestPositionSize(t *testing.T) {
	b := newTestBook()

	// 4 point stop = 16 ticks = $20/contract. 12% of 2000 = $240 -> 12.
	assert.Equal(t, 12, b.PositionSize(100, 96))

	// Wide stop floors at one contract.
	assert.Equal(t, 1, b.PositionSize(100, 40))
}

func TestPnLDollars(t *testing.T) {
	b := newTestBook()
	pnl := b.PnL(2.5, 4) // 2.5 points x 4 contracts x $5
	assert.Equal(t, "50", pnl.String())
}
