package trader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantex/qx-algo/internal/topstepx"
	"github.com/quantex/qx-algo/pkg/model"
)

func openBullish(openTime time.Time) model.Trade {
	return model.Trade{
		ID:         "01TEST",
		Session:    model.SessionRDR,
		Bias:       model.BiasBullish,
		Entry:      5103,
		Stop:       5098,
		TakeProfit: 5110,
		Contracts:  4,
		Remaining:  4,
		HighWater:  5103,
		OpenTime:   openTime,
	}
}

func setPrice(t *testing.T, tr *Trader, hh, mm int, price float64) {
	t.Helper()
	tr.series.Replace([]model.Bar{tradingBar(t, hh, mm, price)})
}

func TestExitHardStop(t *testing.T) {
	tr := newTestTrader(t)
	now := et(t, 11, 0)
	tr.openTrades = []model.Trade{openBullish(now.Add(-10 * time.Minute))}
	setPrice(t, tr, 11, 0, 5097)

	tr.manageExits(context.Background(), now)

	assert.Empty(t, tr.openTrades)
	// -6 points x 4 contracts x $5.
	assert.Equal(t, "-120", tr.book.Snapshot().DailyPnL.String())

	recs, err := tr.deps.Journal.ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.ResultStop, recs[0].Result)
	assert.Equal(t, 4, recs[0].Size)
}

func TestExitTimeStopBeatsEverything(t *testing.T) {
	tr := newTestTrader(t)
	now := et(t, 12, 30)
	// Price is below the hard stop too, but the trade is already overdue.
	tr.openTrades = []model.Trade{openBullish(now.Add(-2 * time.Hour))}
	setPrice(t, tr, 12, 30, 5097)

	tr.manageExits(context.Background(), now)

	assert.Empty(t, tr.openTrades)
	recs, err := tr.deps.Journal.ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.ResultTime, recs[0].Result)
}

func TestExitPartialThenTrail(t *testing.T) {
	tr := newTestTrader(t)
	opened := et(t, 11, 0)
	tr.openTrades = []model.Trade{openBullish(opened)}

	// Target tags: 75% of 4 contracts comes off, trail arms at price - 5.
	setPrice(t, tr, 11, 5, 5110)
	tr.manageExits(context.Background(), et(t, 11, 5))

	require.Len(t, tr.openTrades, 1)
	got := tr.openTrades[0]
	assert.True(t, got.PartialTaken)
	assert.True(t, got.TrailActive)
	assert.Equal(t, 1, got.Remaining)
	assert.Equal(t, 5105.0, got.TrailStop)
	// 7 points x 3 contracts x $5 booked on the partial.
	assert.Equal(t, "105", tr.book.Snapshot().DailyPnL.String())

	// New high ratchets the trail up, no exit yet.
	setPrice(t, tr, 11, 10, 5114)
	tr.manageExits(context.Background(), et(t, 11, 10))
	require.Len(t, tr.openTrades, 1)
	assert.Equal(t, 5109.0, tr.openTrades[0].TrailStop)
	assert.Equal(t, 5114.0, tr.openTrades[0].HighWater)

	// Pullback through the trail closes the remainder.
	setPrice(t, tr, 11, 15, 5108)
	tr.manageExits(context.Background(), et(t, 11, 15))
	assert.Empty(t, tr.openTrades)
	// Plus 5 points x 1 contract x $5.
	assert.Equal(t, "130", tr.book.Snapshot().DailyPnL.String())

	recs, err := tr.deps.Journal.ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, model.ResultTarget, recs[0].Result)
	assert.Equal(t, 3, recs[0].Size)
	assert.Equal(t, model.ResultTrail, recs[1].Result)
	assert.Equal(t, 1, recs[1].Size)
}

func TestExitBearishPartialAndStop(t *testing.T) {
	tr := newTestTrader(t)
	opened := et(t, 11, 0)
	tr.openTrades = []model.Trade{{
		ID:         "01BEAR",
		Session:    model.SessionRDR,
		Bias:       model.BiasBearish,
		Entry:      5097,
		Stop:       5102,
		TakeProfit: 5090,
		Contracts:  4,
		Remaining:  4,
		LowWater:   5097,
		OpenTime:   opened,
	}}

	// Target: trail arms at price + 5.
	setPrice(t, tr, 11, 5, 5090)
	tr.manageExits(context.Background(), et(t, 11, 5))
	require.Len(t, tr.openTrades, 1)
	assert.Equal(t, 5095.0, tr.openTrades[0].TrailStop)
	// 7 points x 3 contracts x $5.
	assert.Equal(t, "105", tr.book.Snapshot().DailyPnL.String())

	// Bounce through the trail flattens the rest.
	setPrice(t, tr, 11, 10, 5096)
	tr.manageExits(context.Background(), et(t, 11, 10))
	assert.Empty(t, tr.openTrades)
	assert.Equal(t, "110", tr.book.Snapshot().DailyPnL.String())
}

func TestExitSmallPositionSkipsPartial(t *testing.T) {
	tr := newTestTrader(t)
	opened := et(t, 11, 0)
	trade := openBullish(opened)
	trade.Contracts = 1
	trade.Remaining = 1
	tr.openTrades = []model.Trade{trade}

	// int(1 * 0.75) == 0: nothing to peel off, trade rides untouched.
	setPrice(t, tr, 11, 5, 5110)
	tr.manageExits(context.Background(), et(t, 11, 5))

	require.Len(t, tr.openTrades, 1)
	assert.False(t, tr.openTrades[0].PartialTaken)
	assert.False(t, tr.openTrades[0].TrailActive)
	assert.True(t, tr.book.Snapshot().DailyPnL.IsZero())
}

func TestExitUsesFreshHubQuote(t *testing.T) {
	tr := newTestTrader(t)
	tr.cfg.PollInterval = 30 * time.Second
	now := et(t, 11, 0)
	tr.openTrades = []model.Trade{openBullish(now.Add(-10 * time.Minute))}

	// The last bar close sits safely above the stop, but a quote that
	// arrived seconds ago shows the stop trading through.
	setPrice(t, tr, 10, 55, 5101)
	tr.onQuote(topstepx.Quote{Price: 5097})
	tr.lastQuoteAt = now.Add(-5 * time.Second)

	tr.manageExits(context.Background(), now)
	assert.Empty(t, tr.openTrades)

	recs, err := tr.deps.Journal.ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.ResultStop, recs[0].Result)
}

func TestExitIgnoresStaleHubQuote(t *testing.T) {
	tr := newTestTrader(t)
	tr.cfg.PollInterval = 30 * time.Second
	now := et(t, 11, 0)
	tr.openTrades = []model.Trade{openBullish(now.Add(-10 * time.Minute))}

	// A quote older than one poll cycle is distrusted; the bar close rules.
	setPrice(t, tr, 10, 55, 5101)
	tr.onQuote(topstepx.Quote{Price: 5097})
	tr.lastQuoteAt = now.Add(-2 * time.Minute)

	tr.manageExits(context.Background(), now)
	require.Len(t, tr.openTrades, 1)
}

func TestExitNoTradesNoop(t *testing.T) {
	tr := newTestTrader(t)
	setPrice(t, tr, 11, 0, 5100)
	tr.manageExits(context.Background(), et(t, 11, 0))
	assert.Empty(t, tr.openTrades)
}
