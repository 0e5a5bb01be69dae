package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantex/qx-algo/pkg/model"
)

func newTestStore(t *testing.T) *HybridStore {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &HybridStore{redis: rdb, logger: zap.NewNop()}
}

func TestSetAndGetJSON(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	val := map[string]string{"contract": "MESZ5"}
	require.NoError(t, s.SetJSON(ctx, "test:key", val, time.Minute))

	var got map[string]string
	require.NoError(t, s.GetJSON(ctx, "test:key", &got))
	assert.Equal(t, "MESZ5", got["contract"])
}

func TestGetJSONMissingKey(t *testing.T) {
	s := newTestStore(t)
	var got map[string]string
	err := s.GetJSON(context.Background(), "absent", &got)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBoundsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	b := model.RangeBounds{
		Session: model.SessionRDR,
		Date:    "2025-03-10",
		DRHigh:  5110.5,
		DRLow:   5090.25,
		IDRHigh: 5108,
		IDRLow:  5092,
		IDRStd:  3.2,
		BarN:    12,
	}
	require.NoError(t, s.SaveBounds(ctx, b))

	got, err := s.GetBounds(ctx, model.SessionRDR, "2025-03-10")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, b.DRHigh, got.DRHigh)
	assert.Equal(t, b.IDRStd, got.IDRStd)

	// Different date misses.
	got, err = s.GetBounds(ctx, model.SessionRDR, "2025-03-11")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOpenTradesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Empty before any save.
	got, err := s.LoadOpenTrades(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	trades := []model.Trade{
		{ID: "01J0TEST", OrderID: "42", Session: model.SessionADR, Bias: model.BiasBearish, Entry: 5100, Contracts: 3, Remaining: 3},
	}
	require.NoError(t, s.SaveOpenTrades(ctx, trades))

	got, err = s.LoadOpenTrades(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "42", got[0].OrderID)
	assert.Equal(t, model.SessionADR, got[0].Session)
}

func TestHealthCheck(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.HealthCheck(context.Background()))
}
