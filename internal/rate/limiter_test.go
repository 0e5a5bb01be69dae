package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowRespectsBurst(t *testing.T) {
	l := New(Config{RequestsPerSecond: 1, Burst: 3})

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(), "request %d within burst", i)
	}
	assert.False(t, l.Allow())
}

func TestTokensRefillOverTime(t *testing.T) {
	l := New(Config{RequestsPerSecond: 100, Burst: 1})
	require.True(t, l.Allow())
	assert.False(t, l.Allow())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, l.Allow())
}

func TestWaitHonorsContextCancel(t *testing.T) {
	l := New(Config{RequestsPerSecond: 1, Burst: 1})
	require.True(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestManagerKeepsPerKeyLimiters(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 1, Burst: 1})

	require.True(t, m.GetLimiter("history").Allow())
	assert.False(t, m.GetLimiter("history").Allow())

	// Separate key, separate bucket.
	assert.True(t, m.GetLimiter("orders").Allow())

	// Same key returns the same limiter.
	assert.Same(t, m.GetLimiter("history"), m.GetLimiter("history"))
}

func TestManagerWait(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 100, Burst: 2})
	ctx := context.Background()
	require.NoError(t, m.Wait(ctx, "history"))
	require.NoError(t, m.Wait(ctx, "history"))
}
