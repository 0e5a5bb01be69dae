package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "qx-algo", cfg.ServiceName)
	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, "web", cfg.AssetsDir)
	assert.Equal(t, "MESZ5", cfg.ContractName)
	assert.False(t, cfg.EnableLiveTrading)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 2000.0, cfg.VirtualBalance)
	assert.Equal(t, 2, cfg.MaxTradesPerSession)
	assert.Equal(t, 0.20, cfg.EntryRetraceFraction)
	assert.Equal(t, time.Hour, cfg.TimeStop)
	assert.Equal(t, 10*time.Minute, cfg.ConfirmationMaxAge)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("ENABLE_LIVE_TRADING", "true")
	t.Setenv("POLL_INTERVAL", "15s")
	t.Setenv("MAX_TRADES_PER_SESSION", "1")
	t.Setenv("RISK_FRACTION", "0.05")
	t.Setenv("TOPSTEPX_CONTRACT_NAME", "MESH6")

	cfg := Load()
	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.EnableLiveTrading)
	assert.Equal(t, 15*time.Second, cfg.PollInterval)
	assert.Equal(t, 1, cfg.MaxTradesPerSession)
	assert.Equal(t, 0.05, cfg.RiskFraction)
	assert.Equal(t, "MESH6", cfg.ContractName)
}

func TestEnvHelpersFallBackOnBadValues(t *testing.T) {
	t.Setenv("SOME_INT", "not-a-number")
	t.Setenv("SOME_DUR", "soon")
	t.Setenv("SOME_BOOL", "yep")

	assert.Equal(t, 7, GetEnvInt("SOME_INT", 7))
	assert.Equal(t, time.Minute, GetEnvDuration("SOME_DUR", time.Minute))
	assert.True(t, GetEnvBool("SOME_BOOL", true))
	assert.Equal(t, "d", GetEnv("SOME_UNSET", "d"))
}
