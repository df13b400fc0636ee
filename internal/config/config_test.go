package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("RPC_URL", "http://localhost:8545")
	t.Setenv("POOL_ADDRESS", "0xC6962004f452bE9203591991D15f6b388e09E8D0")
	t.Setenv("PRIVATE_KEY", "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(42161), cfg.ChainID)
	assert.Equal(t, 5*time.Second, cfg.UpdateInterval)
	assert.Equal(t, 300*time.Second, cfg.RebalanceDeadline)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, DefaultPositionManager, cfg.PositionManager)
	assert.True(t, cfg.Perp.MaxSlippagePct.IsZero())

	rt := cfg.Runtime
	assert.Equal(t, 50, rt.TickRange)
	assert.Equal(t, 300, rt.RebalanceDelaySec)
	assert.Equal(t, 50, rt.SlippageBps)
	assert.True(t, rt.StopLossPercent.Equal(decimal.NewFromInt(10)))
	assert.True(t, rt.MaxGasPriceGwei.Equal(decimal.NewFromInt(50)))
	assert.True(t, rt.TargetTotalToken1.IsZero())
	assert.False(t, rt.StopAfterAutoClose)
	assert.True(t, rt.PerpHedgeOnMint)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("RPC_URL", "")
	t.Setenv("POOL_ADDRESS", "0xpool")
	t.Setenv("PRIVATE_KEY", "key")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RPC_URL")
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("TICK_RANGE", "120")
	t.Setenv("STOP_AFTER_AUTO_CLOSE", "yes")
	t.Setenv("TARGET_TOTAL_TOKEN1", "250.5")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("TELEGRAM_CHAT_ID", "-1001")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Runtime.TickRange)
	assert.True(t, cfg.Runtime.StopAfterAutoClose)
	assert.Equal(t, "250.5", cfg.Runtime.TargetTotalToken1.String())
	assert.Equal(t, "/tmp/x.db", cfg.DatabasePath)
	assert.Equal(t, int64(-1001), cfg.TelegramChatID)
}

func TestParseBool(t *testing.T) {
	assert.True(t, ParseBool("ON", false))
	assert.False(t, ParseBool("off", true))
	assert.True(t, ParseBool("maybe", true))
	assert.False(t, ParseBool("", false))
}

func TestRuntimeApply(t *testing.T) {
	base := Runtime{
		TickRange:         50,
		RebalanceDelaySec: 300,
		SlippageBps:       50,
		StopLossPercent:   decimal.NewFromInt(10),
		MaxGasPriceGwei:   decimal.NewFromInt(50),
	}

	tr := 80
	next, err := base.Apply(RuntimePatch{TickRange: &tr})
	require.NoError(t, err)
	assert.Equal(t, 80, next.TickRange)
	assert.Equal(t, 300, next.RebalanceDelaySec)
	assert.Equal(t, 50, base.TickRange, "base must be untouched")

	bad := 10000
	kept, err := base.Apply(RuntimePatch{SlippageBps: &bad})
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, 50, kept.SlippageBps)

	neg := decimal.NewFromInt(-1)
	_, err = base.Apply(RuntimePatch{TargetTotalToken1: &neg})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPerpStreamURL(t *testing.T) {
	assert.Contains(t, PerpConfig{Env: "testnet"}.PerpStreamURL(), "testnet")
	assert.Contains(t, PerpConfig{Env: "mainnet"}.PerpStreamURL(), "api.extended.exchange")
	assert.Equal(t, "wss://x", PerpConfig{StreamURL: "wss://x"}.PerpStreamURL())
}
