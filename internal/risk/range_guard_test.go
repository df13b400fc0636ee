package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/lpbot/internal/config"
)

func policy() config.Runtime {
	return config.Runtime{
		TickRange:         50,
		RebalanceDelaySec: 300,
		SlippageBps:       50,
		StopLossPercent:   decimal.NewFromInt(10),
		MaxGasPriceGwei:   decimal.NewFromInt(50),
	}
}

func obsAt(tick int) Observation {
	return Observation{
		CurrentTick:  tick,
		TickLower:    -100,
		TickUpper:    100,
		HasLiquidity: true,
		NetValue:     decimal.NewFromInt(100),
		InitialNet:   decimal.NewFromInt(100),
	}
}

func TestRebalanceDueAfterDelayOnce(t *testing.T) {
	g := NewRangeGuard()
	t0 := time.Unix(1_700_000_000, 0)

	ev := g.Observe(obsAt(150), policy(), t0)
	require.True(t, ev.OutOfRange)
	assert.Equal(t, DirectionUpper, ev.Direction)
	assert.False(t, ev.RebalanceDue)
	require.NotNil(t, ev.RemainingSec)
	assert.Equal(t, 300, *ev.RemainingSec)

	ev = g.Observe(obsAt(150), policy(), t0.Add(299*time.Second))
	assert.False(t, ev.RebalanceDue)
	assert.Equal(t, 1, *ev.RemainingSec)
	assert.True(t, ev.Since.Equal(t0))

	ev = g.Observe(obsAt(150), policy(), t0.Add(300*time.Second))
	assert.True(t, ev.RebalanceDue)
	assert.Equal(t, 0, *ev.RemainingSec)

	g.MarkFired()
	ev = g.Observe(obsAt(150), policy(), t0.Add(400*time.Second))
	assert.False(t, ev.RebalanceDue, "must fire at most once per episode")
}

func TestRemainingSecRoundsUp(t *testing.T) {
	g := NewRangeGuard()
	t0 := time.Unix(1_700_000_000, 0)
	g.Observe(obsAt(-150), policy(), t0)

	ev := g.Observe(obsAt(-150), policy(), t0.Add(10*time.Second+200*time.Millisecond))
	assert.Equal(t, DirectionLower, ev.Direction)
	assert.Equal(t, 290, *ev.RemainingSec)
}

func TestBackInRangeClearsTimer(t *testing.T) {
	g := NewRangeGuard()
	t0 := time.Unix(1_700_000_000, 0)
	g.Observe(obsAt(150), policy(), t0)

	ev := g.Observe(obsAt(50), policy(), t0.Add(200*time.Second))
	assert.False(t, ev.OutOfRange)
	assert.Nil(t, ev.Since)
	assert.Nil(t, ev.RemainingSec)

	// a fresh excursion restarts the full delay
	ev = g.Observe(obsAt(150), policy(), t0.Add(250*time.Second))
	assert.Equal(t, 300, *ev.RemainingSec)
	ev = g.Observe(obsAt(150), policy(), t0.Add(500*time.Second))
	assert.False(t, ev.RebalanceDue)
}

func TestResetStartsNewEpisode(t *testing.T) {
	g := NewRangeGuard()
	t0 := time.Unix(1_700_000_000, 0)
	g.Observe(obsAt(150), policy(), t0)
	g.Observe(obsAt(150), policy(), t0.Add(300*time.Second))
	g.MarkFired()
	g.Reset()

	ev := g.Observe(obsAt(150), policy(), t0.Add(301*time.Second))
	assert.False(t, ev.RebalanceDue)
	assert.True(t, ev.Since.Equal(t0.Add(301*time.Second)))
}

func TestBoundsAreInRange(t *testing.T) {
	g := NewRangeGuard()
	now := time.Now()
	assert.False(t, g.Observe(obsAt(-100), policy(), now).OutOfRange)
	assert.False(t, g.Observe(obsAt(100), policy(), now).OutOfRange)
}

func TestNoLiquidityNeverOutOfRange(t *testing.T) {
	g := NewRangeGuard()
	obs := obsAt(500)
	obs.HasLiquidity = false
	ev := g.Observe(obs, policy(), time.Now())
	assert.False(t, ev.OutOfRange)
	assert.False(t, ev.StopLoss)
}

func TestZeroDelayFiresImmediately(t *testing.T) {
	g := NewRangeGuard()
	cfg := policy()
	cfg.RebalanceDelaySec = 0
	ev := g.Observe(obsAt(150), cfg, time.Now())
	assert.True(t, ev.RebalanceDue)
}

func TestStopLossLine(t *testing.T) {
	cases := []struct {
		net  int64
		want bool
	}{
		{net: 89, want: true},
		{net: 90, want: true},
		{net: 91, want: false},
		{net: 120, want: false},
	}
	for _, c := range cases {
		obs := obsAt(0)
		obs.NetValue = decimal.NewFromInt(c.net)
		hit, line := StopLossHit(obs, decimal.NewFromInt(10))
		assert.Equal(t, c.want, hit, "net=%d", c.net)
		assert.True(t, line.Equal(decimal.NewFromInt(90)))
	}
}

func TestStopLossDisabled(t *testing.T) {
	obs := obsAt(0)
	obs.NetValue = decimal.NewFromInt(1)

	hit, _ := StopLossHit(obs, decimal.Zero)
	assert.False(t, hit)

	obs.InitialNet = decimal.Zero
	hit, _ = StopLossHit(obs, decimal.NewFromInt(10))
	assert.False(t, hit)
}
