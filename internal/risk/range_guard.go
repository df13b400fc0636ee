package risk

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/lpbot/internal/config"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RANGE GUARD - out-of-range timer, rebalance schedule and stop-loss line
// ═══════════════════════════════════════════════════════════════════════════════

var hundred = decimal.NewFromInt(100)

// Observation is the slice of a snapshot the guard decides on.
type Observation struct {
	CurrentTick  int
	TickLower    int
	TickUpper    int
	HasLiquidity bool
	NetValue     decimal.Decimal
	InitialNet   decimal.Decimal
}

// Direction of an out-of-range excursion.
const (
	DirectionUpper = "upper"
	DirectionLower = "lower"
)

// Evaluation is the guard's verdict for one observation.
type Evaluation struct {
	OutOfRange   bool
	Direction    string
	Since        *time.Time
	RemainingSec *int

	// RebalanceDue is true once per episode after the delay has elapsed.
	RebalanceDue bool

	StopLoss     bool
	StopLossLine decimal.Decimal
}

// RangeGuard tracks a single out-of-range episode. An episode starts at the
// first out-of-range observation and ends when the position is back in range
// or Reset is called.
type RangeGuard struct {
	mu    sync.Mutex
	since time.Time
	fired bool
}

func NewRangeGuard() *RangeGuard {
	return &RangeGuard{}
}

// Observe updates the episode and evaluates the policy.
func (g *RangeGuard) Observe(obs Observation, cfg config.Runtime, now time.Time) Evaluation {
	g.mu.Lock()
	defer g.mu.Unlock()

	var ev Evaluation
	ev.StopLoss, ev.StopLossLine = StopLossHit(obs, cfg.StopLossPercent)

	switch {
	case !obs.HasLiquidity:
	case obs.CurrentTick < obs.TickLower:
		ev.OutOfRange, ev.Direction = true, DirectionLower
	case obs.CurrentTick > obs.TickUpper:
		ev.OutOfRange, ev.Direction = true, DirectionUpper
	}

	if !ev.OutOfRange {
		if !g.since.IsZero() {
			log.Info().Msg("✅ Back in range, rebalance timer cleared")
		}
		g.since = time.Time{}
		g.fired = false
		return ev
	}

	if g.since.IsZero() {
		g.since = now
		log.Warn().
			Str("direction", ev.Direction).
			Int("tick", obs.CurrentTick).
			Int("delay_sec", cfg.RebalanceDelaySec).
			Msg("⚠️ Position out of range, rebalance timer started")
	}
	since := g.since
	ev.Since = &since

	elapsed := now.Sub(g.since)
	delay := time.Duration(cfg.RebalanceDelaySec) * time.Second
	remaining := int(math.Ceil((delay - elapsed).Seconds()))
	if remaining < 0 {
		remaining = 0
	}
	ev.RemainingSec = &remaining
	ev.RebalanceDue = elapsed >= delay && !g.fired
	return ev
}

// MarkFired records that this episode's rebalance has been dispatched.
func (g *RangeGuard) MarkFired() {
	g.mu.Lock()
	g.fired = true
	g.mu.Unlock()
}

// Reset ends the current episode.
func (g *RangeGuard) Reset() {
	g.mu.Lock()
	g.since = time.Time{}
	g.fired = false
	g.mu.Unlock()
}

// StopLossHit reports whether net value has fallen to initial × (1 − pct/100).
// A non-positive percent or missing baseline disables the check.
func StopLossHit(obs Observation, pct decimal.Decimal) (bool, decimal.Decimal) {
	if !pct.IsPositive() || !obs.InitialNet.IsPositive() || !obs.HasLiquidity {
		return false, decimal.Zero
	}
	line := obs.InitialNet.Mul(decimal.NewFromInt(1).Sub(pct.Div(hundred)))
	return obs.NetValue.LessThanOrEqual(line), line
}
