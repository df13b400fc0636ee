package config

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidConfig is returned when a runtime update fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Runtime is the policy that can be tuned while the bot runs.
type Runtime struct {
	TickRange          int             `json:"tickRange"`
	RebalanceDelaySec  int             `json:"rebalanceDelaySec"`
	SlippageBps        int             `json:"slippageBps"`
	StopLossPercent    decimal.Decimal `json:"stopLossPercent"`
	MaxGasPriceGwei    decimal.Decimal `json:"maxGasPriceGwei"`
	TargetTotalToken1  decimal.Decimal `json:"targetTotalToken1"`
	StopAfterAutoClose bool            `json:"stopAfterAutoClose"`
	PerpHedgeOnMint    bool            `json:"perpHedgeOnMint"`
}

// RuntimePatch is a partial update; nil fields are left unchanged.
type RuntimePatch struct {
	TickRange          *int             `json:"tickRange"`
	RebalanceDelaySec  *int             `json:"rebalanceDelaySec"`
	SlippageBps        *int             `json:"slippageBps"`
	StopLossPercent    *decimal.Decimal `json:"stopLossPercent"`
	MaxGasPriceGwei    *decimal.Decimal `json:"maxGasPriceGwei"`
	TargetTotalToken1  *decimal.Decimal `json:"targetTotalToken1"`
	StopAfterAutoClose *bool            `json:"stopAfterAutoClose"`
	PerpHedgeOnMint    *bool            `json:"perpHedgeOnMint"`
}

// Validate rejects values the executor cannot act on.
func (r Runtime) Validate() error {
	switch {
	case r.TickRange <= 0:
		return fmt.Errorf("%w: tickRange must be positive", ErrInvalidConfig)
	case r.RebalanceDelaySec < 0:
		return fmt.Errorf("%w: rebalanceDelaySec must be >= 0", ErrInvalidConfig)
	case r.SlippageBps < 0 || r.SlippageBps >= 10000:
		return fmt.Errorf("%w: slippageBps must be in [0, 10000)", ErrInvalidConfig)
	case r.StopLossPercent.IsNegative() || r.StopLossPercent.GreaterThan(decimal.NewFromInt(100)):
		return fmt.Errorf("%w: stopLossPercent must be in [0, 100]", ErrInvalidConfig)
	case !r.MaxGasPriceGwei.IsPositive():
		return fmt.Errorf("%w: maxGasPriceGwei must be positive", ErrInvalidConfig)
	case r.TargetTotalToken1.IsNegative():
		return fmt.Errorf("%w: targetTotalToken1 must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// Apply returns a copy of r with the patch applied and validated.
func (r Runtime) Apply(p RuntimePatch) (Runtime, error) {
	next := r
	if p.TickRange != nil {
		next.TickRange = *p.TickRange
	}
	if p.RebalanceDelaySec != nil {
		next.RebalanceDelaySec = *p.RebalanceDelaySec
	}
	if p.SlippageBps != nil {
		next.SlippageBps = *p.SlippageBps
	}
	if p.StopLossPercent != nil {
		next.StopLossPercent = *p.StopLossPercent
	}
	if p.MaxGasPriceGwei != nil {
		next.MaxGasPriceGwei = *p.MaxGasPriceGwei
	}
	if p.TargetTotalToken1 != nil {
		next.TargetTotalToken1 = *p.TargetTotalToken1
	}
	if p.StopAfterAutoClose != nil {
		next.StopAfterAutoClose = *p.StopAfterAutoClose
	}
	if p.PerpHedgeOnMint != nil {
		next.PerpHedgeOnMint = *p.PerpHedgeOnMint
	}
	if err := next.Validate(); err != nil {
		return r, err
	}
	return next, nil
}
