package execution

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/lpbot/internal/amm"
)

// ErrInsufficientFunds is returned when the wallet cannot cover a non-zero target size.
var ErrInsufficientFunds = errors.New("total value is below TARGET_TOTAL_TOKEN1, please fund the wallet")

var (
	bpsDenominator = big.NewInt(10_000)
	feeDenominator = decimal.NewFromInt(1_000_000)
	weiPerEther    = decimal.New(1, 18)
	two            = decimal.NewFromInt(2)
)

// SwapDirection says which way the pre-mint swap goes.
type SwapDirection int

const (
	SwapNone  SwapDirection = iota
	SwapBuy0                // token1 -> exact amount of token0
	SwapSell0               // exact amount of token0 -> token1
)

func (d SwapDirection) String() string {
	switch d {
	case SwapBuy0:
		return "buy0"
	case SwapSell0:
		return "sell0"
	default:
		return "none"
	}
}

// SwapPlan is the swap that brings wallet balances to a 50/50 value split.
type SwapPlan struct {
	Direction    SwapDirection
	Amount0      *big.Int // raw token0 bought or sold
	TotalValue   decimal.Decimal
	TargetTotal  decimal.Decimal
	TargetAmount decimal.Decimal // whole token0 wanted after the swap
}

// PlanRebalanceSwap computes the token0 deficit or excess relative to half of
// the target total. A zero target uses the whole wallet value.
func PlanRebalanceSwap(balance0, balance1 *big.Int, decimals0, decimals1 uint8, price0In1, targetTotal decimal.Decimal) (SwapPlan, error) {
	if !price0In1.IsPositive() {
		return SwapPlan{}, fmt.Errorf("pool price is zero")
	}

	total := amm.ValueIn1(balance0, balance1, decimals0, decimals1, price0In1)
	plan := SwapPlan{Direction: SwapNone, Amount0: new(big.Int), TotalValue: total, TargetTotal: total}

	if targetTotal.IsPositive() {
		if total.LessThan(targetTotal) {
			return plan, fmt.Errorf("%w (have %s, need %s)", ErrInsufficientFunds, total.StringFixed(6), targetTotal.StringFixed(6))
		}
		plan.TargetTotal = targetTotal
	}

	plan.TargetAmount = plan.TargetTotal.Div(two).Div(price0In1)
	held := amm.ToDecimal(balance0, decimals0)

	switch {
	case held.LessThan(plan.TargetAmount):
		plan.Direction = SwapBuy0
		plan.Amount0 = amm.FromDecimal(plan.TargetAmount.Sub(held), decimals0)
	case held.GreaterThan(plan.TargetAmount):
		plan.Direction = SwapSell0
		plan.Amount0 = amm.FromDecimal(held.Sub(plan.TargetAmount), decimals0)
	}
	if plan.Amount0.Sign() == 0 {
		plan.Direction = SwapNone
	}
	return plan, nil
}

// MintAmounts returns the desired deposit: half the target per side when a
// target is set, otherwise the full balances. Both are capped at the balances.
func MintAmounts(balance0, balance1 *big.Int, decimals0, decimals1 uint8, price0In1, targetTotal decimal.Decimal) (*big.Int, *big.Int) {
	want0, want1 := new(big.Int).Set(balance0), new(big.Int).Set(balance1)
	if targetTotal.IsPositive() && price0In1.IsPositive() {
		half := targetTotal.Div(two)
		want0 = amm.FromDecimal(half.Div(price0In1), decimals0)
		want1 = amm.FromDecimal(half, decimals1)
	}
	return minBig(want0, balance0), minBig(want1, balance1)
}

// MintTicks centres a range of ±tickRange on tick, aligned to spacing.
// A collapsed range is widened by one spacing.
func MintTicks(tick, tickRange, spacing int) (int, int) {
	lower := amm.NearestUsableTick(tick-tickRange, spacing)
	upper := amm.NearestUsableTick(tick+tickRange, spacing)
	if lower >= upper {
		upper = lower + spacing
	}
	return lower, upper
}

// RealizedFees is max(0, collected - principal).
func RealizedFees(collected, principal *big.Int) *big.Int {
	fees := new(big.Int).Sub(orZero(collected), orZero(principal))
	if fees.Sign() < 0 {
		return new(big.Int)
	}
	return fees
}

// WithSlippageUp is q × (10000 + bps) / 10000.
func WithSlippageUp(q *big.Int, bps int) *big.Int {
	out := new(big.Int).Mul(q, big.NewInt(int64(10_000+bps)))
	return out.Quo(out, bpsDenominator)
}

// WithSlippageDown is q × (10000 - bps) / 10000, floored at zero.
func WithSlippageDown(q *big.Int, bps int) *big.Int {
	if bps >= 10_000 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(q, big.NewInt(int64(10_000-bps)))
	return out.Quo(out, bpsDenominator)
}

// WeiToEther converts wei to whole native units.
func WeiToEther(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, 0).Div(weiPerEther)
}

// SwapFeeIn1 is the pool fee charged on a token0 leg, valued in token1.
func SwapFeeIn1(amount0 *big.Int, decimals0 uint8, price0In1 decimal.Decimal, feeTier uint32) decimal.Decimal {
	value := amm.ToDecimal(amount0, decimals0).Mul(price0In1)
	return value.Mul(decimal.NewFromInt(int64(feeTier))).Div(feeDenominator)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) > 0 {
		return new(big.Int).Set(b)
	}
	return new(big.Int).Set(a)
}
