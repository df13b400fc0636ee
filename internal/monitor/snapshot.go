package monitor

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/lpbot/internal/amm"
	"github.com/web3guy0/lpbot/internal/chain"
)

// FeesUnavailable is shown when the pending-fee simulation fails.
const FeesUnavailable = "(calc failed)"

var hundred = decimal.NewFromInt(100)

// Snapshot is the latest observed state of the monitored position.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Trigger   string    `json:"trigger"`
	Status    string    `json:"status"`
	TokenID   string    `json:"tokenId"`
	Symbol0   string    `json:"symbol0"`
	Symbol1   string    `json:"symbol1"`

	Price0In1   decimal.Decimal `json:"price0In1"`
	LowerPrice  decimal.Decimal `json:"lowerPrice"`
	UpperPrice  decimal.Decimal `json:"upperPrice"`
	TickLower   int             `json:"tickLower"`
	TickUpper   int             `json:"tickUpper"`
	CurrentTick int             `json:"currentTick"`

	Ratio0      decimal.Decimal `json:"ratio0"`
	Ratio1      decimal.Decimal `json:"ratio1"`
	Amount0     decimal.Decimal `json:"amount0"`
	Amount1     decimal.Decimal `json:"amount1"`
	NetValueIn1 decimal.Decimal `json:"netValueIn1"`

	InitialNetValueIn1 decimal.Decimal `json:"initialNetValueIn1"`
	PnL                decimal.Decimal `json:"pnl"`
	PnLPct             decimal.Decimal `json:"pnlPct"`

	FeesAvailable bool            `json:"feesAvailable"`
	FeesText      string          `json:"feesText"`
	Fee0          decimal.Decimal `json:"fee0"`
	Fee1          decimal.Decimal `json:"fee1"`
	FeeTotalIn1   decimal.Decimal `json:"feeTotalIn1"`
	FeeYieldPct   decimal.Decimal `json:"feeYieldPct"`

	Liquidity string `json:"liquidity"`

	// Set by the decision loop.
	OutOfRange            bool       `json:"outOfRange"`
	OutOfRangeStartAt     *time.Time `json:"outOfRangeStartAt"`
	RebalanceRemainingSec *int       `json:"rebalanceRemainingSec"`
	Busy                  bool       `json:"busy"`
}

// HasLiquidity reports whether the position still holds liquidity.
func (s Snapshot) HasLiquidity() bool {
	return s.Liquidity != "" && s.Liquidity != "0"
}

// Inputs is everything read from chain for one snapshot.
type Inputs struct {
	Trigger    string
	Pool       *chain.PoolContext
	Position   *chain.PositionInfo
	Fee0       *big.Int
	Fee1       *big.Int
	FeesErr    error
	InitialNet decimal.Decimal
	Now        time.Time
}

// Build derives a snapshot from chain reads. InitialNet of zero means no
// baseline yet; PnL is then reported as zero.
func Build(in Inputs) Snapshot {
	pool, pos := in.Pool, in.Position
	dec0, dec1 := pool.Token0.Decimals, pool.Token1.Decimals
	sym0, sym1 := pool.Token0.Symbol, pool.Token1.Symbol

	raw0, raw1 := amm.PositionAmounts(pool.Tick, pool.SqrtPriceX96, pos.TickLower, pos.TickUpper, pos.Liquidity, false)
	amount0 := amm.ToDecimal(raw0, dec0)
	amount1 := amm.ToDecimal(raw1, dec1)
	price := pool.Price0In1()
	value0 := amount0.Mul(price)
	net := value0.Add(amount1)

	snap := Snapshot{
		Timestamp:          in.Now,
		Trigger:            in.Trigger,
		TokenID:            pos.TokenID.String(),
		Symbol0:            sym0,
		Symbol1:            sym1,
		Price0In1:          price,
		LowerPrice:         amm.TickToPrice(pos.TickLower, dec0, dec1),
		UpperPrice:         amm.TickToPrice(pos.TickUpper, dec0, dec1),
		TickLower:          pos.TickLower,
		TickUpper:          pos.TickUpper,
		CurrentTick:        pool.Tick,
		Amount0:            amount0,
		Amount1:            amount1,
		NetValueIn1:        net,
		InitialNetValueIn1: in.InitialNet,
		Liquidity:          pos.Liquidity.String(),
		Ratio0:             decimal.Zero,
		Ratio1:             decimal.Zero,
		PnL:                decimal.Zero,
		PnLPct:             decimal.Zero,
		Fee0:               decimal.Zero,
		Fee1:               decimal.Zero,
		FeeTotalIn1:        decimal.Zero,
		FeeYieldPct:        decimal.Zero,
	}

	if net.IsPositive() {
		snap.Ratio0 = value0.Div(net).Mul(hundred)
		snap.Ratio1 = amount1.Div(net).Mul(hundred)
	}
	if snap.HasLiquidity() && in.InitialNet.IsPositive() {
		snap.PnL = net.Sub(in.InitialNet)
		snap.PnLPct = snap.PnL.Div(in.InitialNet).Mul(hundred)
	}

	switch {
	case pool.Tick < pos.TickLower:
		snap.Status = fmt.Sprintf("OUT OF RANGE (LOW, %s 100%%)", sym0)
	case pool.Tick > pos.TickUpper:
		snap.Status = fmt.Sprintf("OUT OF RANGE (HIGH, %s 100%%)", sym1)
	default:
		snap.Status = "IN RANGE"
	}

	if in.FeesErr != nil || in.Fee0 == nil || in.Fee1 == nil {
		snap.FeesText = FeesUnavailable
		return snap
	}
	snap.FeesAvailable = true
	snap.Fee0 = amm.ToDecimal(in.Fee0, dec0)
	snap.Fee1 = amm.ToDecimal(in.Fee1, dec1)
	snap.FeeTotalIn1 = snap.Fee0.Mul(price).Add(snap.Fee1)
	if net.IsPositive() {
		snap.FeeYieldPct = snap.FeeTotalIn1.Div(net).Mul(hundred)
	}
	snap.FeesText = fmt.Sprintf("+%s %s / +%s %s (Total: %s %s, Yield: %s%%)",
		snap.Fee0.StringFixed(6), sym0, snap.Fee1.StringFixed(6), sym1,
		snap.FeeTotalIn1.StringFixed(4), sym1, snap.FeeYieldPct.StringFixed(2))
	return snap
}

// Lines renders the snapshot as the dashboard log block.
func (s Snapshot) Lines() []string {
	return []string{
		fmt.Sprintf("[%s] %s | %s", s.Timestamp.Format("15:04:05"), s.Trigger, s.Status),
		fmt.Sprintf("Price : 1 %s = %s %s", s.Symbol0, s.Price0In1.StringFixed(6), s.Symbol1),
		fmt.Sprintf("Range : tick %d ~ %d (current %d)", s.TickLower, s.TickUpper, s.CurrentTick),
		fmt.Sprintf("Asset : %s %s%% / %s %s%%", s.Symbol0, s.Ratio0.StringFixed(0), s.Symbol1, s.Ratio1.StringFixed(0)),
		fmt.Sprintf("Value : %s %s + %s %s", s.Amount0.StringFixed(4), s.Symbol0, s.Amount1.StringFixed(4), s.Symbol1),
		fmt.Sprintf("Net   : %s %s (PnL %s %s, %s%%)", s.NetValueIn1.StringFixed(4), s.Symbol1, signed(s.PnL), s.Symbol1, signed(s.PnLPct)),
		fmt.Sprintf("Fees  : %s", s.FeesText),
	}
}

func signed(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.StringFixed(2)
	}
	return "+" + d.StringFixed(2)
}
