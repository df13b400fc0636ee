package execution

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/web3guy0/lpbot/internal/amm"
	"github.com/web3guy0/lpbot/internal/chain"
	"github.com/web3guy0/lpbot/internal/config"
)

// ═══════════════════════════════════════════════════════════════════════════════
// EXECUTOR - ordered, awaited transaction sequences for one position
// ═══════════════════════════════════════════════════════════════════════════════
//
//   Close:     decrease 100% → collect → value in token1
//   Mint:      balances → swap to 50/50 → refresh pool → approve → mint
//   Rebalance: Close then Mint (no atomicity across steps)
//
// Every step waits for its receipt. A failed step aborts the sequence.
// ═══════════════════════════════════════════════════════════════════════════════

// Chain is the on-chain surface the executor drives.
type Chain interface {
	Owner() common.Address
	PositionManager() common.Address
	Router() common.Address
	LoadPool(ctx context.Context) (*chain.PoolContext, error)
	Position(ctx context.Context, tokenID *big.Int) (*chain.PositionInfo, error)
	DecreaseLiquidity(ctx context.Context, tokenID, liquidity *big.Int, deadline int64) (*chain.TxResult, error)
	Collect(ctx context.Context, tokenID *big.Int) (*chain.TxResult, error)
	BalanceOf(ctx context.Context, token common.Address) (*big.Int, error)
	EnsureAllowance(ctx context.Context, token, spender common.Address, amount *big.Int) (*chain.TxResult, error)
	QuoteExactInputSingle(ctx context.Context, p chain.SwapParams) (*big.Int, error)
	QuoteExactOutputSingle(ctx context.Context, p chain.SwapParams) (*big.Int, error)
	ExactInputSingle(ctx context.Context, p chain.SwapParams) (*chain.TxResult, error)
	ExactOutputSingle(ctx context.Context, p chain.SwapParams) (*chain.TxResult, error)
	Mint(ctx context.Context, p chain.MintParams) (*chain.TxResult, error)
}

// CloseResult describes a fully withdrawn position.
type CloseResult struct {
	TokenID     string
	CloseTxHash string
	Token0      chain.TokenMeta
	Token1      chain.TokenMeta

	Principal0 *big.Int
	Principal1 *big.Int
	Collected0 *big.Int
	Collected1 *big.Int
	Fees0      *big.Int
	Fees1      *big.Int

	Price0In1         decimal.Decimal
	ClosedNetValueIn1 decimal.Decimal
	ClosedFeesIn1     decimal.Decimal
	GasCostNative     decimal.Decimal
	GasCostIn1        decimal.Decimal
}

// MintResult describes a newly minted (or described) position.
type MintResult struct {
	TokenID     string
	PoolAddress common.Address
	Token0      chain.TokenMeta
	Token1      chain.TokenMeta
	Fee         uint32
	TickLower   int
	TickUpper   int
	Liquidity   *big.Int
	Amount0     *big.Int
	Amount1     *big.Int

	Price0In1     decimal.Decimal
	NetValueIn1   decimal.Decimal
	GasCostNative decimal.Decimal
	GasCostIn1    decimal.Decimal
	SwapFeeIn1    decimal.Decimal
	MintTxHash    string
}

// RebalanceResult pairs the close and the mint. Close is set even when the
// mint step failed.
type RebalanceResult struct {
	Close *CloseResult
	Mint  *MintResult
}

type Executor struct {
	chain    Chain
	deadline time.Duration
	now      func() time.Time
}

// New creates an executor. deadline is added to the current time for every
// transaction's deadline field.
func New(c Chain, deadline time.Duration) *Executor {
	if deadline <= 0 {
		deadline = 5 * time.Minute
	}
	return &Executor{chain: c, deadline: deadline, now: time.Now}
}

func (e *Executor) deadlineUnix() int64 {
	return e.now().Add(e.deadline).Unix()
}

func parseTokenID(tokenID string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(strings.TrimSpace(tokenID), 10)
	if !ok || id.Sign() <= 0 {
		return nil, fmt.Errorf("invalid token id %q", tokenID)
	}
	return id, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// CLOSE
// ═══════════════════════════════════════════════════════════════════════════════

// Close removes all liquidity from tokenID and collects principal plus fees.
func (e *Executor) Close(ctx context.Context, tokenID string) (*CloseResult, error) {
	id, err := parseTokenID(tokenID)
	if err != nil {
		return nil, err
	}

	pool, err := e.chain.LoadPool(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}
	pos, err := e.chain.Position(ctx, id)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("token_id", tokenID).
		Str("liquidity", pos.Liquidity.String()).
		Msg("🔻 Closing position")

	var gas []*chain.TxResult
	principal0, principal1 := new(big.Int), new(big.Int)

	if pos.Liquidity != nil && pos.Liquidity.Sign() > 0 {
		dec, err := e.chain.DecreaseLiquidity(ctx, id, pos.Liquidity, e.deadlineUnix())
		if err != nil {
			return nil, fmt.Errorf("decrease liquidity: %w", err)
		}
		gas = append(gas, dec)
		principal0, principal1 = orZero(dec.Amounts.Amount0), orZero(dec.Amounts.Amount1)
	} else {
		log.Info().Str("token_id", tokenID).Msg("Liquidity already zero, skipping decrease")
	}

	col, err := e.chain.Collect(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}
	gas = append(gas, col)

	price := pool.Price0In1()
	res := &CloseResult{
		TokenID:     tokenID,
		CloseTxHash: col.Hash.Hex(),
		Token0:      pool.Token0,
		Token1:      pool.Token1,
		Principal0:  principal0,
		Principal1:  principal1,
		Collected0:  orZero(col.Amounts.Amount0),
		Collected1:  orZero(col.Amounts.Amount1),
		Price0In1:   price,
	}
	res.Fees0 = RealizedFees(res.Collected0, principal0)
	res.Fees1 = RealizedFees(res.Collected1, principal1)
	res.ClosedNetValueIn1 = amm.ValueIn1(res.Collected0, res.Collected1, pool.Token0.Decimals, pool.Token1.Decimals, price)
	res.ClosedFeesIn1 = amm.ValueIn1(res.Fees0, res.Fees1, pool.Token0.Decimals, pool.Token1.Decimals, price)
	res.GasCostNative, res.GasCostIn1 = gasCost(gas, price)

	log.Info().
		Str("token_id", tokenID).
		Str("net", res.ClosedNetValueIn1.StringFixed(6)).
		Str("fees", res.ClosedFeesIn1.StringFixed(6)).
		Str("tx", res.CloseTxHash).
		Msg("✅ Position closed")
	return res, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// MINT
// ═══════════════════════════════════════════════════════════════════════════════

// Mint swaps the wallet toward a 50/50 value split and opens a position of
// ±TickRange around the current tick.
func (e *Executor) Mint(ctx context.Context, rt config.Runtime) (*MintResult, error) {
	pool, err := e.chain.LoadPool(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}
	bal0, bal1, err := e.balances(ctx, pool)
	if err != nil {
		return nil, err
	}

	plan, err := PlanRebalanceSwap(bal0, bal1, pool.Token0.Decimals, pool.Token1.Decimals, pool.Price0In1(), rt.TargetTotalToken1)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("pair", pool.Token0.Symbol+"/"+pool.Token1.Symbol).
		Str("price", pool.Price0In1().StringFixed(6)).
		Str("total", plan.TotalValue.StringFixed(6)).
		Str("target_total", plan.TargetTotal.StringFixed(6)).
		Str("swap", plan.Direction.String()).
		Msg("⚖️ Balancing to 50/50 value")

	var gas []*chain.TxResult
	swapFee := decimal.Zero
	if plan.Direction != SwapNone {
		txs, err := e.swap(ctx, pool, plan, bal1, rt.SlippageBps)
		gas = append(gas, txs...)
		if err != nil {
			return nil, err
		}
		swapFee = SwapFeeIn1(plan.Amount0, pool.Token0.Decimals, pool.Price0In1(), pool.Fee)
	}

	pool, err = e.chain.LoadPool(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh pool: %w", err)
	}
	bal0, bal1, err = e.balances(ctx, pool)
	if err != nil {
		return nil, err
	}

	lower, upper := MintTicks(pool.Tick, rt.TickRange, pool.TickSpacing)
	want0, want1 := MintAmounts(bal0, bal1, pool.Token0.Decimals, pool.Token1.Decimals, pool.Price0In1(), rt.TargetTotalToken1)

	sqrtA, err := amm.GetSqrtRatioAtTick(lower)
	if err != nil {
		return nil, err
	}
	sqrtB, err := amm.GetSqrtRatioAtTick(upper)
	if err != nil {
		return nil, err
	}
	liquidity := amm.MaxLiquidityForAmounts(pool.SqrtPriceX96, sqrtA, sqrtB, want0, want1)
	amt0, amt1 := amm.PositionAmounts(pool.Tick, pool.SqrtPriceX96, lower, upper, liquidity, true)
	amt0, amt1 = minBig(amt0, want0), minBig(amt1, want1)
	if amt0.Sign() == 0 || amt1.Sign() == 0 {
		return nil, fmt.Errorf("mint amounts are zero (%s, %s): check balances and tick range", amt0, amt1)
	}

	log.Info().
		Int("tick_lower", lower).
		Int("tick_upper", upper).
		Str("amount0", amm.ToDecimal(amt0, pool.Token0.Decimals).String()).
		Str("amount1", amm.ToDecimal(amt1, pool.Token1.Decimals).String()).
		Msg("🌱 Minting position")

	nfpm := e.chain.PositionManager()
	for _, a := range []struct {
		token  common.Address
		amount *big.Int
	}{{pool.Token0.Address, amt0}, {pool.Token1.Address, amt1}} {
		tx, err := e.chain.EnsureAllowance(ctx, a.token, nfpm, a.amount)
		if err != nil {
			return nil, fmt.Errorf("approve %s: %w", a.token.Hex(), err)
		}
		if tx != nil {
			gas = append(gas, tx)
		}
	}

	minted, err := e.chain.Mint(ctx, chain.MintParams{
		Token0:         pool.Token0.Address,
		Token1:         pool.Token1.Address,
		Fee:            pool.Fee,
		TickLower:      lower,
		TickUpper:      upper,
		Amount0Desired: amt0,
		Amount1Desired: amt1,
		Amount0Min:     WithSlippageDown(amt0, rt.SlippageBps),
		Amount1Min:     WithSlippageDown(amt1, rt.SlippageBps),
		Deadline:       e.deadlineUnix(),
	})
	if err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}
	gas = append(gas, minted)

	res, err := e.describe(ctx, pool, minted.Amounts.TokenID)
	if err != nil {
		return nil, err
	}
	res.Amount0 = orZero(minted.Amounts.Amount0)
	res.Amount1 = orZero(minted.Amounts.Amount1)
	res.MintTxHash = minted.Hash.Hex()
	res.SwapFeeIn1 = swapFee
	res.GasCostNative, res.GasCostIn1 = gasCost(gas, res.Price0In1)

	log.Info().
		Str("token_id", res.TokenID).
		Str("net", res.NetValueIn1.StringFixed(6)).
		Str("tx", res.MintTxHash).
		Msg("✅ Position minted")
	return res, nil
}

func (e *Executor) balances(ctx context.Context, pool *chain.PoolContext) (*big.Int, *big.Int, error) {
	var bal0, bal1 *big.Int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bal0, err = e.chain.BalanceOf(gctx, pool.Token0.Address)
		return err
	})
	g.Go(func() error {
		var err error
		bal1, err = e.chain.BalanceOf(gctx, pool.Token1.Address)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("balances: %w", err)
	}
	return bal0, bal1, nil
}

// swap executes the planned swap. Allowance is granted before quoting since
// the quote is a static call of the same router method.
func (e *Executor) swap(ctx context.Context, pool *chain.PoolContext, plan SwapPlan, balance1 *big.Int, slippageBps int) ([]*chain.TxResult, error) {
	var txs []*chain.TxResult
	router := e.chain.Router()
	deadline := e.deadlineUnix()

	approve := func(token common.Address, amount *big.Int) error {
		tx, err := e.chain.EnsureAllowance(ctx, token, router, amount)
		if err != nil {
			return fmt.Errorf("approve router: %w", err)
		}
		if tx != nil {
			txs = append(txs, tx)
		}
		return nil
	}

	switch plan.Direction {
	case SwapBuy0:
		if err := approve(pool.Token1.Address, balance1); err != nil {
			return txs, err
		}
		params := chain.SwapParams{
			TokenIn:   pool.Token1.Address,
			TokenOut:  pool.Token0.Address,
			Fee:       pool.Fee,
			AmountOut: plan.Amount0,
			Deadline:  deadline,
		}
		quotedIn, err := e.chain.QuoteExactOutputSingle(ctx, params)
		if err != nil {
			return txs, err
		}
		params.AmountInMaximum = WithSlippageUp(quotedIn, slippageBps)
		if err := approve(pool.Token1.Address, params.AmountInMaximum); err != nil {
			return txs, err
		}

		log.Info().
			Str("buy", amm.ToDecimal(plan.Amount0, pool.Token0.Decimals).String()+" "+pool.Token0.Symbol).
			Str("max_in", amm.ToDecimal(params.AmountInMaximum, pool.Token1.Decimals).String()+" "+pool.Token1.Symbol).
			Msg("🔄 Swap exact output")
		tx, err := e.chain.ExactOutputSingle(ctx, params)
		if err != nil {
			return txs, fmt.Errorf("swap exact output: %w", err)
		}
		txs = append(txs, tx)

	case SwapSell0:
		if err := approve(pool.Token0.Address, plan.Amount0); err != nil {
			return txs, err
		}
		params := chain.SwapParams{
			TokenIn:  pool.Token0.Address,
			TokenOut: pool.Token1.Address,
			Fee:      pool.Fee,
			AmountIn: plan.Amount0,
			Deadline: deadline,
		}
		quotedOut, err := e.chain.QuoteExactInputSingle(ctx, params)
		if err != nil {
			return txs, err
		}
		params.AmountOutMinimum = WithSlippageDown(quotedOut, slippageBps)

		log.Info().
			Str("sell", amm.ToDecimal(plan.Amount0, pool.Token0.Decimals).String()+" "+pool.Token0.Symbol).
			Str("min_out", amm.ToDecimal(params.AmountOutMinimum, pool.Token1.Decimals).String()+" "+pool.Token1.Symbol).
			Msg("🔄 Swap exact input")
		tx, err := e.chain.ExactInputSingle(ctx, params)
		if err != nil {
			return txs, fmt.Errorf("swap exact input: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// REBALANCE / DESCRIBE
// ═══════════════════════════════════════════════════════════════════════════════

// Rebalance closes tokenID and mints a fresh position with rt.
func (e *Executor) Rebalance(ctx context.Context, tokenID string, rt config.Runtime) (*RebalanceResult, error) {
	closed, err := e.Close(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	res := &RebalanceResult{Close: closed}
	minted, err := e.Mint(ctx, rt)
	if err != nil {
		return res, fmt.Errorf("closed %s but mint failed: %w", tokenID, err)
	}
	res.Mint = minted
	return res, nil
}

// Describe values an existing position at the current pool price.
func (e *Executor) Describe(ctx context.Context, tokenID string) (*MintResult, error) {
	id, err := parseTokenID(tokenID)
	if err != nil {
		return nil, err
	}
	pool, err := e.chain.LoadPool(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}
	return e.describe(ctx, pool, id)
}

func (e *Executor) describe(ctx context.Context, pool *chain.PoolContext, id *big.Int) (*MintResult, error) {
	if id == nil {
		return nil, fmt.Errorf("missing token id")
	}
	pos, err := e.chain.Position(ctx, id)
	if err != nil {
		return nil, err
	}
	liquidity := orZero(pos.Liquidity)
	amt0, amt1 := amm.PositionAmounts(pool.Tick, pool.SqrtPriceX96, pos.TickLower, pos.TickUpper, liquidity, false)
	price := pool.Price0In1()
	return &MintResult{
		TokenID:     id.String(),
		PoolAddress: pool.Address,
		Token0:      pool.Token0,
		Token1:      pool.Token1,
		Fee:         pool.Fee,
		TickLower:   pos.TickLower,
		TickUpper:   pos.TickUpper,
		Liquidity:   liquidity,
		Amount0:     amt0,
		Amount1:     amt1,
		Price0In1:   price,
		NetValueIn1: amm.ValueIn1(amt0, amt1, pool.Token0.Decimals, pool.Token1.Decimals, price),
	}, nil
}

// gasCost sums receipts and values the native total in token1. token0 is
// assumed to be the wrapped native asset.
func gasCost(txs []*chain.TxResult, price0In1 decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	total := new(big.Int)
	for _, tx := range txs {
		total.Add(total, tx.GasCost())
	}
	native := WeiToEther(total)
	return native, native.Mul(price0In1)
}
