package execution

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/lpbot/internal/amm"
	"github.com/web3guy0/lpbot/internal/chain"
	"github.com/web3guy0/lpbot/internal/config"
)

var (
	weth   = common.HexToAddress("0x000000000000000000000000000000000000000a")
	usdc   = common.HexToAddress("0x000000000000000000000000000000000000000b")
	nfpm   = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	router = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	oneE18 = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

func units(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), oneE18) }

type approval struct {
	token, spender common.Address
	amount         *big.Int
}

// fakeChain prices token0 at exactly 1 token1 and fills swaps 1:1.
type fakeChain struct {
	mu        sync.Mutex
	balances  map[common.Address]*big.Int
	positions map[string]*chain.PositionInfo

	decreased  bool
	collected  chain.EventAmounts
	approvals  []approval
	swapsIn    []chain.SwapParams
	swapsOut   []chain.SwapParams
	minted     *chain.MintParams
	mintErr    error
	nextHash   int64
	gasPerTx   uint64
	gasPriceWe *big.Int
}

func newFakeChain(bal0, bal1 *big.Int) *fakeChain {
	return &fakeChain{
		balances:   map[common.Address]*big.Int{weth: bal0, usdc: bal1},
		positions:  map[string]*chain.PositionInfo{},
		gasPerTx:   100_000,
		gasPriceWe: big.NewInt(1_000_000_000),
	}
}

func (f *fakeChain) tx(amounts chain.EventAmounts) *chain.TxResult {
	f.nextHash++
	return &chain.TxResult{
		Hash:              common.BigToHash(big.NewInt(f.nextHash)),
		GasUsed:           f.gasPerTx,
		EffectiveGasPrice: f.gasPriceWe,
		Amounts:           amounts,
	}
}

func (f *fakeChain) Owner() common.Address           { return common.HexToAddress("0x01") }
func (f *fakeChain) PositionManager() common.Address { return nfpm }
func (f *fakeChain) Router() common.Address          { return router }

func (f *fakeChain) LoadPool(context.Context) (*chain.PoolContext, error) {
	return &chain.PoolContext{
		Address:      common.HexToAddress("0xf0"),
		Token0:       chain.TokenMeta{Address: weth, Symbol: "WETH", Decimals: 18},
		Token1:       chain.TokenMeta{Address: usdc, Symbol: "USDC", Decimals: 18},
		Fee:          3000,
		TickSpacing:  60,
		SqrtPriceX96: amm.MustSqrtRatioAtTick(0),
		Tick:         0,
		Liquidity:    units(1000),
	}, nil
}

func (f *fakeChain) Position(_ context.Context, id *big.Int) (*chain.PositionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.positions[id.String()]
	if !ok {
		return nil, errors.New("invalid token id")
	}
	return p, nil
}

func (f *fakeChain) DecreaseLiquidity(_ context.Context, id, liquidity *big.Int, _ int64) (*chain.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decreased = true
	return f.tx(chain.EventAmounts{TokenID: id, Amount0: units(1), Amount1: units(1)}), nil
}

func (f *fakeChain) Collect(_ context.Context, id *big.Int) (*chain.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	amounts := f.collected
	amounts.TokenID = id
	return f.tx(amounts), nil
}

func (f *fakeChain) BalanceOf(_ context.Context, token common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.balances[token]), nil
}

func (f *fakeChain) EnsureAllowance(_ context.Context, token, spender common.Address, amount *big.Int) (*chain.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approvals = append(f.approvals, approval{token, spender, amount})
	return nil, nil
}

func (f *fakeChain) QuoteExactInputSingle(_ context.Context, p chain.SwapParams) (*big.Int, error) {
	return new(big.Int).Set(p.AmountIn), nil
}

func (f *fakeChain) QuoteExactOutputSingle(_ context.Context, p chain.SwapParams) (*big.Int, error) {
	return new(big.Int).Set(p.AmountOut), nil
}

func (f *fakeChain) ExactInputSingle(_ context.Context, p chain.SwapParams) (*chain.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.swapsIn = append(f.swapsIn, p)
	f.balances[p.TokenIn] = new(big.Int).Sub(f.balances[p.TokenIn], p.AmountIn)
	f.balances[p.TokenOut] = new(big.Int).Add(f.balances[p.TokenOut], p.AmountIn)
	return f.tx(chain.EventAmounts{}), nil
}

func (f *fakeChain) ExactOutputSingle(_ context.Context, p chain.SwapParams) (*chain.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.swapsOut = append(f.swapsOut, p)
	f.balances[p.TokenIn] = new(big.Int).Sub(f.balances[p.TokenIn], p.AmountOut)
	f.balances[p.TokenOut] = new(big.Int).Add(f.balances[p.TokenOut], p.AmountOut)
	return f.tx(chain.EventAmounts{}), nil
}

func (f *fakeChain) Mint(_ context.Context, p chain.MintParams) (*chain.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mintErr != nil {
		return nil, f.mintErr
	}
	f.minted = &p
	liquidity := amm.MaxLiquidityForAmounts(amm.MustSqrtRatioAtTick(0),
		amm.MustSqrtRatioAtTick(p.TickLower), amm.MustSqrtRatioAtTick(p.TickUpper),
		p.Amount0Desired, p.Amount1Desired)
	id := big.NewInt(99)
	f.positions[id.String()] = &chain.PositionInfo{
		TokenID:   id,
		Token0:    p.Token0,
		Token1:    p.Token1,
		Fee:       p.Fee,
		TickLower: p.TickLower,
		TickUpper: p.TickUpper,
		Liquidity: liquidity,
	}
	return f.tx(chain.EventAmounts{TokenID: id, Amount0: p.Amount0Desired, Amount1: p.Amount1Desired}), nil
}

func runtimeCfg() config.Runtime {
	return config.Runtime{TickRange: 50, RebalanceDelaySec: 300, SlippageBps: 50}
}

func newTestExecutor(f *fakeChain) *Executor {
	e := New(f, 5*time.Minute)
	e.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return e
}

func TestCloseSplitsPrincipalAndFees(t *testing.T) {
	f := newFakeChain(new(big.Int), new(big.Int))
	f.positions["7"] = &chain.PositionInfo{TokenID: big.NewInt(7), Liquidity: big.NewInt(1000)}
	f.collected = chain.EventAmounts{
		Amount0: new(big.Int).Add(units(1), big.NewInt(1e17)),
		Amount1: units(1),
	}

	res, err := newTestExecutor(f).Close(context.Background(), "7")
	require.NoError(t, err)

	assert.True(t, f.decreased)
	assert.Equal(t, big.NewInt(1e17), res.Fees0)
	assert.Equal(t, 0, res.Fees1.Sign())
	assert.True(t, res.ClosedNetValueIn1.Equal(decimal.RequireFromString("2.1")), res.ClosedNetValueIn1.String())
	assert.True(t, res.ClosedFeesIn1.Equal(decimal.RequireFromString("0.1")))
	// two receipts × 100k gas × 1 gwei
	assert.True(t, res.GasCostNative.Equal(decimal.RequireFromString("0.0002")), res.GasCostNative.String())
	assert.True(t, res.GasCostIn1.Equal(decimal.RequireFromString("0.0002")))
	assert.NotEmpty(t, res.CloseTxHash)
}

func TestCloseWithoutLiquiditySkipsDecrease(t *testing.T) {
	f := newFakeChain(new(big.Int), new(big.Int))
	f.positions["8"] = &chain.PositionInfo{TokenID: big.NewInt(8), Liquidity: new(big.Int)}
	f.collected = chain.EventAmounts{Amount0: big.NewInt(5), Amount1: big.NewInt(6)}

	res, err := newTestExecutor(f).Close(context.Background(), "8")
	require.NoError(t, err)
	assert.False(t, f.decreased)
	assert.Equal(t, big.NewInt(5), res.Fees0)
	assert.Equal(t, big.NewInt(6), res.Fees1)
}

func TestCloseRejectsBadTokenID(t *testing.T) {
	_, err := newTestExecutor(newFakeChain(new(big.Int), new(big.Int))).Close(context.Background(), "x")
	assert.Error(t, err)
}

func TestMintSellsExcessToken0(t *testing.T) {
	f := newFakeChain(units(3), units(1))

	res, err := newTestExecutor(f).Mint(context.Background(), runtimeCfg())
	require.NoError(t, err)

	require.Len(t, f.swapsIn, 1)
	assert.Empty(t, f.swapsOut)
	sell := f.swapsIn[0]
	assert.Equal(t, weth, sell.TokenIn)
	assert.Equal(t, units(1), sell.AmountIn)
	// quote × (1 - 0.5%)
	assert.Equal(t, new(big.Int).Div(new(big.Int).Mul(units(1), big.NewInt(9950)), big.NewInt(10_000)), sell.AmountOutMinimum)

	require.NotNil(t, f.minted)
	assert.Equal(t, -60, f.minted.TickLower)
	assert.Equal(t, 60, f.minted.TickUpper)
	assert.True(t, f.minted.Amount0Min.Cmp(f.minted.Amount0Desired) < 0)
	assert.True(t, f.minted.Amount0Desired.Cmp(units(2)) <= 0)

	assert.Equal(t, "99", res.TokenID)
	assert.NotEmpty(t, res.MintTxHash)
	assert.True(t, res.SwapFeeIn1.Equal(decimal.RequireFromString("0.003")), res.SwapFeeIn1.String())
	assert.InDelta(t, 4.0, res.NetValueIn1.InexactFloat64(), 0.01)
	// swap + mint receipts
	assert.True(t, res.GasCostNative.Equal(decimal.RequireFromString("0.0002")), res.GasCostNative.String())

	var approvedRouter, approvedNFPM int
	for _, a := range f.approvals {
		switch a.spender {
		case router:
			approvedRouter++
		case nfpm:
			approvedNFPM++
		}
	}
	assert.Equal(t, 1, approvedRouter)
	assert.Equal(t, 2, approvedNFPM)
}

func TestMintBuysMissingToken0WithExactOutput(t *testing.T) {
	f := newFakeChain(new(big.Int), units(4))

	_, err := newTestExecutor(f).Mint(context.Background(), runtimeCfg())
	require.NoError(t, err)

	require.Len(t, f.swapsOut, 1)
	buy := f.swapsOut[0]
	assert.Equal(t, usdc, buy.TokenIn)
	assert.Equal(t, weth, buy.TokenOut)
	assert.Equal(t, units(2), buy.AmountOut)
	assert.Equal(t, new(big.Int).Div(new(big.Int).Mul(units(2), big.NewInt(10_050)), big.NewInt(10_000)), buy.AmountInMaximum)

	// router allowance is ensured before the quote
	require.NotEmpty(t, f.approvals)
	assert.Equal(t, usdc, f.approvals[0].token)
	assert.Equal(t, router, f.approvals[0].spender)
}

func TestMintFailsBelowTarget(t *testing.T) {
	f := newFakeChain(units(1), units(1))
	rt := runtimeCfg()
	rt.TargetTotalToken1 = decimal.NewFromInt(10)

	_, err := newTestExecutor(f).Mint(context.Background(), rt)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Empty(t, f.swapsIn)
	assert.Nil(t, f.minted)
}

func TestMintFailsWithEmptyWallet(t *testing.T) {
	f := newFakeChain(new(big.Int), new(big.Int))
	_, err := newTestExecutor(f).Mint(context.Background(), runtimeCfg())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mint amounts are zero")
	assert.Nil(t, f.minted)
}

func TestRebalanceReturnsCloseWhenMintFails(t *testing.T) {
	f := newFakeChain(units(1), units(1))
	f.positions["7"] = &chain.PositionInfo{TokenID: big.NewInt(7), Liquidity: big.NewInt(1000)}
	f.collected = chain.EventAmounts{Amount0: units(1), Amount1: units(1)}
	f.mintErr = errors.New("execution reverted")

	res, err := newTestExecutor(f).Rebalance(context.Background(), "7", runtimeCfg())
	require.Error(t, err)
	require.NotNil(t, res)
	assert.NotNil(t, res.Close)
	assert.Nil(t, res.Mint)
}

func TestRebalanceClosesThenMints(t *testing.T) {
	f := newFakeChain(units(1), units(1))
	f.positions["7"] = &chain.PositionInfo{TokenID: big.NewInt(7), Liquidity: big.NewInt(1000)}
	f.collected = chain.EventAmounts{Amount0: units(1), Amount1: units(1)}

	res, err := newTestExecutor(f).Rebalance(context.Background(), "7", runtimeCfg())
	require.NoError(t, err)
	assert.Equal(t, "7", res.Close.TokenID)
	assert.Equal(t, "99", res.Mint.TokenID)
}

func TestDescribeValuesExistingPosition(t *testing.T) {
	f := newFakeChain(new(big.Int), new(big.Int))
	liq := amm.MaxLiquidityForAmounts(amm.MustSqrtRatioAtTick(0), amm.MustSqrtRatioAtTick(-60), amm.MustSqrtRatioAtTick(60), units(1), units(1))
	f.positions["42"] = &chain.PositionInfo{TokenID: big.NewInt(42), TickLower: -60, TickUpper: 60, Liquidity: liq}

	res, err := newTestExecutor(f).Describe(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "42", res.TokenID)
	assert.Equal(t, uint32(3000), res.Fee)
	assert.InDelta(t, 2.0, res.NetValueIn1.InexactFloat64(), 0.001)
	assert.Empty(t, res.MintTxHash)
}
