package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/lpbot/internal/amm"
)

// TokenMeta is the static description of an ERC20.
type TokenMeta struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// PoolContext is a consistent read of the pool's immutables and slot0.
type PoolContext struct {
	Address      common.Address
	Token0       TokenMeta
	Token1       TokenMeta
	Fee          uint32
	TickSpacing  int
	SqrtPriceX96 *big.Int
	Tick         int
	Liquidity    *big.Int
}

// Price0In1 is the price of one token0 in token1.
func (p *PoolContext) Price0In1() decimal.Decimal {
	return amm.PriceFromSqrtX96(p.SqrtPriceX96, p.Token0.Decimals, p.Token1.Decimals)
}

// PositionInfo mirrors the position manager's positions() view.
type PositionInfo struct {
	TokenID     *big.Int
	Token0      common.Address
	Token1      common.Address
	Fee         uint32
	TickLower   int
	TickUpper   int
	Liquidity   *big.Int
	TokensOwed0 *big.Int
	TokensOwed1 *big.Int
}

// EventAmounts are the token amounts reported by position manager events in a receipt.
type EventAmounts struct {
	TokenID *big.Int
	Amount0 *big.Int
	Amount1 *big.Int
}

// TxResult is a mined, successful transaction.
type TxResult struct {
	Hash              common.Hash
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	Amounts           EventAmounts
}

// GasCost is gasUsed × effectiveGasPrice in wei.
func (r *TxResult) GasCost() *big.Int {
	if r == nil || r.EffectiveGasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(r.GasUsed), r.EffectiveGasPrice)
}

func newTxResult(receipt *types.Receipt, nfpm common.Address) *TxResult {
	price := receipt.EffectiveGasPrice
	if price == nil {
		price = new(big.Int)
	}
	return &TxResult{
		Hash:              receipt.TxHash,
		GasUsed:           receipt.GasUsed,
		EffectiveGasPrice: price,
		Amounts:           ParseEventAmounts(nfpm, receipt.Logs),
	}
}

// SwapParams describes a single-pool swap through the router. For exact-input
// swaps AmountIn and AmountOutMinimum are used; for exact-output swaps AmountOut
// and AmountInMaximum.
type SwapParams struct {
	TokenIn          common.Address
	TokenOut         common.Address
	Fee              uint32
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
	AmountOut        *big.Int
	AmountInMaximum  *big.Int
	Deadline         int64
}

// MintParams describes a new position.
type MintParams struct {
	Token0         common.Address
	Token1         common.Address
	Fee            uint32
	TickLower      int
	TickUpper      int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Deadline       int64
}

// WalletBalances is the signer's native and pool-token holdings.
type WalletBalances struct {
	Address   common.Address
	Native    *big.Int
	Token0    TokenMeta
	Token1    TokenMeta
	Amount0   *big.Int
	Amount1   *big.Int
	Price0In1 decimal.Decimal
}
