package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"
)

type exactInputSingleArgs struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

type exactOutputSingleArgs struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountOut         *big.Int
	AmountInMaximum   *big.Int
	SqrtPriceLimitX96 *big.Int
}

func (c *Client) inputArgs(p SwapParams, minOut *big.Int) exactInputSingleArgs {
	return exactInputSingleArgs{
		TokenIn:           p.TokenIn,
		TokenOut:          p.TokenOut,
		Fee:               new(big.Int).SetUint64(uint64(p.Fee)),
		Recipient:         c.owner,
		Deadline:          deadlineBig(p.Deadline),
		AmountIn:          p.AmountIn,
		AmountOutMinimum:  minOut,
		SqrtPriceLimitX96: new(big.Int),
	}
}

func (c *Client) outputArgs(p SwapParams, maxIn *big.Int) exactOutputSingleArgs {
	return exactOutputSingleArgs{
		TokenIn:           p.TokenIn,
		TokenOut:          p.TokenOut,
		Fee:               new(big.Int).SetUint64(uint64(p.Fee)),
		Recipient:         c.owner,
		Deadline:          deadlineBig(p.Deadline),
		AmountOut:         p.AmountOut,
		AmountInMaximum:   maxIn,
		SqrtPriceLimitX96: new(big.Int),
	}
}

// QuoteExactInputSingle simulates an exact-input swap and returns the output amount.
func (c *Client) QuoteExactInputSingle(ctx context.Context, p SwapParams) (*big.Int, error) {
	out, err := c.call(ctx, swapRouterABI, c.router, c.owner, "exactInputSingle", c.inputArgs(p, new(big.Int)))
	if err != nil {
		return nil, fmt.Errorf("quote exact input: %w", err)
	}
	return toBig(out[0]), nil
}

// QuoteExactOutputSingle simulates an exact-output swap and returns the input amount.
func (c *Client) QuoteExactOutputSingle(ctx context.Context, p SwapParams) (*big.Int, error) {
	out, err := c.call(ctx, swapRouterABI, c.router, c.owner, "exactOutputSingle", c.outputArgs(p, math.MaxBig256))
	if err != nil {
		return nil, fmt.Errorf("quote exact output: %w", err)
	}
	return toBig(out[0]), nil
}

// ExactInputSingle swaps AmountIn of TokenIn for at least AmountOutMinimum.
func (c *Client) ExactInputSingle(ctx context.Context, p SwapParams) (*TxResult, error) {
	return c.transact(ctx, c.routerContract, "exactInputSingle", c.inputArgs(p, p.AmountOutMinimum))
}

// ExactOutputSingle buys AmountOut of TokenOut spending at most AmountInMaximum.
func (c *Client) ExactOutputSingle(ctx context.Context, p SwapParams) (*TxResult, error) {
	return c.transact(ctx, c.routerContract, "exactOutputSingle", c.outputArgs(p, p.AmountInMaximum))
}

var weiPerGwei = decimal.New(1, 9)

// GasPriceGwei returns the node's suggested gas price in gwei.
func (c *Client) GasPriceGwei(ctx context.Context) (decimal.Decimal, error) {
	price, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("gas price: %w", err)
	}
	return decimal.NewFromBigInt(price, 0).Div(weiPerGwei), nil
}
