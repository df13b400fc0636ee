package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// TokenMeta returns symbol and decimals, cached per address.
func (c *Client) TokenMeta(ctx context.Context, token common.Address) (TokenMeta, error) {
	c.metaMu.Lock()
	meta, ok := c.tokens[token]
	c.metaMu.Unlock()
	if ok {
		return meta, nil
	}

	meta = TokenMeta{Address: token}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := c.call(gctx, erc20ABI, token, common.Address{}, "decimals")
		if err != nil {
			return err
		}
		meta.Decimals = out[0].(uint8)
		return nil
	})
	g.Go(func() error {
		out, err := c.call(gctx, erc20ABI, token, common.Address{}, "symbol")
		if err != nil {
			// Some tokens return bytes32 symbols; fall back to the address.
			log.Debug().Err(err).Str("token", token.Hex()).Msg("symbol lookup failed")
			meta.Symbol = token.Hex()[:8]
			return nil
		}
		meta.Symbol = out[0].(string)
		return nil
	})
	if err := g.Wait(); err != nil {
		return TokenMeta{}, fmt.Errorf("token meta %s: %w", token.Hex(), err)
	}

	c.metaMu.Lock()
	c.tokens[token] = meta
	c.metaMu.Unlock()
	return meta, nil
}

// BalanceOf returns the signer's balance of token.
func (c *Client) BalanceOf(ctx context.Context, token common.Address) (*big.Int, error) {
	out, err := c.call(ctx, erc20ABI, token, common.Address{}, "balanceOf", c.owner)
	if err != nil {
		return nil, err
	}
	return toBig(out[0]), nil
}

// NativeBalance returns the signer's native balance in wei.
func (c *Client) NativeBalance(ctx context.Context) (*big.Int, error) {
	return c.rpc.BalanceAt(ctx, c.owner, nil)
}

// EnsureAllowance approves spender for the max amount when the current
// allowance is below amount. Returns nil when no approval was needed.
func (c *Client) EnsureAllowance(ctx context.Context, token, spender common.Address, amount *big.Int) (*TxResult, error) {
	out, err := c.call(ctx, erc20ABI, token, common.Address{}, "allowance", c.owner, spender)
	if err != nil {
		return nil, err
	}
	if toBig(out[0]).Cmp(amount) >= 0 {
		return nil, nil
	}

	log.Info().Str("token", token.Hex()).Str("spender", spender.Hex()).Msg("🔓 Approving token")
	contract := bind.NewBoundContract(token, erc20ABI, c.rpc, c.rpc, c.rpc)
	return c.transact(ctx, contract, "approve", spender, math.MaxBig256)
}

// WalletBalances reads native and pool-token balances of the signer.
func (c *Client) WalletBalances(ctx context.Context) (*WalletBalances, error) {
	pool, err := c.LoadPool(ctx)
	if err != nil {
		return nil, err
	}

	res := &WalletBalances{
		Address:   c.owner,
		Token0:    pool.Token0,
		Token1:    pool.Token1,
		Price0In1: pool.Price0In1(),
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := c.NativeBalance(gctx)
		res.Native = v
		return err
	})
	g.Go(func() error {
		v, err := c.BalanceOf(gctx, pool.Token0.Address)
		res.Amount0 = v
		return err
	})
	g.Go(func() error {
		v, err := c.BalanceOf(gctx, pool.Token1.Address)
		res.Amount1 = v
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("wallet balances: %w", err)
	}
	return res, nil
}
