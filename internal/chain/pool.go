package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

type poolStatic struct {
	token0      TokenMeta
	token1      TokenMeta
	fee         uint32
	tickSpacing int
}

// LoadPool reads slot0 and liquidity, plus the pool's immutables on first use.
func (c *Client) LoadPool(ctx context.Context) (*PoolContext, error) {
	static, err := c.poolImmutables(ctx)
	if err != nil {
		return nil, err
	}

	var (
		slot0     []interface{}
		liquidity []interface{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		slot0, err = c.call(gctx, poolABI, c.pool, common.Address{}, "slot0")
		return err
	})
	g.Go(func() error {
		var err error
		liquidity, err = c.call(gctx, poolABI, c.pool, common.Address{}, "liquidity")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}

	return &PoolContext{
		Address:      c.pool,
		Token0:       static.token0,
		Token1:       static.token1,
		Fee:          static.fee,
		TickSpacing:  static.tickSpacing,
		SqrtPriceX96: toBig(slot0[0]),
		Tick:         int(toBig(slot0[1]).Int64()),
		Liquidity:    toBig(liquidity[0]),
	}, nil
}

func (c *Client) poolImmutables(ctx context.Context) (*poolStatic, error) {
	c.metaMu.Lock()
	cached := c.static
	c.metaMu.Unlock()
	if cached != nil {
		return cached, nil
	}

	var (
		token0, token1 common.Address
		fee            *big.Int
		spacing        *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := c.call(gctx, poolABI, c.pool, common.Address{}, "token0")
		if err == nil {
			token0 = out[0].(common.Address)
		}
		return err
	})
	g.Go(func() error {
		out, err := c.call(gctx, poolABI, c.pool, common.Address{}, "token1")
		if err == nil {
			token1 = out[0].(common.Address)
		}
		return err
	})
	g.Go(func() error {
		out, err := c.call(gctx, poolABI, c.pool, common.Address{}, "fee")
		if err == nil {
			fee = toBig(out[0])
		}
		return err
	})
	g.Go(func() error {
		out, err := c.call(gctx, poolABI, c.pool, common.Address{}, "tickSpacing")
		if err == nil {
			spacing = toBig(out[0])
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pool immutables: %w", err)
	}

	meta0, err := c.TokenMeta(ctx, token0)
	if err != nil {
		return nil, err
	}
	meta1, err := c.TokenMeta(ctx, token1)
	if err != nil {
		return nil, err
	}

	static := &poolStatic{
		token0:      meta0,
		token1:      meta1,
		fee:         uint32(fee.Uint64()),
		tickSpacing: int(spacing.Int64()),
	}
	c.metaMu.Lock()
	c.static = static
	c.metaMu.Unlock()
	return static, nil
}
