package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// SubscribePositionEvents streams pool Swap logs and position manager
// liquidity/collect logs for tokenID over the WebSocket endpoint.
func (c *Client) SubscribePositionEvents(ctx context.Context, tokenID *big.Int, ch chan<- types.Log) (ethereum.Subscription, error) {
	ws, err := c.wsClient(ctx)
	if err != nil {
		return nil, err
	}

	swapQuery, positionQuery := positionEventQueries(c.pool, c.nfpm, tokenID)
	swaps, err := ws.SubscribeFilterLogs(ctx, swapQuery, ch)
	if err != nil {
		c.resetWS()
		return nil, fmt.Errorf("subscribe swap logs: %w", err)
	}
	positions, err := ws.SubscribeFilterLogs(ctx, positionQuery, ch)
	if err != nil {
		swaps.Unsubscribe()
		c.resetWS()
		return nil, fmt.Errorf("subscribe position logs: %w", err)
	}

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer swaps.Unsubscribe()
		defer positions.Unsubscribe()
		select {
		case err := <-swaps.Err():
			return err
		case err := <-positions.Err():
			return err
		case <-quit:
			return nil
		}
	}), nil
}

// positionEventQueries builds the pool Swap filter and the position manager
// filter. The latter is narrowed to tokenID through its first indexed topic.
func positionEventQueries(pool, nfpm common.Address, tokenID *big.Int) (ethereum.FilterQuery, ethereum.FilterQuery) {
	swaps := ethereum.FilterQuery{
		Addresses: []common.Address{pool},
		Topics:    [][]common.Hash{{swapEventID}},
	}
	positions := ethereum.FilterQuery{
		Addresses: []common.Address{nfpm},
		Topics: [][]common.Hash{
			{increaseLiquidityEventID, decreaseLiquidityEventID, collectEventID},
			{common.BigToHash(tokenID)},
		},
	}
	return swaps, positions
}

// MatchesToken reports whether a position manager log belongs to tokenID.
// Swap logs always match.
func MatchesToken(lg types.Log, tokenID *big.Int) bool {
	if ClassifyLog(lg) == EventSwap {
		return true
	}
	if len(lg.Topics) < 2 {
		return false
	}
	return new(big.Int).SetBytes(lg.Topics[1].Bytes()).Cmp(tokenID) == 0
}

// ResetWebsocket drops the cached WebSocket client so the next subscription redials.
func (c *Client) ResetWebsocket() {
	c.resetWS()
}
