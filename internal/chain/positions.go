package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Tuple arguments for the position manager. Field names follow the ABI
// component names so the encoder can match them.
type decreaseLiquidityArgs struct {
	TokenId    *big.Int
	Liquidity  *big.Int
	Amount0Min *big.Int
	Amount1Min *big.Int
	Deadline   *big.Int
}

type collectArgs struct {
	TokenId    *big.Int
	Recipient  common.Address
	Amount0Max *big.Int
	Amount1Max *big.Int
}

type mintArgs struct {
	Token0         common.Address
	Token1         common.Address
	Fee            *big.Int
	TickLower      *big.Int
	TickUpper      *big.Int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Recipient      common.Address
	Deadline       *big.Int
}

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Position reads positions(tokenId).
func (c *Client) Position(ctx context.Context, tokenID *big.Int) (*PositionInfo, error) {
	out, err := c.call(ctx, positionManagerABI, c.nfpm, common.Address{}, "positions", tokenID)
	if err != nil {
		return nil, fmt.Errorf("position %s: %w", tokenID, err)
	}
	return &PositionInfo{
		TokenID:     new(big.Int).Set(tokenID),
		Token0:      out[2].(common.Address),
		Token1:      out[3].(common.Address),
		Fee:         uint32(toBig(out[4]).Uint64()),
		TickLower:   int(toBig(out[5]).Int64()),
		TickUpper:   int(toBig(out[6]).Int64()),
		Liquidity:   toBig(out[7]),
		TokensOwed0: toBig(out[10]),
		TokensOwed1: toBig(out[11]),
	}, nil
}

// OwnerOf returns the NFT owner of tokenId.
func (c *Client) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	out, err := c.call(ctx, positionManagerABI, c.nfpm, common.Address{}, "ownerOf", tokenID)
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

// PendingFees simulates collect() from owner to read claimable amounts
// without sending a transaction.
func (c *Client) PendingFees(ctx context.Context, tokenID *big.Int, owner common.Address) (*big.Int, *big.Int, error) {
	args := collectArgs{
		TokenId:    tokenID,
		Recipient:  owner,
		Amount0Max: maxUint128,
		Amount1Max: maxUint128,
	}
	out, err := c.call(ctx, positionManagerABI, c.nfpm, owner, "collect", args)
	if err != nil {
		return nil, nil, err
	}
	return toBig(out[0]), toBig(out[1]), nil
}

// DecreaseLiquidity removes liquidity from tokenId with zero minimums.
func (c *Client) DecreaseLiquidity(ctx context.Context, tokenID, liquidity *big.Int, deadline int64) (*TxResult, error) {
	args := decreaseLiquidityArgs{
		TokenId:    tokenID,
		Liquidity:  liquidity,
		Amount0Min: new(big.Int),
		Amount1Min: new(big.Int),
		Deadline:   deadlineBig(deadline),
	}
	return c.transact(ctx, c.nfpmContract, "decreaseLiquidity", args)
}

// Collect sweeps everything owed on tokenId to the signer.
func (c *Client) Collect(ctx context.Context, tokenID *big.Int) (*TxResult, error) {
	args := collectArgs{
		TokenId:    tokenID,
		Recipient:  c.owner,
		Amount0Max: maxUint128,
		Amount1Max: maxUint128,
	}
	return c.transact(ctx, c.nfpmContract, "collect", args)
}

// Mint opens a new position owned by the signer.
func (c *Client) Mint(ctx context.Context, p MintParams) (*TxResult, error) {
	args := mintArgs{
		Token0:         p.Token0,
		Token1:         p.Token1,
		Fee:            new(big.Int).SetUint64(uint64(p.Fee)),
		TickLower:      big.NewInt(int64(p.TickLower)),
		TickUpper:      big.NewInt(int64(p.TickUpper)),
		Amount0Desired: p.Amount0Desired,
		Amount1Desired: p.Amount1Desired,
		Amount0Min:     p.Amount0Min,
		Amount1Min:     p.Amount1Min,
		Recipient:      c.owner,
		Deadline:       deadlineBig(p.Deadline),
	}
	res, err := c.transact(ctx, c.nfpmContract, "mint", args)
	if err != nil {
		return nil, err
	}
	if res.Amounts.TokenID == nil {
		return nil, fmt.Errorf("mint %s: IncreaseLiquidity event not found", res.Hash.Hex())
	}
	return res, nil
}
