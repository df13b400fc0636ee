// Package chain wraps the RPC connection, signer and contract calls used by
// the bot: pool reads, position manager operations, swaps and ERC20 approvals.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"
)

// ErrNoWebsocket is returned by subscriptions when no WebSocket endpoint is configured.
var ErrNoWebsocket = errors.New("websocket endpoint not configured")

// Options configures Dial.
type Options struct {
	RPCURL          string
	WSURL           string
	ChainID         int64
	PrivateKey      string
	Pool            string
	PositionManager string
	SwapRouter      string
}

// Client is the bot's handle on the chain. Transactions are serialized so
// nonces are assigned in order.
type Client struct {
	rpc     *ethclient.Client
	ws      *ethclient.Client
	wsURL   string
	chainID *big.Int

	key   *ecdsa.PrivateKey
	owner common.Address

	pool   common.Address
	nfpm   common.Address
	router common.Address

	nfpmContract   *bind.BoundContract
	routerContract *bind.BoundContract

	txMu sync.Mutex

	metaMu sync.Mutex
	tokens map[common.Address]TokenMeta
	static *poolStatic
}

// Dial connects the HTTP client, checks the chain id and loads the signer.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if !common.IsHexAddress(opts.Pool) {
		return nil, fmt.Errorf("invalid pool address %q", opts.Pool)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(opts.PrivateKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	rpc, err := ethclient.DialContext(ctx, opts.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		rpc.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}
	if opts.ChainID != 0 && chainID.Int64() != opts.ChainID {
		rpc.Close()
		return nil, fmt.Errorf("rpc chain id %s does not match CHAIN_ID %d", chainID, opts.ChainID)
	}

	c := &Client{
		rpc:     rpc,
		wsURL:   opts.WSURL,
		chainID: chainID,
		key:     key,
		owner:   crypto.PubkeyToAddress(key.PublicKey),
		pool:    common.HexToAddress(opts.Pool),
		nfpm:    common.HexToAddress(opts.PositionManager),
		router:  common.HexToAddress(opts.SwapRouter),
		tokens:  make(map[common.Address]TokenMeta),
	}
	c.nfpmContract = bind.NewBoundContract(c.nfpm, positionManagerABI, rpc, rpc, rpc)
	c.routerContract = bind.NewBoundContract(c.router, swapRouterABI, rpc, rpc, rpc)

	log.Info().
		Str("chain_id", chainID.String()).
		Str("wallet", c.owner.Hex()).
		Str("pool", c.pool.Hex()).
		Msg("🔗 Chain client connected")
	return c, nil
}

// Close releases the RPC connections.
func (c *Client) Close() {
	c.rpc.Close()
	c.metaMu.Lock()
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	c.metaMu.Unlock()
}

func (c *Client) Owner() common.Address           { return c.owner }
func (c *Client) PoolAddress() common.Address     { return c.pool }
func (c *Client) PositionManager() common.Address { return c.nfpm }
func (c *Client) Router() common.Address          { return c.router }

// call packs, eth_calls and unpacks a view method.
func (c *Client) call(ctx context.Context, contractABI abi.ABI, to common.Address, from common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{From: from, To: &to, Data: data}
	out, err := c.rpc.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	res, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return res, nil
}

// transact sends a state-changing call and waits for a successful receipt.
func (c *Client) transact(ctx context.Context, contract *bind.BoundContract, method string, params ...interface{}) (*TxResult, error) {
	c.txMu.Lock()
	defer c.txMu.Unlock()

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := contract.Transact(opts, method, params...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	log.Info().Str("method", method).Str("tx", tx.Hash().Hex()).Msg("📤 Transaction sent")

	receipt, err := bind.WaitMined(ctx, c.rpc, tx)
	if err != nil {
		return nil, fmt.Errorf("%s wait: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s reverted: %s", method, tx.Hash().Hex())
	}

	res := newTxResult(receipt, c.nfpm)
	log.Info().
		Str("method", method).
		Str("tx", res.Hash.Hex()).
		Uint64("gas_used", res.GasUsed).
		Msg("✅ Transaction confirmed")
	return res, nil
}

// wsClient lazily dials the WebSocket endpoint.
func (c *Client) wsClient(ctx context.Context) (*ethclient.Client, error) {
	if c.wsURL == "" {
		return nil, ErrNoWebsocket
	}
	c.metaMu.Lock()
	defer c.metaMu.Unlock()
	if c.ws != nil {
		return c.ws, nil
	}
	ws, err := ethclient.DialContext(ctx, c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("dial ws: %w", err)
	}
	c.ws = ws
	return ws, nil
}

// resetWS drops the cached WebSocket client after a subscription failure.
func (c *Client) resetWS() {
	c.metaMu.Lock()
	defer c.metaMu.Unlock()
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
}

func toBig(v interface{}) *big.Int {
	if b, ok := v.(*big.Int); ok && b != nil {
		return b
	}
	return new(big.Int)
}

func deadlineBig(unix int64) *big.Int {
	return big.NewInt(unix)
}
