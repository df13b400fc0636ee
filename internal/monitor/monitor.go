// Package monitor polls one liquidity position and emits snapshots on a
// ticker and on pool/position events.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/web3guy0/lpbot/internal/chain"
)

// Source is the chain access the monitor needs.
type Source interface {
	LoadPool(ctx context.Context) (*chain.PoolContext, error)
	Position(ctx context.Context, tokenID *big.Int) (*chain.PositionInfo, error)
	OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error)
	PendingFees(ctx context.Context, tokenID *big.Int, owner common.Address) (*big.Int, *big.Int, error)
	SubscribePositionEvents(ctx context.Context, tokenID *big.Int, ch chan<- types.Log) (ethereum.Subscription, error)
	ResetWebsocket()
}

// Options configures a Monitor.
type Options struct {
	TokenID        string
	InitialNet     decimal.Decimal
	UpdateInterval time.Duration // min spacing between swap-triggered snapshots
	PollInterval   time.Duration // 0 disables the periodic snapshot
	OnSnapshot     func(Snapshot)
}

type Monitor struct {
	src     Source
	opts    Options
	tokenID *big.Int
	owner   common.Address

	mu         sync.Mutex
	initialNet decimal.Decimal
	lastUpdate time.Time

	updating atomic.Bool
	cancel   context.CancelFunc
	now      func() time.Time
}

// New validates options. Call Start to begin monitoring.
func New(src Source, opts Options) (*Monitor, error) {
	tokenID, ok := new(big.Int).SetString(strings.TrimSpace(opts.TokenID), 10)
	if !ok || tokenID.Sign() <= 0 {
		return nil, fmt.Errorf("invalid token id %q", opts.TokenID)
	}
	return &Monitor{
		src:        src,
		opts:       opts,
		tokenID:    tokenID,
		initialNet: opts.InitialNet,
		now:        time.Now,
	}, nil
}

func (m *Monitor) TokenID() string { return m.tokenID.String() }

// Start resolves the owner, emits the initial snapshot and starts the loops.
func (m *Monitor) Start(ctx context.Context) error {
	owner, err := m.src.OwnerOf(ctx, m.tokenID)
	if err != nil {
		return fmt.Errorf("owner of %s: %w", m.tokenID, err)
	}
	m.owner = owner

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	log.Info().
		Str("token_id", m.tokenID.String()).
		Str("owner", owner.Hex()).
		Msg("👀 Monitor started")

	m.Refresh(runCtx, "Init")

	go m.pollLoop(runCtx)
	go m.eventLoop(runCtx)
	return nil
}

// Stop cancels both loops. It does not wait for an in-flight snapshot.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	log.Info().Str("token_id", m.tokenID.String()).Msg("🛑 Monitor stopped")
}

// Refresh takes a snapshot now unless one is already in flight.
func (m *Monitor) Refresh(ctx context.Context, trigger string) {
	if !m.updating.CompareAndSwap(false, true) {
		return
	}
	defer func() {
		m.mu.Lock()
		m.lastUpdate = m.now()
		m.mu.Unlock()
		m.updating.Store(false)
	}()

	snap, err := m.snapshot(ctx, trigger)
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Str("trigger", trigger).Msg("Snapshot failed")
		}
		return
	}
	if m.opts.OnSnapshot != nil {
		m.opts.OnSnapshot(snap)
	}
}

func (m *Monitor) snapshot(ctx context.Context, trigger string) (Snapshot, error) {
	var (
		pool *chain.PoolContext
		pos  *chain.PositionInfo
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pool, err = m.src.LoadPool(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		pos, err = m.src.Position(gctx, m.tokenID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	fee0, fee1, feesErr := m.src.PendingFees(ctx, m.tokenID, m.owner)
	if feesErr != nil {
		log.Warn().Err(feesErr).Str("token_id", m.tokenID.String()).Msg("Pending fee lookup failed")
	}

	m.mu.Lock()
	initial := m.initialNet
	m.mu.Unlock()

	snap := Build(Inputs{
		Trigger:    trigger,
		Pool:       pool,
		Position:   pos,
		Fee0:       fee0,
		Fee1:       fee1,
		FeesErr:    feesErr,
		InitialNet: initial,
		Now:        m.now(),
	})

	// First snapshot with liquidity sets the PnL baseline.
	if !initial.IsPositive() && snap.HasLiquidity() && snap.NetValueIn1.IsPositive() {
		m.mu.Lock()
		m.initialNet = snap.NetValueIn1
		m.mu.Unlock()
		snap.InitialNetValueIn1 = snap.NetValueIn1
	}

	log.Debug().
		Str("trigger", trigger).
		Str("status", snap.Status).
		Int("tick", snap.CurrentTick).
		Str("net", snap.NetValueIn1.StringFixed(4)).
		Msg("📸 Snapshot")
	return snap, nil
}

func (m *Monitor) pollLoop(ctx context.Context) {
	if m.opts.PollInterval <= 0 {
		return
	}
	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Refresh(ctx, "Poll")
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) eventLoop(ctx context.Context) {
	for ctx.Err() == nil {
		logs := make(chan types.Log, 64)
		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = time.Second
		policy.MaxInterval = 30 * time.Second

		sub, err := backoff.Retry(ctx, func() (ethereum.Subscription, error) {
			s, err := m.src.SubscribePositionEvents(ctx, m.tokenID, logs)
			if errors.Is(err, chain.ErrNoWebsocket) {
				return nil, backoff.Permanent(err)
			}
			return s, err
		},
			backoff.WithBackOff(policy),
			backoff.WithMaxElapsedTime(10*time.Minute),
			backoff.WithNotify(func(err error, d time.Duration) {
				log.Warn().Err(err).Dur("retry_in", d).Msg("Event subscription failed")
			}))
		if errors.Is(err, chain.ErrNoWebsocket) {
			log.Info().Msg("No RPC_WSS configured, monitor runs on polling only")
			return
		}
		if err != nil {
			continue
		}

		log.Info().Str("token_id", m.tokenID.String()).Msg("📡 Subscribed to pool and position events")
		m.consume(ctx, sub, logs)
	}
}

func (m *Monitor) consume(ctx context.Context, sub ethereum.Subscription, logs <-chan types.Log) {
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			log.Warn().Err(err).Msg("WS closed, resubscribing")
			m.src.ResetWebsocket()
			return
		case lg := <-logs:
			if trigger := m.triggerFor(lg); trigger != "" {
				go m.Refresh(ctx, trigger)
			}
		}
	}
}

// triggerFor maps an event to a snapshot trigger, or "" to skip it.
func (m *Monitor) triggerFor(lg types.Log) string {
	if lg.Removed || !chain.MatchesToken(lg, m.tokenID) {
		return ""
	}
	switch chain.ClassifyLog(lg) {
	case chain.EventSwap:
		m.mu.Lock()
		due := m.now().Sub(m.lastUpdate) > m.opts.UpdateInterval
		m.mu.Unlock()
		if due && !m.updating.Load() {
			return "Swap"
		}
	case chain.EventIncreaseLiquidity:
		return "Liq+"
	case chain.EventDecreaseLiquidity:
		return "Liq-"
	case chain.EventCollect:
		return "Collect"
	}
	return ""
}
