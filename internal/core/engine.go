package core

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/lpbot/internal/amm"
	"github.com/web3guy0/lpbot/internal/config"
	"github.com/web3guy0/lpbot/internal/database"
	"github.com/web3guy0/lpbot/internal/execution"
	"github.com/web3guy0/lpbot/internal/metrics"
	"github.com/web3guy0/lpbot/internal/monitor"
	"github.com/web3guy0/lpbot/internal/notify"
	"github.com/web3guy0/lpbot/internal/risk"
	"github.com/web3guy0/lpbot/internal/session"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ENGINE - decision loop and action orchestration
// ═══════════════════════════════════════════════════════════════════════════════
//
// Flow:
//   Monitor → Snapshot → RangeGuard → (stop loss | rebalance | auto close)
//                                          ↓
//                                 Executor → Store → Notifier
//
// At most one action runs at a time (session busy flag). Manual API actions
// go through the same routines.
// ═══════════════════════════════════════════════════════════════════════════════

var (
	ErrBusy                 = errors.New("rebalance already running")
	ErrNoActivePosition     = errors.New("active position not found")
	ErrActivePositionExists = errors.New("active position already exists")
	ErrPositionMonitored    = errors.New("position is currently monitored")
	ErrPositionNotFound     = errors.New("position not found")
)

// Store is the position repository the engine writes to.
type Store interface {
	InsertPosition(ctx context.Context, p *database.Position) error
	ClosePosition(ctx context.Context, tokenID string, details database.CloseDetails) error
	CloseLatestActive(ctx context.Context, closeTxHash string) error
	LatestActivePosition(ctx context.Context) (*database.Position, error)
	UpdatePositionConfig(ctx context.Context, tokenID string, rt config.Runtime) error
	DeletePosition(ctx context.Context, tokenID string) (int64, error)
}

// Executor runs on-chain action sequences.
type Executor interface {
	Close(ctx context.Context, tokenID string) (*execution.CloseResult, error)
	Rebalance(ctx context.Context, tokenID string, rt config.Runtime) (*execution.RebalanceResult, error)
	Mint(ctx context.Context, rt config.Runtime) (*execution.MintResult, error)
	Describe(ctx context.Context, tokenID string) (*execution.MintResult, error)
}

type GasOracle interface {
	GasPriceGwei(ctx context.Context) (decimal.Decimal, error)
}

// Hedger opens a short against token0 exposure on mint and unwinds it on close.
type Hedger interface {
	Open(ctx context.Context, tokenID string, amount0 decimal.Decimal) error
	Close(ctx context.Context, tokenID string) error
}

type Monitor interface {
	Stop()
}

// MonitorStarter starts monitoring tokenID. It may call onSnapshot before returning.
type MonitorStarter func(ctx context.Context, tokenID string, initialNet decimal.Decimal, onSnapshot func(monitor.Snapshot)) (Monitor, error)

// Deps wires the engine. Notifier, Hedger, Metrics, Exit and Now are optional.
type Deps struct {
	Session      *session.Session
	Store        Store
	Executor     Executor
	Gas          GasOracle
	StartMonitor MonitorStarter
	Notifier     notify.Notifier
	Hedger       Hedger
	Metrics      *metrics.Metrics

	// AdoptTokenID is monitored when no active record exists.
	AdoptTokenID string
	// StopLossExit exits the process after a successful stop-loss close.
	StopLossExit bool

	Exit func(code int)
	Now  func() time.Time
}

type Engine struct {
	d     Deps
	guard *risk.RangeGuard

	mu         sync.Mutex
	ctx        context.Context
	mon        Monitor
	monTokenID string

	cfgMu sync.Mutex
	wg    sync.WaitGroup
}

func NewEngine(d Deps) *Engine {
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if d.Exit == nil {
		d.Exit = os.Exit
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Engine{d: d, guard: risk.NewRangeGuard(), ctx: context.Background()}
}

// Start seeds the runtime config from the active record and begins
// monitoring it. With no record and an AdoptTokenID the on-chain position is
// adopted first.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	e.ctx = ctx
	e.mu.Unlock()

	active, err := e.d.Store.LatestActivePosition(ctx)
	if err != nil {
		return fmt.Errorf("load active position: %w", err)
	}
	if active == nil && e.d.AdoptTokenID != "" {
		if active, err = e.adopt(ctx, e.d.AdoptTokenID); err != nil {
			return err
		}
	}
	if active == nil {
		log.Info().Msg("📭 No active position, monitor not started")
		return nil
	}

	e.d.Session.SetConfig(active.Runtime(e.d.Session.Config()))
	return e.startMonitor(active.TokenID, active.NetValueIn1)
}

// Stop halts monitoring. In-flight actions keep running; use Wait.
func (e *Engine) Stop() {
	e.mu.Lock()
	m := e.mon
	e.mon, e.monTokenID = nil, ""
	e.mu.Unlock()
	if m != nil {
		m.Stop()
	}
}

// Wait blocks until every running action has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// MonitoredTokenID is the token under monitoring, or "".
func (e *Engine) MonitoredTokenID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.monTokenID
}

func (e *Engine) context() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return context.WithoutCancel(e.ctx)
}

func (e *Engine) adopt(ctx context.Context, tokenID string) (*database.Position, error) {
	res, err := e.d.Executor.Describe(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("adopt %s: %w", tokenID, err)
	}
	rec := positionRecord(res, e.d.Session.Config(), ReasonAdopted)
	if err := e.d.Store.InsertPosition(ctx, rec); err != nil {
		return nil, fmt.Errorf("adopt %s: %w", tokenID, err)
	}
	log.Info().
		Str("token_id", tokenID).
		Str("net", res.NetValueIn1.StringFixed(4)).
		Msg("📥 Adopted existing position")
	return rec, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// MONITOR LIFECYCLE
// ═══════════════════════════════════════════════════════════════════════════════

func (e *Engine) startMonitor(tokenID string, initialNet decimal.Decimal) error {
	e.mu.Lock()
	if e.mon != nil && e.monTokenID == tokenID {
		e.mu.Unlock()
		return nil
	}
	old := e.mon
	e.mon, e.monTokenID = nil, tokenID
	ctx := e.ctx
	e.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	e.guard.Reset()
	e.d.Session.ClearSnapshot()

	m, err := e.d.StartMonitor(ctx, tokenID, initialNet, e.HandleSnapshot)
	if err != nil {
		e.mu.Lock()
		if e.monTokenID == tokenID {
			e.monTokenID = ""
		}
		e.mu.Unlock()
		return fmt.Errorf("start monitor %s: %w", tokenID, err)
	}

	e.mu.Lock()
	e.mon = m
	e.mu.Unlock()
	return nil
}

// monitorMinted starts monitoring a freshly minted position. A position that
// cannot be monitored is unmanaged, so the process exits.
func (e *Engine) monitorMinted(ctx context.Context, tokenID string, initialNet decimal.Decimal) error {
	err := e.startMonitor(tokenID, initialNet)
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf("Monitor start failed for token %s: %v", tokenID, err)
	log.Error().Err(err).Str("token_id", tokenID).Msg("❌ Monitor start failed, exiting")
	e.d.Session.AddLog("error", msg)
	e.d.Notifier.Notify(ctx, notify.LevelError, msg)
	e.d.Exit(1)
	return err
}

// maybeStopMonitor stops monitoring once no active record is left.
func (e *Engine) maybeStopMonitor(ctx context.Context) {
	active, err := e.d.Store.LatestActivePosition(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Active position lookup failed")
		return
	}
	if active != nil {
		return
	}
	e.Stop()
	e.guard.Reset()
	e.d.Session.ClearSnapshot()
	log.Info().Msg("🛑 No active position, monitor stopped")
}

// ═══════════════════════════════════════════════════════════════════════════════
// DECISION LOOP
// ═══════════════════════════════════════════════════════════════════════════════

// HandleSnapshot publishes a snapshot and dispatches at most one action.
func (e *Engine) HandleSnapshot(snap monitor.Snapshot) {
	if snap.TokenID != e.MonitoredTokenID() {
		return
	}

	cfg := e.d.Session.Config()
	ev := e.guard.Observe(risk.Observation{
		CurrentTick:  snap.CurrentTick,
		TickLower:    snap.TickLower,
		TickUpper:    snap.TickUpper,
		HasLiquidity: snap.HasLiquidity(),
		NetValue:     snap.NetValueIn1,
		InitialNet:   snap.InitialNetValueIn1,
	}, cfg, e.d.Now())

	snap.OutOfRange = ev.OutOfRange
	snap.OutOfRangeStartAt = ev.Since
	snap.RebalanceRemainingSec = ev.RemainingSec
	e.d.Session.SetSnapshot(snap)
	level := "info"
	if ev.OutOfRange {
		level = "warn"
	}
	e.d.Session.AddLog(level, strings.Join(snap.Lines(), "\n"))
	e.d.Metrics.ObserveSnapshot(snap)

	if ev.StopLoss {
		if !e.d.Session.TryAcquire() {
			return
		}
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.runStopLoss(e.context(), snap, ev.StopLossLine)
		}()
		return
	}

	if !ev.RebalanceDue || e.d.Session.Busy() {
		return
	}

	ctx := e.context()
	gas, err := e.d.Gas.GasPriceGwei(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Gas price lookup failed, rebalance deferred")
		return
	}
	e.d.Metrics.SetGasPrice(gas.InexactFloat64())
	if gas.GreaterThan(cfg.MaxGasPriceGwei) {
		log.Info().
			Str("gas_gwei", gas.StringFixed(1)).
			Str("max_gwei", cfg.MaxGasPriceGwei.String()).
			Msg("⛽ Skip rebalance: gas above ceiling")
		e.d.Metrics.GasSkipped()
		return
	}

	if !e.d.Session.TryAcquire() {
		return
	}
	e.guard.MarkFired()

	kind, label := "rebalance", "Rebalance"
	action := func(ctx context.Context) error {
		tick := snap.CurrentTick
		return e.rebalanceActive(ctx, ReasonAutoRebalance(ev.Direction), label, "Rebalance Done", &tick)
	}
	if cfg.StopAfterAutoClose {
		kind, label = "auto_close", "Auto close"
		action = func(ctx context.Context) error {
			return e.closeActive(ctx, ReasonAutoClose, label, "Auto Close Done")
		}
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.d.Session.Release()
		// A failed action keeps the episode fired until price is back in range.
		if err := e.execute(ctx, kind, label, action); err == nil {
			e.guard.Reset()
		}
	}()
}

func (e *Engine) runStopLoss(ctx context.Context, snap monitor.Snapshot, line decimal.Decimal) {
	defer e.d.Session.Release()
	logger := runLogger(ReasonStopLoss)
	started := e.d.Now()

	logger.Error().
		Str("net", snap.NetValueIn1.StringFixed(4)).
		Str("line", line.StringFixed(4)).
		Msg("🛑 STOP LOSS triggered")
	e.d.Notifier.Notify(ctx, notify.LevelError, fmt.Sprintf("STOP LOSS triggered. Net=%s %s <= %s",
		snap.NetValueIn1.StringFixed(4), snap.Symbol1, line.StringFixed(4)))

	active, err := e.d.Store.LatestActivePosition(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Active position lookup failed")
	}
	tokenID := snap.TokenID
	if active != nil {
		tokenID = active.TokenID
	}

	res, err := e.d.Executor.Close(ctx, tokenID)
	e.d.Metrics.ActionDone(ReasonStopLoss, err, e.d.Now().Sub(started))
	if err != nil {
		logger.Error().Err(err).Msg("❌ Stop loss close failed, exiting")
		e.d.Session.AddLog("error", "Stop loss error: "+err.Error())
		e.d.Notifier.Notify(ctx, notify.LevelError, "Stop loss error: "+err.Error())
		e.d.Exit(1)
		return
	}

	if active != nil {
		details := e.recordClose(ctx, active, res, ReasonStopLoss)
		e.d.Notifier.Notify(ctx, notify.LevelError, closeSummary("Stop Loss Close", active, res, details).String())
	} else if err := e.d.Store.CloseLatestActive(ctx, res.CloseTxHash); err != nil {
		logger.Error().Err(err).Msg("Failed to mark position closed")
	}
	e.closeHedge(ctx, tokenID)
	e.maybeStopMonitor(ctx)

	if e.d.StopLossExit {
		logger.Error().Msg("Stop loss done, exiting")
		e.d.Exit(1)
		return
	}
	logger.Warn().Msg("Stop loss done, monitoring stopped")
}

// ═══════════════════════════════════════════════════════════════════════════════
// MANUAL ACTIONS
// ═══════════════════════════════════════════════════════════════════════════════

// Rebalance closes the active position and mints a new one around the current tick.
func (e *Engine) Rebalance(ctx context.Context) error {
	return e.manual(ctx, "rebalance", "Manual rebalance", func(ctx context.Context) error {
		return e.rebalanceActive(ctx, ReasonManualRebalance, "Manual rebalance", "Manual Rebalance Done", nil)
	})
}

// Close withdraws the active position without reopening.
func (e *Engine) Close(ctx context.Context) error {
	return e.manual(ctx, "close", "Manual close", func(ctx context.Context) error {
		return e.closeActive(ctx, ReasonManualClose, "Manual close", "Manual Close Done")
	})
}

// Mint opens a position when none is active.
func (e *Engine) Mint(ctx context.Context) error {
	return e.manual(ctx, "mint", "Manual mint", e.mintNew)
}

func (e *Engine) manual(ctx context.Context, kind, label string, fn func(context.Context) error) error {
	if !e.d.Session.TryAcquire() {
		return ErrBusy
	}
	defer e.d.Session.Release()
	e.wg.Add(1)
	defer e.wg.Done()

	err := e.execute(context.WithoutCancel(ctx), kind, label, fn)
	e.guard.Reset()
	return err
}

// execute runs one action with logging, metrics and error notification.
func (e *Engine) execute(ctx context.Context, kind, label string, fn func(context.Context) error) error {
	logger := runLogger(kind)
	started := e.d.Now()
	logger.Info().Msg("⚙️ Action started")

	err := fn(ctx)
	took := e.d.Now().Sub(started)
	e.d.Metrics.ActionDone(kind, err, took)

	if err != nil {
		logger.Error().Err(err).Dur("took", took).Msg("❌ Action failed")
		e.d.Session.AddLog("error", fmt.Sprintf("%s error: %v", label, err))
		if !errors.Is(err, ErrNoActivePosition) && !errors.Is(err, ErrActivePositionExists) {
			e.d.Notifier.Notify(ctx, notify.LevelError, fmt.Sprintf("%s error: %v", label, err))
		}
		return err
	}
	logger.Info().Dur("took", took).Msg("✅ Action finished")
	return nil
}

func runLogger(kind string) zerolog.Logger {
	return log.With().Str("run", uuid.NewString()[:8]).Str("action", kind).Logger()
}

// ═══════════════════════════════════════════════════════════════════════════════
// ACTION ROUTINES
// ═══════════════════════════════════════════════════════════════════════════════

func (e *Engine) activePosition(ctx context.Context) (*database.Position, error) {
	active, err := e.d.Store.LatestActivePosition(ctx)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, ErrNoActivePosition
	}
	return active, nil
}

func (e *Engine) closeActive(ctx context.Context, reason, label, title string) error {
	active, err := e.activePosition(ctx)
	if err != nil {
		return err
	}
	e.d.Notifier.Notify(ctx, notify.LevelWarn, fmt.Sprintf("%s start.\nToken: %s (%s)", label, active.TokenID, pairOf(active)))

	res, err := e.d.Executor.Close(ctx, active.TokenID)
	if err != nil {
		return err
	}
	details := e.recordClose(ctx, active, res, reason)
	e.closeHedge(ctx, active.TokenID)
	e.maybeStopMonitor(ctx)

	e.d.Notifier.Notify(ctx, notify.LevelSuccess, closeSummary(title, active, res, details).String())
	return nil
}

func (e *Engine) rebalanceActive(ctx context.Context, reason, label, title string, tick *int) error {
	active, err := e.activePosition(ctx)
	if err != nil {
		return err
	}
	rt := active.Runtime(e.d.Session.Config())

	start := fmt.Sprintf("%s start.\nToken: %s (%s)", label, active.TokenID, pairOf(active))
	if tick != nil {
		start += fmt.Sprintf("\nTick: %d", *tick)
	}
	e.d.Notifier.Notify(ctx, notify.LevelWarn, start)

	res, err := e.d.Executor.Rebalance(ctx, active.TokenID, rt)
	var details database.CloseDetails
	if res != nil && res.Close != nil {
		details = e.recordClose(ctx, active, res.Close, reason)
		e.closeHedge(ctx, active.TokenID)
	}
	if err != nil {
		if res != nil && res.Close != nil {
			e.maybeStopMonitor(ctx)
		}
		return err
	}

	minted := res.Mint
	if err := e.d.Store.InsertPosition(ctx, positionRecord(minted, rt, reason)); err != nil {
		log.Error().Err(err).Str("token_id", minted.TokenID).Msg("Failed to store minted position")
	}
	e.openHedge(ctx, rt, minted)
	if err := e.monitorMinted(ctx, minted.TokenID, minted.NetValueIn1); err != nil {
		return err
	}

	summary := RebalanceSummary{
		CloseSummary: closeSummary(title, active, res.Close, details),
		NewTokenID:   minted.TokenID,
		NewRange:     fmt.Sprintf("%d ~ %d", minted.TickLower, minted.TickUpper),
		NewSize:      minted.NetValueIn1,
		MintTxHash:   minted.MintTxHash,
	}
	summary.Gas = res.Close.GasCostIn1.Add(minted.GasCostIn1)
	summary.SwapFee = minted.SwapFeeIn1
	e.d.Notifier.Notify(ctx, notify.LevelSuccess, summary.String())
	return nil
}

func (e *Engine) mintNew(ctx context.Context) error {
	active, err := e.d.Store.LatestActivePosition(ctx)
	if err != nil {
		return err
	}
	if active != nil {
		return ErrActivePositionExists
	}

	rt := e.d.Session.Config()
	e.d.Notifier.Notify(ctx, notify.LevelWarn, "Manual mint start.")

	minted, err := e.d.Executor.Mint(ctx, rt)
	if err != nil {
		return err
	}
	if err := e.d.Store.InsertPosition(ctx, positionRecord(minted, rt, ReasonManualCreate)); err != nil {
		log.Error().Err(err).Str("token_id", minted.TokenID).Msg("Failed to store minted position")
	}
	e.openHedge(ctx, rt, minted)
	if err := e.monitorMinted(ctx, minted.TokenID, minted.NetValueIn1); err != nil {
		return err
	}

	e.d.Notifier.Notify(ctx, notify.LevelSuccess, fmt.Sprintf(
		"Manual mint done.\nToken: %s (%s/%s)\nRange: %d ~ %d\nSize: %s %s\nMint Tx: %s",
		minted.TokenID, minted.Token0.Symbol, minted.Token1.Symbol,
		minted.TickLower, minted.TickUpper,
		minted.NetValueIn1.StringFixed(4), minted.Token1.Symbol, minted.MintTxHash))
	return nil
}

// recordClose writes close details to the active record. Gas is accumulated
// onto what the record already carries from its mint.
func (e *Engine) recordClose(ctx context.Context, active *database.Position, res *execution.CloseResult, reason string) database.CloseDetails {
	details := database.CloseDetails{
		CloseTxHash:       res.CloseTxHash,
		CloseReason:       reason,
		ClosedNetValueIn1: res.ClosedNetValueIn1,
		RealizedFeesIn1:   res.ClosedFeesIn1,
		RealizedPnlIn1:    res.ClosedNetValueIn1.Sub(active.NetValueIn1),
		GasCostNative:     decimal.NewNullDecimal(active.GasCostNative.Add(res.GasCostNative)),
		GasCostIn1:        decimal.NewNullDecimal(active.GasCostIn1.Add(res.GasCostIn1)),
		ClosedAt:          e.d.Now(),
	}
	if err := e.d.Store.ClosePosition(ctx, active.TokenID, details); err != nil {
		log.Error().Err(err).Str("token_id", active.TokenID).Msg("Failed to record close")
	}
	return details
}

func (e *Engine) openHedge(ctx context.Context, rt config.Runtime, minted *execution.MintResult) {
	if e.d.Hedger == nil || !rt.PerpHedgeOnMint {
		return
	}
	amount0 := amm.ToDecimal(minted.Amount0, minted.Token0.Decimals)
	if err := e.d.Hedger.Open(ctx, minted.TokenID, amount0); err != nil {
		log.Error().Err(err).Str("token_id", minted.TokenID).Msg("Perp hedge open failed")
		e.d.Notifier.Notify(ctx, notify.LevelError, fmt.Sprintf("Perp hedge open error: %v", err))
	}
}

func (e *Engine) closeHedge(ctx context.Context, tokenID string) {
	if e.d.Hedger == nil {
		return
	}
	if err := e.d.Hedger.Close(ctx, tokenID); err != nil {
		log.Error().Err(err).Str("token_id", tokenID).Msg("Perp hedge close failed")
		e.d.Notifier.Notify(ctx, notify.LevelError, fmt.Sprintf("Perp hedge close error: %v", err))
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIG / RECORDS
// ═══════════════════════════════════════════════════════════════════════════════

// UpdateConfig applies a partial runtime update and mirrors it onto the active record.
func (e *Engine) UpdateConfig(ctx context.Context, patch config.RuntimePatch) (config.Runtime, error) {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()

	next, err := e.d.Session.Config().Apply(patch)
	if err != nil {
		return config.Runtime{}, err
	}
	e.d.Session.SetConfig(next)

	active, err := e.d.Store.LatestActivePosition(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Active position lookup failed, config kept in memory only")
	} else if active != nil {
		if err := e.d.Store.UpdatePositionConfig(ctx, active.TokenID, next); err != nil {
			log.Warn().Err(err).Str("token_id", active.TokenID).Msg("Failed to persist config")
		}
	}

	log.Info().
		Int("tick_range", next.TickRange).
		Int("delay_sec", next.RebalanceDelaySec).
		Int("slippage_bps", next.SlippageBps).
		Str("stop_loss_pct", next.StopLossPercent.String()).
		Msg("⚙️ Runtime config updated")
	return next, nil
}

// DeletePosition removes every record of tokenID unless it is being monitored.
func (e *Engine) DeletePosition(ctx context.Context, tokenID string) error {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID != "" && tokenID == e.MonitoredTokenID() {
		return ErrPositionMonitored
	}
	n, err := e.d.Store.DeletePosition(ctx, tokenID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPositionNotFound
	}
	log.Info().Str("token_id", tokenID).Int64("rows", n).Msg("🗑️ Position records deleted")
	return nil
}

func positionRecord(res *execution.MintResult, rt config.Runtime, reason string) *database.Position {
	rec := &database.Position{
		TokenID:         res.TokenID,
		PoolAddress:     res.PoolAddress.Hex(),
		Token0Address:   res.Token0.Address.Hex(),
		Token0Symbol:    res.Token0.Symbol,
		Token0Decimals:  res.Token0.Decimals,
		Token1Address:   res.Token1.Address.Hex(),
		Token1Symbol:    res.Token1.Symbol,
		Token1Decimals:  res.Token1.Decimals,
		Fee:             res.Fee,
		TickLower:       res.TickLower,
		TickUpper:       res.TickUpper,
		Liquidity:       bigString(res.Liquidity),
		Amount0:         bigString(res.Amount0),
		Amount1:         bigString(res.Amount1),
		Price0In1:       res.Price0In1,
		NetValueIn1:     res.NetValueIn1,
		Fees0:           "0",
		Fees1:           "0",
		GasCostNative:   res.GasCostNative,
		GasCostIn1:      res.GasCostIn1,
		SwapFeeIn1:      res.SwapFeeIn1,
		RebalanceReason: reason,
		MintTxHash:      res.MintTxHash,
		Status:          database.StatusActive,
	}
	rec.SetRuntime(rt)
	return rec
}

func closeSummary(title string, active *database.Position, res *execution.CloseResult, details database.CloseDetails) CloseSummary {
	return CloseSummary{
		Title:     title,
		TokenID:   active.TokenID,
		Pool:      pairOf(active),
		Symbol1:   active.Token1Symbol,
		Reason:    details.CloseReason,
		Price0In1: res.Price0In1,
		ClosedNet: details.ClosedNetValueIn1,
		Fees:      details.RealizedFeesIn1,
		PnL:       details.RealizedPnlIn1,
		Gas:       details.GasCostIn1.Decimal,
		SwapFee:   active.SwapFeeIn1,
		TxHash:    details.CloseTxHash,
	}
}

func pairOf(p *database.Position) string {
	return p.Token0Symbol + "/" + p.Token1Symbol
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
