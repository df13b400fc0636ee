package database

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/web3guy0/lpbot/internal/config"
)

// Position is one liquidity position minted (or adopted) by the bot.
type Position struct {
	ID             uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	TokenID        string `gorm:"index;not null" json:"tokenId"`
	PoolAddress    string `gorm:"not null" json:"poolAddress"`
	Token0Address  string `json:"token0Address"`
	Token0Symbol   string `json:"token0Symbol"`
	Token0Decimals uint8  `json:"token0Decimals"`
	Token1Address  string `json:"token1Address"`
	Token1Symbol   string `json:"token1Symbol"`
	Token1Decimals uint8  `json:"token1Decimals"`
	Fee            uint32 `json:"fee"`
	TickLower      int    `json:"tickLower"`
	TickUpper      int    `json:"tickUpper"`
	Liquidity      string `json:"liquidity"`
	Amount0        string `json:"amount0"`
	Amount1        string `json:"amount1"`

	Price0In1     decimal.Decimal `gorm:"column:price0_in_1;type:decimal(38,18)" json:"price0In1"`
	NetValueIn1   decimal.Decimal `gorm:"column:net_value_in_1;type:decimal(38,18)" json:"netValueIn1"`
	Fees0         string          `json:"fees0"`
	Fees1         string          `json:"fees1"`
	GasCostNative decimal.Decimal `gorm:"type:decimal(38,18)" json:"gasCostNative"`
	GasCostIn1    decimal.Decimal `gorm:"column:gas_cost_in_1;type:decimal(38,18)" json:"gasCostIn1"`
	SwapFeeIn1    decimal.Decimal `gorm:"column:swap_fee_in_1;type:decimal(38,18)" json:"swapFeeIn1"`

	RebalanceReason string `json:"rebalanceReason"`
	MintTxHash      string `json:"mintTxHash"`
	CloseTxHash     string `json:"closeTxHash"`
	CloseReason     string `json:"closeReason"`

	ClosedNetValueIn1 decimal.NullDecimal `gorm:"column:closed_net_value_in_1;type:decimal(38,18)" json:"closedNetValueIn1"`
	RealizedFeesIn1   decimal.NullDecimal `gorm:"column:realized_fees_in_1;type:decimal(38,18)" json:"realizedFeesIn1"`
	RealizedPnlIn1    decimal.NullDecimal `gorm:"column:realized_pnl_in_1;type:decimal(38,18)" json:"realizedPnlIn1"`
	ClosedAt          *time.Time          `json:"closedAt"`

	// Runtime config in force when the position was opened.
	ConfigTickRange          *int                `json:"configTickRange"`
	ConfigRebalanceDelaySec  *int                `json:"configRebalanceDelaySec"`
	ConfigSlippageBps        *int                `json:"configSlippageBps"`
	ConfigStopLossPercent    decimal.NullDecimal `gorm:"type:decimal(10,4)" json:"configStopLossPercent"`
	ConfigMaxGasPriceGwei    decimal.NullDecimal `gorm:"type:decimal(20,6)" json:"configMaxGasPriceGwei"`
	ConfigTargetTotalToken1  decimal.NullDecimal `gorm:"column:config_target_total_token1;type:decimal(38,18)" json:"configTargetTotalToken1"`
	ConfigStopAfterAutoClose *bool               `json:"configStopAfterAutoClose"`
	ConfigPerpHedgeOnMint    *bool               `json:"configPerpHedgeOnMint"`

	Status    string    `gorm:"index;not null" json:"status"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SetRuntime snapshots rt into the config columns.
func (p *Position) SetRuntime(rt config.Runtime) {
	tickRange, delay, slippage := rt.TickRange, rt.RebalanceDelaySec, rt.SlippageBps
	stopAfter, hedge := rt.StopAfterAutoClose, rt.PerpHedgeOnMint
	p.ConfigTickRange = &tickRange
	p.ConfigRebalanceDelaySec = &delay
	p.ConfigSlippageBps = &slippage
	p.ConfigStopLossPercent = decimal.NewNullDecimal(rt.StopLossPercent)
	p.ConfigMaxGasPriceGwei = decimal.NewNullDecimal(rt.MaxGasPriceGwei)
	p.ConfigTargetTotalToken1 = decimal.NewNullDecimal(rt.TargetTotalToken1)
	p.ConfigStopAfterAutoClose = &stopAfter
	p.ConfigPerpHedgeOnMint = &hedge
}

// Runtime returns the snapshotted config, taking unset columns from fallback.
func (p *Position) Runtime(fallback config.Runtime) config.Runtime {
	rt := fallback
	if p.ConfigTickRange != nil {
		rt.TickRange = *p.ConfigTickRange
	}
	if p.ConfigRebalanceDelaySec != nil {
		rt.RebalanceDelaySec = *p.ConfigRebalanceDelaySec
	}
	if p.ConfigSlippageBps != nil {
		rt.SlippageBps = *p.ConfigSlippageBps
	}
	if p.ConfigStopLossPercent.Valid {
		rt.StopLossPercent = p.ConfigStopLossPercent.Decimal
	}
	if p.ConfigMaxGasPriceGwei.Valid {
		rt.MaxGasPriceGwei = p.ConfigMaxGasPriceGwei.Decimal
	}
	if p.ConfigTargetTotalToken1.Valid {
		rt.TargetTotalToken1 = p.ConfigTargetTotalToken1.Decimal
	}
	if p.ConfigStopAfterAutoClose != nil {
		rt.StopAfterAutoClose = *p.ConfigStopAfterAutoClose
	}
	if p.ConfigPerpHedgeOnMint != nil {
		rt.PerpHedgeOnMint = *p.ConfigPerpHedgeOnMint
	}
	return rt
}

// CloseDetails is written to the latest active record of a token on close.
// Gas fields are only written when valid.
type CloseDetails struct {
	CloseTxHash       string
	CloseReason       string
	ClosedNetValueIn1 decimal.Decimal
	RealizedFeesIn1   decimal.Decimal
	RealizedPnlIn1    decimal.Decimal
	GasCostNative     decimal.NullDecimal
	GasCostIn1        decimal.NullDecimal
	ClosedAt          time.Time
}

// InsertPosition stores a new record; ID is filled in on success.
func (d *Database) InsertPosition(ctx context.Context, p *Position) error {
	if p.Status == "" {
		p.Status = StatusActive
	}
	return d.db.WithContext(ctx).Create(p).Error
}

// latestActiveID returns the newest active record id, optionally for one token.
func (d *Database) latestActiveID(ctx context.Context, tokenID string) (uint, bool, error) {
	q := d.db.WithContext(ctx).Model(&Position{}).Where("status = ?", StatusActive)
	if tokenID != "" {
		q = q.Where("token_id = ?", tokenID)
	}
	var p Position
	err := q.Order("id DESC").Select("id").First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return p.ID, true, nil
}

// ClosePosition marks the newest active record of tokenID closed with details.
// It is a no-op when no such record exists.
func (d *Database) ClosePosition(ctx context.Context, tokenID string, details CloseDetails) error {
	id, ok, err := d.latestActiveID(ctx, tokenID)
	if err != nil || !ok {
		return err
	}

	closedAt := details.ClosedAt
	if closedAt.IsZero() {
		closedAt = time.Now()
	}
	updates := map[string]interface{}{
		"status":                StatusClosed,
		"close_tx_hash":         details.CloseTxHash,
		"close_reason":          details.CloseReason,
		"closed_net_value_in_1": decimal.NewNullDecimal(details.ClosedNetValueIn1),
		"realized_fees_in_1":    decimal.NewNullDecimal(details.RealizedFeesIn1),
		"realized_pnl_in_1":     decimal.NewNullDecimal(details.RealizedPnlIn1),
		"closed_at":             closedAt,
	}
	if details.GasCostNative.Valid {
		updates["gas_cost_native"] = details.GasCostNative.Decimal
	}
	if details.GasCostIn1.Valid {
		updates["gas_cost_in_1"] = details.GasCostIn1.Decimal
	}
	return d.db.WithContext(ctx).Model(&Position{}).Where("id = ?", id).Updates(updates).Error
}

// CloseLatestActive marks the newest active record closed, whatever its token.
func (d *Database) CloseLatestActive(ctx context.Context, closeTxHash string) error {
	id, ok, err := d.latestActiveID(ctx, "")
	if err != nil || !ok {
		return err
	}
	now := time.Now()
	return d.db.WithContext(ctx).Model(&Position{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        StatusClosed,
		"close_tx_hash": closeTxHash,
		"closed_at":     now,
	}).Error
}

// UpdatePositionConfig rewrites the config snapshot of the newest active record of tokenID.
func (d *Database) UpdatePositionConfig(ctx context.Context, tokenID string, rt config.Runtime) error {
	id, ok, err := d.latestActiveID(ctx, tokenID)
	if err != nil || !ok {
		return err
	}
	var p Position
	p.SetRuntime(rt)
	return d.db.WithContext(ctx).Model(&Position{}).Where("id = ?", id).Updates(map[string]interface{}{
		"config_tick_range":            p.ConfigTickRange,
		"config_rebalance_delay_sec":   p.ConfigRebalanceDelaySec,
		"config_slippage_bps":          p.ConfigSlippageBps,
		"config_stop_loss_percent":     p.ConfigStopLossPercent,
		"config_max_gas_price_gwei":    p.ConfigMaxGasPriceGwei,
		"config_target_total_token1":   p.ConfigTargetTotalToken1,
		"config_stop_after_auto_close": p.ConfigStopAfterAutoClose,
		"config_perp_hedge_on_mint":    p.ConfigPerpHedgeOnMint,
	}).Error
}

// ListPositions returns the newest records first (default 50, max 500).
func (d *Database) ListPositions(ctx context.Context, limit int) ([]Position, error) {
	var out []Position
	err := d.db.WithContext(ctx).Order("id DESC").Limit(clampLimit(limit, 50, 500)).Find(&out).Error
	return out, err
}

// LatestPosition returns the newest record or nil.
func (d *Database) LatestPosition(ctx context.Context) (*Position, error) {
	return d.first(d.db.WithContext(ctx).Order("id DESC"))
}

// LatestActivePosition returns the newest active record or nil.
func (d *Database) LatestActivePosition(ctx context.Context) (*Position, error) {
	return d.first(d.db.WithContext(ctx).Where("status = ?", StatusActive).Order("id DESC"))
}

// ClosedSince returns records closed at or after since, oldest first.
func (d *Database) ClosedSince(ctx context.Context, since time.Time) ([]Position, error) {
	var out []Position
	err := d.db.WithContext(ctx).
		Where("status = ? AND closed_at >= ?", StatusClosed, since).
		Order("closed_at ASC").
		Find(&out).Error
	return out, err
}

// DeletePosition removes every record of tokenID and returns the count.
func (d *Database) DeletePosition(ctx context.Context, tokenID string) (int64, error) {
	res := d.db.WithContext(ctx).Where("token_id = ?", tokenID).Delete(&Position{})
	return res.RowsAffected, res.Error
}

func (d *Database) first(q *gorm.DB) (*Position, error) {
	var p Position
	err := q.First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
