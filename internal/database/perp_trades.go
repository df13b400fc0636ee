package database

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

// PerpTrade is a fill on the hedging venue attributed to an LP token.
type PerpTrade struct {
	ID          uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	TradeID     string          `gorm:"uniqueIndex;not null" json:"tradeId"`
	OrderID     string          `gorm:"index" json:"orderId"`
	TokenID     string          `gorm:"index;not null" json:"tokenId"`
	PositionID  *uint           `json:"positionId"`
	Market      string          `gorm:"index" json:"market"`
	Side        string          `json:"side"` // BUY or SELL
	Qty         decimal.Decimal `gorm:"type:decimal(38,18)" json:"qty"`
	Price       decimal.Decimal `gorm:"type:decimal(38,18)" json:"price"`
	Value       decimal.Decimal `gorm:"type:decimal(38,18)" json:"value"`
	Fee         decimal.Decimal `gorm:"type:decimal(38,18)" json:"fee"`
	IsTaker     bool            `json:"isTaker"`
	TradeType   string          `json:"tradeType"`
	CreatedTime int64           `json:"createdTime"`
	RawJSON     string          `gorm:"column:raw_json" json:"-"`
}

// PerpTradeFilter narrows ListPerpTrades. Limit defaults to 50, max 500.
type PerpTradeFilter struct {
	TokenID string
	Market  string
	Limit   int
}

// InsertPerpTrade stores a fill, ignoring duplicates by trade id.
func (d *Database) InsertPerpTrade(ctx context.Context, t *PerpTrade) error {
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(t).Error
}

// ListPerpTrades returns matching fills, newest first.
func (d *Database) ListPerpTrades(ctx context.Context, f PerpTradeFilter) ([]PerpTrade, error) {
	q := d.db.WithContext(ctx)
	if f.TokenID != "" {
		q = q.Where("token_id = ?", f.TokenID)
	}
	if f.Market != "" {
		q = q.Where("market = ?", f.Market)
	}
	var out []PerpTrade
	err := q.Order("id DESC").Limit(clampLimit(f.Limit, 50, 500)).Find(&out).Error
	return out, err
}

// PerpTradesByToken returns every fill of tokenID, optionally for one market.
func (d *Database) PerpTradesByToken(ctx context.Context, tokenID, market string) ([]PerpTrade, error) {
	q := d.db.WithContext(ctx).Where("token_id = ?", tokenID)
	if market != "" {
		q = q.Where("market = ?", market)
	}
	var out []PerpTrade
	err := q.Order("id ASC").Find(&out).Error
	return out, err
}
