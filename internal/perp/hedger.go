package perp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/lpbot/internal/config"
	"github.com/web3guy0/lpbot/internal/database"
)

// ═══════════════════════════════════════════════════════════════════════════════
// HEDGER - short token0 on mint, flatten on close
// ═══════════════════════════════════════════════════════════════════════════════
//
//   Open:  SELL amount0 × multiplier → fetch fills → store under token id
//   Close: net qty of stored fills → opposite side, reduce-only → store fills
// ═══════════════════════════════════════════════════════════════════════════════

const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	sizeDecimals  = 8
	tradesLookups = 10
)

// TradeStore persists venue fills.
type TradeStore interface {
	InsertPerpTrade(ctx context.Context, t *database.PerpTrade) error
	PerpTradesByToken(ctx context.Context, tokenID, market string) ([]database.PerpTrade, error)
}

type Hedger struct {
	runner Runner
	store  TradeStore
	cfg    config.PerpConfig
}

func NewHedger(runner Runner, store TradeStore, cfg config.PerpConfig) *Hedger {
	if cfg.Market == "" {
		cfg.Market = "ETH-USD"
	}
	return &Hedger{runner: runner, store: store, cfg: cfg}
}

type orderPayload struct {
	Side           string `json:"side"`
	Size           string `json:"size"`
	Market         string `json:"market"`
	MaxSlippagePct string `json:"max_slippage_pct,omitempty"`
	ReduceOnly     bool   `json:"reduce_only,omitempty"`
}

type tradeRow struct {
	ID          text `json:"id"`
	OrderID     text `json:"order_id"`
	Market      text `json:"market"`
	Side        text `json:"side"`
	Price       text `json:"price"`
	Qty         text `json:"qty"`
	Value       text `json:"value"`
	Fee         text `json:"fee"`
	IsTaker     bool `json:"is_taker"`
	TradeType   text `json:"trade_type"`
	CreatedTime text `json:"created_time"`
}

// Open shorts amount0 (scaled by the size multiplier) for tokenID.
func (h *Hedger) Open(ctx context.Context, tokenID string, amount0 decimal.Decimal) error {
	size := amount0.Mul(h.multiplier()).Round(sizeDecimals)
	if !size.IsPositive() {
		return nil
	}
	order := orderPayload{
		Side:       SideSell,
		Size:       size.String(),
		Market:     h.cfg.Market,
		ReduceOnly: h.cfg.ReduceOnly,
	}
	if h.cfg.MaxSlippagePct.IsPositive() {
		order.MaxSlippagePct = h.cfg.MaxSlippagePct.String()
	}
	return h.place(ctx, tokenID, order)
}

// Close flattens whatever the stored fills of tokenID add up to.
func (h *Hedger) Close(ctx context.Context, tokenID string) error {
	trades, err := h.store.PerpTradesByToken(ctx, tokenID, h.cfg.Market)
	if err != nil {
		return fmt.Errorf("load perp trades: %w", err)
	}
	net := Summarize(trades).NetQty
	if net.IsZero() {
		return nil
	}

	side := SideSell
	if net.IsNegative() {
		side = SideBuy
	}
	order := orderPayload{
		Side:       side,
		Size:       net.Abs().Round(sizeDecimals).String(),
		Market:     h.cfg.Market,
		ReduceOnly: true,
	}
	if h.cfg.MaxSlippagePct.IsPositive() {
		order.MaxSlippagePct = h.cfg.MaxSlippagePct.String()
	}
	return h.place(ctx, tokenID, order)
}

func (h *Hedger) multiplier() decimal.Decimal {
	if h.cfg.SizeMultiplier.IsZero() {
		return decimal.NewFromInt(1)
	}
	return h.cfg.SizeMultiplier
}

func (h *Hedger) place(ctx context.Context, tokenID string, order orderPayload) error {
	res, err := h.runner.Run(ctx, "market_order", order)
	if err != nil {
		return err
	}
	if err := res.Err("market_order"); err != nil {
		return err
	}

	var placed struct {
		OrderID text `json:"order_id"`
	}
	if len(res.Data) > 0 {
		if err := json.Unmarshal(res.Data, &placed); err != nil {
			return fmt.Errorf("decode market_order: %w", err)
		}
	}
	log.Info().
		Str("token_id", tokenID).
		Str("side", order.Side).
		Str("size", order.Size).
		Str("market", order.Market).
		Str("order_id", string(placed.OrderID)).
		Msg("🛡️ Perp hedge order placed")
	if placed.OrderID == "" {
		return nil
	}

	trades, err := h.tradesForOrder(ctx, string(placed.OrderID))
	if err != nil {
		return err
	}
	return h.storeTrades(ctx, tokenID, trades)
}

// tradesForOrder prefers order_by_id and falls back to filtering recent trades.
func (h *Hedger) tradesForOrder(ctx context.Context, orderID string) ([]tradeRow, error) {
	res, err := h.runner.Run(ctx, "order_by_id", map[string]string{"order_id": orderID})
	if err == nil && res.OK {
		var data struct {
			Order *struct {
				Trade *tradeRow `json:"trade"`
			} `json:"order"`
		}
		if json.Unmarshal(res.Data, &data) == nil && data.Order != nil && data.Order.Trade != nil {
			return []tradeRow{*data.Order.Trade}, nil
		}
	}

	res, err = h.runner.Run(ctx, "trades", map[string]any{"market": []string{h.cfg.Market}, "limit": tradesLookups})
	if err != nil {
		return nil, err
	}
	if err := res.Err("trades"); err != nil {
		return nil, err
	}
	var data struct {
		Trades []tradeRow `json:"trades"`
	}
	if len(res.Data) > 0 {
		if err := json.Unmarshal(res.Data, &data); err != nil {
			return nil, fmt.Errorf("decode trades: %w", err)
		}
	}
	var out []tradeRow
	for _, t := range data.Trades {
		if string(t.OrderID) == orderID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (h *Hedger) storeTrades(ctx context.Context, tokenID string, trades []tradeRow) error {
	for _, t := range trades {
		rec, ok := t.record(tokenID)
		if !ok {
			continue
		}
		if err := h.store.InsertPerpTrade(ctx, rec); err != nil {
			return fmt.Errorf("store perp trade %s: %w", rec.TradeID, err)
		}
	}
	return nil
}

// record maps a venue fill to a row. Fills missing identity, price, qty or
// time are skipped.
func (t tradeRow) record(tokenID string) (*database.PerpTrade, bool) {
	if t.ID == "" || t.OrderID == "" || t.Market == "" || t.Side == "" || t.Price == "" || t.Qty == "" || t.CreatedTime == "" {
		return nil, false
	}
	price, err := decimal.NewFromString(string(t.Price))
	if err != nil {
		return nil, false
	}
	qty, err := decimal.NewFromString(string(t.Qty))
	if err != nil {
		return nil, false
	}
	created, err := strconv.ParseFloat(string(t.CreatedTime), 64)
	if err != nil {
		return nil, false
	}
	side := SideSell
	if t.Side == SideBuy {
		side = SideBuy
	}
	raw, _ := json.Marshal(t)

	rec := &database.PerpTrade{
		TradeID:     string(t.ID),
		OrderID:     string(t.OrderID),
		TokenID:     tokenID,
		Market:      string(t.Market),
		Side:        side,
		Qty:         qty,
		Price:       price,
		IsTaker:     t.IsTaker,
		TradeType:   string(t.TradeType),
		CreatedTime: int64(created),
		RawJSON:     string(raw),
	}
	rec.Value, _ = decimal.NewFromString(string(t.Value))
	rec.Fee, _ = decimal.NewFromString(string(t.Fee))
	return rec, true
}
