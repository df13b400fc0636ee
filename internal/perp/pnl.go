package perp

import (
	"github.com/shopspring/decimal"

	"github.com/web3guy0/lpbot/internal/database"
)

// Summary aggregates the fills of one hedge.
type Summary struct {
	Trades int             `json:"trades"`
	NetQty decimal.Decimal `json:"netQty"`
	// Cash is sell proceeds minus buy cost, before fees.
	Cash decimal.Decimal `json:"cash"`
	Fees decimal.Decimal `json:"fees"`
	// RealizedPnL is Cash − Fees once the hedge is flat, zero otherwise.
	RealizedPnL decimal.Decimal `json:"realizedPnl"`
	Flat        bool            `json:"flat"`
}

// Summarize folds fills into net quantity and realized PnL. A fill without a
// value is valued at qty × price.
func Summarize(trades []database.PerpTrade) Summary {
	s := Summary{Trades: len(trades)}
	for _, t := range trades {
		value := t.Value
		if value.IsZero() {
			value = t.Qty.Mul(t.Price)
		}
		if t.Side == SideBuy {
			s.NetQty = s.NetQty.Add(t.Qty)
			s.Cash = s.Cash.Sub(value)
		} else {
			s.NetQty = s.NetQty.Sub(t.Qty)
			s.Cash = s.Cash.Add(value)
		}
		s.Fees = s.Fees.Add(t.Fee.Abs())
	}
	s.Flat = s.NetQty.IsZero()
	if s.Flat && len(trades) > 0 {
		s.RealizedPnL = s.Cash.Sub(s.Fees)
	}
	return s
}
