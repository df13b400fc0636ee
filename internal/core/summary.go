package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Close and rebalance reasons stored on position records.
const (
	ReasonStopLoss        = "stop_loss"
	ReasonAutoClose       = "auto_close_no_rebalance"
	ReasonManualRebalance = "rebalance_manual"
	ReasonManualClose     = "manual_close"
	ReasonManualCreate    = "manual_create"
	ReasonAdopted         = "adopted"
)

// ReasonAutoRebalance is rebalance_auto(upper) or rebalance_auto(lower).
func ReasonAutoRebalance(direction string) string {
	return fmt.Sprintf("rebalance_auto(%s)", direction)
}

// CloseSummary is the notification body for a closed position.
type CloseSummary struct {
	Title     string
	TokenID   string
	Pool      string
	Symbol1   string
	Reason    string
	Price0In1 decimal.Decimal
	ClosedNet decimal.Decimal
	Fees      decimal.Decimal
	PnL       decimal.Decimal
	Gas       decimal.Decimal
	SwapFee   decimal.Decimal
	TxHash    string
}

// Profit is pnl + fees - gas - swap fee.
func (s CloseSummary) Profit() decimal.Decimal {
	return s.PnL.Add(s.Fees).Sub(s.Gas).Sub(s.SwapFee)
}

func (s CloseSummary) lines() []string {
	token := "Token: " + s.TokenID
	if s.Pool != "" {
		token += " (" + s.Pool + ")"
	}
	out := []string{s.Title, token}
	if s.Reason != "" {
		out = append(out, "Reason: "+s.Reason)
	}
	out = append(out,
		fmt.Sprintf("Close Price: %s %s", s.Price0In1.StringFixed(4), s.Symbol1),
		fmt.Sprintf("Close Net: %s %s", s.ClosedNet.StringFixed(4), s.Symbol1),
		fmt.Sprintf("Fees: %s %s", signed4(s.Fees), s.Symbol1),
		fmt.Sprintf("PnL: %s %s", signed4(s.PnL), s.Symbol1),
		fmt.Sprintf("Gas: -%s %s", s.Gas.StringFixed(4), s.Symbol1),
		fmt.Sprintf("Swap Fee: -%s %s", s.SwapFee.StringFixed(4), s.Symbol1),
		strings.TrimSpace(fmt.Sprintf("Profit: %s %s", signed4(s.Profit()), s.Symbol1)),
	)
	if s.TxHash != "" {
		out = append(out, "Tx: "+s.TxHash)
	}
	return out
}

func (s CloseSummary) String() string {
	return strings.Join(s.lines(), "\n")
}

// RebalanceSummary extends a close summary with the replacement position.
type RebalanceSummary struct {
	CloseSummary
	NewTokenID string
	NewRange   string
	NewSize    decimal.Decimal
	MintTxHash string
}

func (s RebalanceSummary) String() string {
	out := append(s.CloseSummary.lines(), "New Token: "+s.NewTokenID)
	if s.NewRange != "" {
		out = append(out, "New Range: "+s.NewRange)
	}
	out = append(out, strings.TrimSpace(fmt.Sprintf("New Size: %s %s", s.NewSize.StringFixed(4), s.Symbol1)))
	if s.MintTxHash != "" {
		out = append(out, "Mint Tx: "+s.MintTxHash)
	}
	return strings.Join(out, "\n")
}

func signed4(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.StringFixed(4)
	}
	return "+" + d.StringFixed(4)
}
