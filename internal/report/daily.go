// Package report sends a scheduled summary of recently closed positions.
package report

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/lpbot/internal/database"
	"github.com/web3guy0/lpbot/internal/notify"
)

const Window = 24 * time.Hour

type Source interface {
	ClosedSince(ctx context.Context, since time.Time) ([]database.Position, error)
}

// Summary totals closed positions over a window. Profit is pnl + fees - gas - swap fees.
type Summary struct {
	Since    time.Time
	Count    int
	Symbol1  string
	PnL      decimal.Decimal
	Fees     decimal.Decimal
	Gas      decimal.Decimal
	SwapFees decimal.Decimal
	Reasons  map[string]int
}

func (s Summary) Profit() decimal.Decimal {
	return s.PnL.Add(s.Fees).Sub(s.Gas).Sub(s.SwapFees)
}

func Summarize(positions []database.Position, since time.Time) Summary {
	s := Summary{Since: since, Count: len(positions), Reasons: map[string]int{}}
	for _, p := range positions {
		if s.Symbol1 == "" {
			s.Symbol1 = p.Token1Symbol
		}
		s.PnL = s.PnL.Add(p.RealizedPnlIn1.Decimal)
		s.Fees = s.Fees.Add(p.RealizedFeesIn1.Decimal)
		s.Gas = s.Gas.Add(p.GasCostIn1)
		s.SwapFees = s.SwapFees.Add(p.SwapFeeIn1)
		s.Reasons[p.CloseReason]++
	}
	return s
}

func (s Summary) String() string {
	if s.Count == 0 {
		return "Daily Report\nNo positions closed in the last 24h."
	}
	sym := s.Symbol1
	lines := []string{
		"Daily Report",
		fmt.Sprintf("Closed: %d", s.Count),
		fmt.Sprintf("Fees: %s %s", signed(s.Fees), sym),
		fmt.Sprintf("PnL: %s %s", signed(s.PnL), sym),
		fmt.Sprintf("Gas: -%s %s", s.Gas.StringFixed(4), sym),
		fmt.Sprintf("Swap Fee: -%s %s", s.SwapFees.StringFixed(4), sym),
		fmt.Sprintf("Profit: %s %s", signed(s.Profit()), sym),
	}
	for _, reason := range slices.Sorted(maps.Keys(s.Reasons)) {
		lines = append(lines, fmt.Sprintf("  %s × %d", reason, s.Reasons[reason]))
	}
	return strings.Join(lines, "\n")
}

// Daily runs the report on a cron schedule (seconds field enabled).
type Daily struct {
	src      Source
	notifier notify.Notifier
	now      func() time.Time
	cron     *cron.Cron
}

func NewDaily(src Source, notifier notify.Notifier) *Daily {
	return &Daily{
		src:      src,
		notifier: notifier,
		now:      time.Now,
		cron:     cron.New(cron.WithSeconds()),
	}
}

// Schedule registers the job and starts the scheduler.
func (d *Daily) Schedule(ctx context.Context, spec string) error {
	if _, err := d.cron.AddFunc(spec, func() {
		if err := d.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Daily report failed")
		}
	}); err != nil {
		return fmt.Errorf("daily report schedule %q: %w", spec, err)
	}
	d.cron.Start()
	log.Info().Str("cron", spec).Msg("🗓️ Daily report scheduled")
	return nil
}

func (d *Daily) Stop() {
	<-d.cron.Stop().Done()
}

// Run sends one report covering the last Window.
func (d *Daily) Run(ctx context.Context) error {
	since := d.now().Add(-Window)
	positions, err := d.src.ClosedSince(ctx, since)
	if err != nil {
		return err
	}
	s := Summarize(positions, since)
	d.notifier.Notify(ctx, notify.LevelInfo, s.String())
	log.Info().Int("closed", s.Count).Str("profit", s.Profit().StringFixed(4)).Msg("📨 Daily report sent")
	return nil
}

func signed(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.StringFixed(4)
	}
	return "+" + d.StringFixed(4)
}
