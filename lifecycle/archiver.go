// Package lifecycle drives trade records through their transitions:
// pending to live when an order fills, live to archived when it closes.
// The Reconciler detects transitions by polling the broker, the Engine
// applies explicit decisions, and both finish a close through the same
// Archiver.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/tradekeeper/broker"
	"github.com/rustyeddy/tradekeeper/internal/metrics"
	"github.com/rustyeddy/tradekeeper/journal"
	"github.com/rustyeddy/tradekeeper/store"
	"github.com/rustyeddy/tradekeeper/trade"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Outcomes receives the realized profit of each closed trade.
// *risk.Breaker implements it.
type Outcomes interface {
	RecordOutcome(profit float64) error
}

// Closure describes a trade that is no longer open at the broker. Deal is
// nil when the closing deal could not be found.
type Closure struct {
	Record   trade.Record
	Reason   string
	Deal     *broker.Deal
	ClosedAt time.Time
}

func (c Closure) Profit() (float64, bool) {
	if c.Deal == nil {
		return 0, false
	}
	return c.Deal.Profit, true
}

type Archiver struct {
	store   *store.Store
	ledger  journal.Ledger
	outcome Outcomes
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewArchiver(st *store.Store, ledger journal.Ledger, outcome Outcomes, log *zap.Logger, m *metrics.Metrics) *Archiver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Archiver{
		store:   st,
		ledger:  ledger,
		outcome: outcome,
		log:     log.Named("archiver"),
		metrics: m,
		now:     time.Now,
	}
}

// Archive writes c to the ledger, feeds the profit to the breaker and
// deletes the trade record and its analysis. The caller must hold the
// symbol lock.
//
// A ticket already present in the ledger was archived before; only the
// local cleanup is repeated. A ledger failure leaves local state in place
// so the next pass retries.
func (a *Archiver) Archive(ctx context.Context, c Closure) error {
	rec := c.Record
	if c.ClosedAt.IsZero() {
		c.ClosedAt = a.now()
		if c.Deal != nil && !c.Deal.Time.IsZero() {
			c.ClosedAt = c.Deal.Time
		}
	}

	text, _, err := a.store.Analysis(rec.Symbol, rec.Ticket)
	if err != nil {
		return fmt.Errorf("archive %s #%s: read analysis: %w", rec.Symbol, rec.Ticket, err)
	}

	profit, known := c.Profit()
	entry := journal.Entry{
		Ticket:      rec.Ticket,
		Symbol:      rec.Symbol,
		Type:        rec.Type,
		EntryPrice:  rec.Price,
		StopLoss:    rec.StopLoss,
		TakeProfit:  rec.TakeProfit,
		Volume:      rec.Volume,
		CloseReason: c.Reason,
		Profit:      profit,
		ProfitKnown: known,
		Analysis:    text,
		OpenedAt:    rec.OpenedAt,
		ClosedAt:    c.ClosedAt,
	}

	dup := false
	if err := a.ledger.Record(ctx, entry); err != nil {
		if !errors.Is(err, journal.ErrDuplicate) {
			return fmt.Errorf("archive %s #%s: %w", rec.Symbol, rec.Ticket, err)
		}
		dup = true
		a.log.Warn("ticket already archived", zap.String("symbol", rec.Symbol), zap.Stringer("ticket", rec.Ticket))
	}

	var errs error
	if known && !dup && a.outcome != nil {
		if err := a.outcome.RecordOutcome(profit); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("record outcome: %w", err))
		}
	}
	errs = multierr.Append(errs, a.store.Remove(rec.Symbol))
	if _, err := a.store.TakeAnalysis(rec.Symbol, rec.Ticket); err != nil {
		errs = multierr.Append(errs, err)
	}

	if !dup {
		a.metrics.Closed(c.Reason)
	}
	a.log.Info("archived",
		zap.String("symbol", rec.Symbol),
		zap.Stringer("ticket", rec.Ticket),
		zap.String("reason", c.Reason),
		zap.Float64("profit", profit),
		zap.Bool("profit_known", known),
	)
	return errs
}
