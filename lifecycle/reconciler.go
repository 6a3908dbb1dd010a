package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rustyeddy/tradekeeper/broker"
	"github.com/rustyeddy/tradekeeper/internal/metrics"
	"github.com/rustyeddy/tradekeeper/notify"
	"github.com/rustyeddy/tradekeeper/store"
	"github.com/rustyeddy/tradekeeper/trade"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrReconciliationGap marks a position that left the active set without a
// matching closing deal in the broker history.
var ErrReconciliationGap = errors.New("closing deal not found")

// Report summarizes one reconciliation cycle.
type Report struct {
	Skipped  bool
	Promoted []trade.Ticket
	Closed   []trade.Ticket
	Gaps     []trade.Ticket
	// Err joins the per-symbol failures. The cycle still ran for every
	// other symbol.
	Err error
}

type Reconciler struct {
	broker   broker.Broker
	store    *store.Store
	archiver *Archiver
	notifier notify.Notifier
	log      *zap.Logger
	metrics  *metrics.Metrics

	running atomic.Bool
}

func NewReconciler(b broker.Broker, st *store.Store, ar *Archiver, n notify.Notifier, log *zap.Logger, m *metrics.Metrics) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	if n == nil {
		n = notify.Discard
	}
	return &Reconciler{
		broker:   b,
		store:    st,
		archiver: ar,
		notifier: n,
		log:      log.Named("reconciler"),
		metrics:  m,
	}
}

// Run reconciles once after delay and then every interval until ctx is
// done.
func (r *Reconciler) Run(ctx context.Context, delay, interval time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		// Errors are logged inside RunOnce; the next tick retries.
		_, _ = r.RunOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce performs one cycle. A call made while another cycle is running
// returns immediately with Report.Skipped set. A failure to list broker
// positions aborts the cycle and is returned; per-symbol failures are
// collected in Report.Err.
func (r *Reconciler) RunOnce(ctx context.Context) (Report, error) {
	if !r.running.CompareAndSwap(false, true) {
		r.log.Debug("previous cycle still running, skipping")
		r.metrics.ReconcileRun("skipped", 0)
		return Report{Skipped: true}, nil
	}
	defer r.running.Store(false)

	start := time.Now()
	positions, err := r.broker.ActivePositions(ctx)
	if err != nil {
		r.log.Error("list positions failed, skipping cycle", zap.Error(err))
		r.metrics.ReconcileRun("error", time.Since(start))
		return Report{}, fmt.Errorf("reconcile: list positions: %w", err)
	}
	active := broker.TicketSet(positions)

	var rep Report

	pending, err := r.store.List(trade.Pending)
	rep.Err = multierr.Append(rep.Err, err)
	for _, rec := range pending {
		rep.Err = multierr.Append(rep.Err, r.promote(ctx, rec, active, &rep))
	}

	live, err := r.store.List(trade.Live)
	rep.Err = multierr.Append(rep.Err, err)
	for _, rec := range live {
		rep.Err = multierr.Append(rep.Err, r.settle(ctx, rec.Symbol, active, &rep))
	}

	result := "ok"
	if rep.Err != nil {
		result = "error"
		for _, e := range multierr.Errors(rep.Err) {
			r.log.Error("reconcile symbol", zap.Error(e))
		}
	}
	r.metrics.ReconcileRun(result, time.Since(start))
	r.log.Debug("cycle done",
		zap.Int("positions", len(positions)),
		zap.Int("promoted", len(rep.Promoted)),
		zap.Int("closed", len(rep.Closed)),
		zap.Int("gaps", len(rep.Gaps)),
	)
	return rep, nil
}

// promote moves a filled pending record to live storage.
func (r *Reconciler) promote(ctx context.Context, seen trade.Record, active map[trade.Ticket]broker.Position, rep *Report) error {
	unlock := r.store.Lock(seen.Symbol)
	defer unlock()

	rec, err := r.store.Get(seen.Symbol)
	if err != nil {
		return fmt.Errorf("%s: %w", seen.Symbol, err)
	}
	if rec == nil {
		return nil
	}

	if rec.Status == trade.Live {
		// Leftover from a promotion that wrote live but never removed pending.
		if rec.Ticket == seen.Ticket {
			r.log.Info("removing stale pending copy", zap.String("symbol", rec.Symbol), zap.Stringer("ticket", rec.Ticket))
			return r.store.RemovePending(rec.Symbol)
		}
		return fmt.Errorf("%s: pending #%s conflicts with live #%s: %w",
			rec.Symbol, seen.Ticket, rec.Ticket, store.ErrStateConflict)
	}

	if _, ok := active[rec.Ticket]; !ok {
		return nil
	}

	promoted, err := r.store.Promote(rec.Symbol)
	if err != nil {
		return fmt.Errorf("%s: promote: %w", rec.Symbol, err)
	}
	rep.Promoted = append(rep.Promoted, promoted.Ticket)
	r.metrics.Promoted()
	r.log.Info("pending order filled", zap.String("symbol", promoted.Symbol), zap.Stringer("ticket", promoted.Ticket))
	r.notify(ctx, filledText(*promoted))
	return nil
}

// settle archives a live record whose position has left the active set.
func (r *Reconciler) settle(ctx context.Context, symbol string, active map[trade.Ticket]broker.Position, rep *Report) error {
	unlock := r.store.Lock(symbol)
	defer unlock()

	rec, err := r.store.Get(symbol)
	if err != nil {
		return fmt.Errorf("%s: %w", symbol, err)
	}
	if rec == nil || rec.Status != trade.Live {
		return nil
	}
	if _, ok := active[rec.Ticket]; ok {
		return nil
	}
	// The snapshot predates the lock; a trade opened since then is absent
	// from it without being closed.
	stillOpen, err := r.stillActive(ctx, rec.Ticket)
	if err != nil {
		return fmt.Errorf("%s: recheck #%s: %w", symbol, rec.Ticket, err)
	}
	if stillOpen {
		return nil
	}

	deal, err := r.broker.ClosingDeal(ctx, rec.Ticket)
	if err != nil {
		r.log.Warn("closing deal lookup failed", zap.String("symbol", symbol), zap.Stringer("ticket", rec.Ticket), zap.Error(err))
		deal = nil
	}

	if deal == nil {
		r.log.Warn("archiving without deal",
			zap.String("symbol", symbol),
			zap.Error(fmt.Errorf("#%s: %w", rec.Ticket, ErrReconciliationGap)),
		)
		if err := r.archiver.Archive(ctx, Closure{Record: *rec, Reason: string(broker.CloseUnknown)}); err != nil {
			return fmt.Errorf("%s: %w", symbol, err)
		}
		rep.Gaps = append(rep.Gaps, rec.Ticket)
		r.metrics.Gap()
		r.notify(ctx, gapText(*rec))
		return nil
	}

	reason := string(deal.Reason.CloseReason())
	if err := r.archiver.Archive(ctx, Closure{Record: *rec, Reason: reason, Deal: deal}); err != nil {
		return fmt.Errorf("%s: %w", symbol, err)
	}
	rep.Closed = append(rep.Closed, rec.Ticket)
	r.notify(ctx, closedText(*rec, reason, deal.Profit))
	return nil
}

func (r *Reconciler) stillActive(ctx context.Context, tk trade.Ticket) (bool, error) {
	positions, err := r.broker.ActivePositions(ctx)
	if err != nil {
		return false, err
	}
	_, ok := broker.TicketSet(positions)[tk]
	return ok, nil
}

func (r *Reconciler) notify(ctx context.Context, text string) {
	if err := r.notifier.Notify(ctx, notify.Text(text)); err != nil {
		r.log.Warn("notify failed", zap.Error(err))
	}
}
