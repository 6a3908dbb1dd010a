package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/tradekeeper/broker"
	"github.com/rustyeddy/tradekeeper/internal/metrics"
	"github.com/rustyeddy/tradekeeper/notify"
	"github.com/rustyeddy/tradekeeper/risk"
	"github.com/rustyeddy/tradekeeper/store"
	"github.com/rustyeddy/tradekeeper/trade"
	"go.uber.org/zap"
)

// ReasonAlreadyClosed is the close reason used when a manual close finds
// the ticket already gone at the broker and no closing deal is known.
const ReasonAlreadyClosed = "Already Closed at Broker"

var ErrOrderRejected = errors.New("order rejected by policy")

type EngineConfig struct {
	Supported     []string
	DefaultVolume float64
	Policy        risk.OrderPolicy
	// CommentTag prefixes the order comment sent to the broker.
	CommentTag string
}

// Effect is what applying a decision did.
type Effect struct {
	Kind     Kind
	Symbol   string
	Ticket   trade.Ticket
	Record   *trade.Record
	Archived bool
	Notice   string
}

type Engine struct {
	broker   broker.Broker
	store    *store.Store
	archiver *Archiver
	notifier notify.Notifier
	cfg      EngineConfig
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewEngine(b broker.Broker, st *store.Store, ar *Archiver, n notify.Notifier, cfg EngineConfig, log *zap.Logger, m *metrics.Metrics) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if n == nil {
		n = notify.Discard
	}
	return &Engine{
		broker:   b,
		store:    st,
		archiver: ar,
		notifier: n,
		cfg:      cfg,
		log:      log.Named("engine"),
		metrics:  m,
		now:      time.Now,
	}
}

// Apply validates d and carries it out. meta annotates a newly opened
// record. Broker and storage failures are returned to the caller.
func (e *Engine) Apply(ctx context.Context, d Decision, meta trade.Meta) (Effect, error) {
	d.Normalize()
	if err := d.Validate(e.cfg.Supported); err != nil {
		e.metrics.Decision(string(d.Decision), "invalid")
		return Effect{}, err
	}

	var (
		eff Effect
		err error
	)
	switch d.Decision {
	case Open:
		eff, err = e.open(ctx, d, meta)
	case CloseManual:
		eff, err = e.closeManual(ctx, d)
	case Hold:
		eff = Effect{Notice: holdText(d.Symbol, d.Reason)}
	case NoTrade:
		eff = Effect{Notice: noTradeText(d.Symbol, d.Reason)}
	}
	eff.Kind = d.Decision
	eff.Symbol = d.Symbol

	if err != nil {
		e.metrics.Decision(string(d.Decision), "error")
		e.log.Error("apply decision", zap.String("decision", string(d.Decision)), zap.String("symbol", d.Symbol), zap.Error(err))
		return eff, err
	}
	e.metrics.Decision(string(d.Decision), "ok")
	if eff.Notice != "" {
		if err := e.notifier.Notify(ctx, notify.Text(eff.Notice)); err != nil {
			e.log.Warn("notify failed", zap.Error(err))
		}
	}
	return eff, nil
}

func (e *Engine) open(ctx context.Context, d Decision, meta trade.Meta) (Effect, error) {
	unlock := e.store.Lock(d.Symbol)
	defer unlock()

	existing, err := e.store.Get(d.Symbol)
	if err != nil {
		return Effect{}, err
	}
	if existing != nil {
		return Effect{}, fmt.Errorf("open %s: %w: #%s is %s", d.Symbol, store.ErrStateConflict, existing.Ticket, existing.Status)
	}

	volume := d.Volume
	if volume <= 0 {
		volume = e.cfg.DefaultVolume
	}

	check := risk.CheckOrder(e.cfg.Policy, risk.OrderIntent{
		Buy:        d.Type.IsBuy(),
		Entry:      d.Price,
		Stop:       d.StopLoss,
		TakeProfit: d.TakeProfit,
		Volume:     volume,
	})
	if !check.Allowed {
		return Effect{}, fmt.Errorf("open %s: %w: %v", d.Symbol, ErrOrderRejected, check.Error())
	}
	if meta.RR == 0 {
		meta.RR = check.PlannedRR
	}

	comment := d.Symbol
	if e.cfg.CommentTag != "" {
		comment = e.cfg.CommentTag + " | " + d.Symbol
	}
	res, err := e.broker.OpenOrder(ctx, broker.OrderRequest{
		Symbol:     d.Symbol,
		Type:       d.Type,
		Price:      d.Price,
		StopLoss:   d.StopLoss,
		TakeProfit: d.TakeProfit,
		Volume:     volume,
		Comment:    comment,
	})
	if err != nil {
		return Effect{}, fmt.Errorf("open %s: %w", d.Symbol, err)
	}
	tk, ok := res.TicketID()
	if !ok {
		return Effect{}, broker.ShapeError("open order", "result carries no order, deal or ticket")
	}

	rec := trade.Record{
		Ticket:     tk,
		Symbol:     d.Symbol,
		Type:       d.Type,
		Price:      d.Price,
		StopLoss:   d.StopLoss,
		TakeProfit: d.TakeProfit,
		Volume:     volume,
		Status:     trade.StatusFor(d.Type),
		Comment:    comment,
		OpenedAt:   e.now(),
		Meta:       meta,
	}
	if err := e.store.Create(rec); err != nil {
		e.log.Error("order placed but not recorded", zap.String("symbol", d.Symbol), zap.Stringer("ticket", tk), zap.Error(err))
		if nerr := e.notifier.Notify(ctx, notify.Text(unrecordedText(rec, err))); nerr != nil {
			e.log.Warn("notify failed", zap.Error(nerr))
		}
		return Effect{Ticket: tk}, fmt.Errorf("record #%s: %w", tk, err)
	}
	if err := e.store.PutAnalysis(d.Symbol, tk, d.Analysis); err != nil {
		return Effect{Ticket: tk, Record: &rec}, fmt.Errorf("record analysis #%s: %w", tk, err)
	}

	e.log.Info("trade opened", zap.String("symbol", d.Symbol), zap.Stringer("ticket", tk), zap.String("type", string(d.Type)), zap.String("status", string(rec.Status)))
	return Effect{Ticket: tk, Record: &rec, Notice: openedText(rec)}, nil
}

func (e *Engine) closeManual(ctx context.Context, d Decision) (Effect, error) {
	unlock := e.store.Lock(d.Symbol)
	defer unlock()

	rec, err := e.store.Get(d.Symbol)
	if err != nil {
		return Effect{}, err
	}
	if rec == nil {
		return Effect{Notice: noTradeToCloseText(d.Symbol)}, nil
	}

	reason := fmt.Sprintf("Manual Close by AI (%s)", orNone(d.Reason))
	cancelled := false

	if rec.Status == trade.Pending {
		err = e.broker.CancelPendingOrder(ctx, rec.Ticket)
		if err == nil {
			cancelled = true
		} else if broker.IsInvalidRequest(err) {
			e.log.Info("cancel refused, closing as live", zap.String("symbol", rec.Symbol), zap.Stringer("ticket", rec.Ticket), zap.Error(err))
			err = e.broker.ClosePosition(ctx, rec.Ticket)
		}
	} else {
		err = e.broker.ClosePosition(ctx, rec.Ticket)
	}

	switch {
	case err == nil:
	case broker.IsNotFound(err):
		reason = ReasonAlreadyClosed
		e.log.Info("ticket already gone at broker", zap.String("symbol", rec.Symbol), zap.Stringer("ticket", rec.Ticket))
	default:
		return Effect{Ticket: rec.Ticket}, fmt.Errorf("close %s #%s: %w", rec.Symbol, rec.Ticket, err)
	}

	var deal *broker.Deal
	if !cancelled {
		deal, err = e.broker.ClosingDeal(ctx, rec.Ticket)
		if err != nil {
			e.log.Warn("closing deal lookup failed", zap.Stringer("ticket", rec.Ticket), zap.Error(err))
			deal = nil
		}
		if deal != nil && reason == ReasonAlreadyClosed {
			reason = string(deal.Reason.CloseReason())
		}
	}

	if err := e.archiver.Archive(ctx, Closure{Record: *rec, Reason: reason, Deal: deal}); err != nil {
		return Effect{Ticket: rec.Ticket}, err
	}

	eff := Effect{Ticket: rec.Ticket, Archived: true}
	switch {
	case cancelled:
		eff.Notice = cancelledText(*rec, reason)
	case deal != nil:
		eff.Notice = closedText(*rec, reason, deal.Profit)
	default:
		eff.Notice = closedText(*rec, reason, 0)
	}
	return eff, nil
}
