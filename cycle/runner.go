// Package cycle runs the per-symbol analysis cycle: gate, analyze, apply.
package cycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rustyeddy/tradekeeper/gate"
	"github.com/rustyeddy/tradekeeper/lifecycle"
	"github.com/rustyeddy/tradekeeper/notify"
	"github.com/rustyeddy/tradekeeper/store"
	"github.com/rustyeddy/tradekeeper/trade"
	"go.uber.org/zap"
)

// Outcome records what one cycle for one symbol did.
type Outcome struct {
	CycleID  string
	Symbol   string
	Verdict  gate.Verdict
	Decision *lifecycle.Decision
	Effect   *lifecycle.Effect
}

type Runner struct {
	gate     *gate.Gate
	store    *store.Store
	analyst  Analyst
	engine   *lifecycle.Engine
	notifier notify.Notifier
	symbols  []string
	log      *zap.Logger
	now      func() time.Time
}

func NewRunner(g *gate.Gate, st *store.Store, a Analyst, e *lifecycle.Engine, n notify.Notifier, symbols []string, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if n == nil {
		n = notify.Discard
	}
	return &Runner{
		gate:     g,
		store:    st,
		analyst:  a,
		engine:   e,
		notifier: n,
		symbols:  symbols,
		log:      log.Named("cycle"),
		now:      time.Now,
	}
}

func (r *Runner) Symbols() []string { return r.symbols }

// RunSymbol runs one analysis cycle. A gate rejection is reported through
// the notifier and returns a nil error. Analyst and engine failures are
// both notified and returned.
func (r *Runner) RunSymbol(ctx context.Context, symbol string) (Outcome, error) {
	symbol = trade.NormalizeSymbol(symbol)
	out := Outcome{CycleID: uuid.NewString(), Symbol: symbol}
	log := r.log.With(zap.String("cycle", out.CycleID), zap.String("symbol", symbol))

	active, err := r.store.Get(symbol)
	if err != nil {
		return out, r.fail(ctx, log, fmt.Errorf("load %s: %w", symbol, err))
	}

	now := r.now()
	if active != nil {
		out.Verdict = r.gate.CheckManage(symbol)
	} else {
		out.Verdict = r.gate.Check(ctx, symbol, now)
	}
	if !out.Verdict.Allowed {
		r.notify(ctx, log, out.Verdict.Notice)
		return out, nil
	}

	req := Request{
		CycleID: out.CycleID,
		Symbol:  symbol,
		Time:    now,
		Active:  active,
		Filter:  out.Verdict.Filter,
		Meta:    out.Verdict.Meta,
	}
	if active != nil {
		thesis, _, err := r.store.Analysis(symbol, active.Ticket)
		if err != nil {
			return out, r.fail(ctx, log, fmt.Errorf("load thesis %s: %w", symbol, err))
		}
		req.Thesis = thesis
	}

	d, err := r.analyst.Analyze(ctx, req)
	if err != nil {
		return out, r.fail(ctx, log, fmt.Errorf("analysis failed for %s: %w", symbol, err))
	}
	if d.Symbol == "" {
		d.Symbol = symbol
	}
	if trade.NormalizeSymbol(d.Symbol) != symbol {
		return out, r.fail(ctx, log, fmt.Errorf("analysis for %s returned a decision for %s", symbol, d.Symbol))
	}
	out.Decision = &d

	meta := out.Verdict.Meta
	meta.CycleID = out.CycleID
	eff, err := r.engine.Apply(ctx, d, meta)
	out.Effect = &eff
	if err != nil {
		return out, r.fail(ctx, log, fmt.Errorf("%s %s: %w", d.Decision, symbol, err))
	}
	log.Info("cycle complete", zap.String("decision", string(eff.Kind)), zap.Stringer("ticket", eff.Ticket))
	return out, nil
}

// RunAll runs a cycle for every configured symbol in order.
func (r *Runner) RunAll(ctx context.Context) []Outcome {
	outs := make([]Outcome, 0, len(r.symbols))
	for _, s := range r.symbols {
		if ctx.Err() != nil {
			break
		}
		o, _ := r.RunSymbol(ctx, s)
		outs = append(outs, o)
	}
	return outs
}

// Run calls RunAll every interval until ctx is done.
func (r *Runner) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.RunAll(ctx)
		}
	}
}

func (r *Runner) fail(ctx context.Context, log *zap.Logger, err error) error {
	log.Error("cycle failed", zap.Error(err))
	r.notify(ctx, log, "❌ "+err.Error())
	return err
}

func (r *Runner) notify(ctx context.Context, log *zap.Logger, text string) {
	if text == "" {
		return
	}
	if err := r.notifier.Notify(ctx, notify.Text(text)); err != nil {
		log.Warn("notify failed", zap.Error(err))
	}
}
