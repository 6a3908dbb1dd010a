// Package gate decides whether an analysis cycle for a symbol may run.
package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/tradekeeper/filter"
	"github.com/rustyeddy/tradekeeper/internal/metrics"
	"github.com/rustyeddy/tradekeeper/risk"
	"github.com/rustyeddy/tradekeeper/session"
	"github.com/rustyeddy/tradekeeper/trade"
	"go.uber.org/zap"
)

type Reason string

const (
	Allowed        Reason = ""
	Paused         Reason = "paused"
	BreakerTripped Reason = "circuit_breaker"
	OutOfSession   Reason = "outside_session"
	FilterRejected Reason = "hard_filter"
	FilterFailed   Reason = "filter_error"
)

// Checker is the hard filter as the gate sees it.
type Checker interface {
	Check(ctx context.Context, symbol string, allowFallback bool) (filter.Result, error)
}

// Verdict is the outcome of a gate check. A rejection is not an error; it
// carries a notice for the operator.
type Verdict struct {
	Allowed bool
	Reason  Reason
	Notice  string
	Filter  *filter.Result
	Meta    trade.Meta
}

type Gate struct {
	pause         *PauseFlag
	breaker       *risk.Breaker
	session       *session.Gate
	filter        Checker
	allowFallback bool
	log           *zap.Logger
	metrics       *metrics.Metrics
}

type Option func(*Gate)

// WithFallback lets the filter aggregate M1 candles when M5 history is short.
func WithFallback(on bool) Option { return func(g *Gate) { g.allowFallback = on } }

func WithLogger(log *zap.Logger) Option { return func(g *Gate) { g.log = log.Named("gate") } }

func WithMetrics(m *metrics.Metrics) Option { return func(g *Gate) { g.metrics = m } }

func New(pause *PauseFlag, breaker *risk.Breaker, sess *session.Gate, f Checker, opts ...Option) *Gate {
	g := &Gate{
		pause:         pause,
		breaker:       breaker,
		session:       sess,
		filter:        f,
		allowFallback: true,
		log:           zap.NewNop(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Check gates analysis aimed at opening a new trade: pause flag, circuit
// breaker, trading session and hard filter, in that order. Unreadable
// pause or breaker state rejects.
func (g *Gate) Check(ctx context.Context, symbol string, now time.Time) Verdict {
	if v, stop := g.checkPause(symbol); stop {
		return g.reject(symbol, v)
	}

	stats, tripped, err := g.breaker.Check()
	if err != nil {
		g.log.Error("breaker state unreadable", zap.Error(err))
		return g.reject(symbol, Verdict{
			Reason: BreakerTripped,
			Notice: fmt.Sprintf("🛑 Circuit breaker state unreadable, new trades blocked: %v", err),
		})
	}
	if tripped {
		g.metrics.BreakerLosses(stats.LossesToday)
		return g.reject(symbol, Verdict{
			Reason: BreakerTripped,
			Notice: fmt.Sprintf("🛑 Circuit breaker tripped: %d losses today (max %d). No new %s trades until the next trading day.",
				stats.LossesToday, g.breaker.MaxLosses(), symbol),
		})
	}

	loc := g.session.Location()
	if !g.session.Contains(now) {
		return g.reject(symbol, Verdict{
			Reason: OutOfSession,
			Notice: fmt.Sprintf("🕒 Outside trading session (%s %s). Skipping %s.",
				now.In(loc).Format("15:04"), loc, symbol),
		})
	}

	meta := trade.Meta{Segment: string(g.session.Segment(now))}

	res, err := g.filter.Check(ctx, symbol, g.allowFallback)
	if err != nil {
		g.log.Warn("hard filter failed", zap.String("symbol", symbol), zap.Error(err))
		return g.reject(symbol, Verdict{
			Reason: FilterFailed,
			Notice: fmt.Sprintf("⚠️ Could not evaluate %s: %v", symbol, err),
			Meta:   meta,
		})
	}
	meta.ATR = res.ATR
	meta.Range = res.Range
	meta.Body = res.Body
	meta.WickATRRatio = res.WickATRRatio
	meta.Filter = "pass"
	if !res.Pass {
		meta.Filter = res.Reason
		return g.reject(symbol, Verdict{
			Reason: FilterRejected,
			Notice: fmt.Sprintf("🚧 %s rejected by hard filter: %s (range %.5g, body %.5g, ATR %.5g)",
				symbol, res.Reason, res.Range, res.Body, res.ATR),
			Filter: &res,
			Meta:   meta,
		})
	}

	return Verdict{Allowed: true, Filter: &res, Meta: meta}
}

// CheckManage gates analysis of a symbol that already has an outstanding
// trade. Only the pause flag applies so open trades keep being managed.
func (g *Gate) CheckManage(symbol string) Verdict {
	if v, stop := g.checkPause(symbol); stop {
		return g.reject(symbol, v)
	}
	return Verdict{Allowed: true}
}

func (g *Gate) checkPause(symbol string) (Verdict, bool) {
	paused, err := g.pause.Paused()
	if err != nil {
		g.log.Error("pause flag unreadable", zap.Error(err))
		return Verdict{Reason: Paused, Notice: fmt.Sprintf("⏸ Pause flag unreadable, skipping %s: %v", symbol, err)}, true
	}
	if paused {
		return Verdict{Reason: Paused, Notice: fmt.Sprintf("⏸ Bot is paused. Skipping analysis for %s.", symbol)}, true
	}
	return Verdict{}, false
}

func (g *Gate) reject(symbol string, v Verdict) Verdict {
	v.Allowed = false
	g.metrics.GateRejected(string(v.Reason))
	g.log.Info("analysis gated", zap.String("symbol", symbol), zap.String("reason", string(v.Reason)))
	return v
}
