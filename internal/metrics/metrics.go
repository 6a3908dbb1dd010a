// Package metrics holds the Prometheus collectors the engine updates:
//
//	tk_reconcile_runs_total{result}     ok|skipped|error
//	tk_reconcile_seconds                duration of a completed cycle
//	tk_promotions_total                 pending records moved to live
//	tk_closures_total{reason}           archived closures by close reason
//	tk_reconcile_gaps_total             closures with no deal in history
//	tk_decisions_total{decision,result} applied decisions
//	tk_gate_rejections_total{reason}    analysis cycles refused by the gate
//	tk_breaker_losses_today             loss counter of the circuit breaker
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	reconcileRuns  *prometheus.CounterVec
	reconcileTime  prometheus.Histogram
	promotions     prometheus.Counter
	closures       *prometheus.CounterVec
	gaps           prometheus.Counter
	decisions      *prometheus.CounterVec
	gateRejections *prometheus.CounterVec
	breakerLosses  prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reconcileRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tk_reconcile_runs_total",
			Help: "Reconciliation cycles by result",
		}, []string{"result"}),
		reconcileTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tk_reconcile_seconds",
			Help:    "Duration of completed reconciliation cycles",
			Buckets: prometheus.DefBuckets,
		}),
		promotions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tk_promotions_total",
			Help: "Pending orders observed as filled",
		}),
		closures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tk_closures_total",
			Help: "Archived trades by close reason",
		}, []string{"reason"}),
		gaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tk_reconcile_gaps_total",
			Help: "Closed trades whose closing deal was not found",
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tk_decisions_total",
			Help: "Decisions applied by kind and result",
		}, []string{"decision", "result"}),
		gateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tk_gate_rejections_total",
			Help: "Analysis cycles refused by the gate",
		}, []string{"reason"}),
		breakerLosses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tk_breaker_losses_today",
			Help: "Losses counted by the circuit breaker today",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.reconcileRuns, m.reconcileTime, m.promotions, m.closures,
			m.gaps, m.decisions, m.gateRejections, m.breakerLosses,
		)
	}
	return m
}

func (m *Metrics) ReconcileRun(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.reconcileRuns.WithLabelValues(result).Inc()
	if result != "skipped" {
		m.reconcileTime.Observe(d.Seconds())
	}
}

func (m *Metrics) Promoted() {
	if m == nil {
		return
	}
	m.promotions.Inc()
}

func (m *Metrics) Closed(reason string) {
	if m == nil {
		return
	}
	m.closures.WithLabelValues(reason).Inc()
}

func (m *Metrics) Gap() {
	if m == nil {
		return
	}
	m.gaps.Inc()
}

func (m *Metrics) Decision(kind, result string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) GateRejected(reason string) {
	if m == nil {
		return
	}
	m.gateRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) BreakerLosses(n int) {
	if m == nil {
		return
	}
	m.breakerLosses.Set(float64(n))
}
