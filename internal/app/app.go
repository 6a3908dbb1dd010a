// Package app assembles the engine from a Config.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rustyeddy/tradekeeper/broker"
	"github.com/rustyeddy/tradekeeper/broker/mt5"
	"github.com/rustyeddy/tradekeeper/broker/paper"
	"github.com/rustyeddy/tradekeeper/config"
	"github.com/rustyeddy/tradekeeper/cycle"
	"github.com/rustyeddy/tradekeeper/filter"
	"github.com/rustyeddy/tradekeeper/gate"
	"github.com/rustyeddy/tradekeeper/internal/metrics"
	"github.com/rustyeddy/tradekeeper/journal"
	"github.com/rustyeddy/tradekeeper/lifecycle"
	"github.com/rustyeddy/tradekeeper/notify"
	"github.com/rustyeddy/tradekeeper/risk"
	"github.com/rustyeddy/tradekeeper/server"
	"github.com/rustyeddy/tradekeeper/session"
	"github.com/rustyeddy/tradekeeper/store"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// App holds every wired component. Fields are exported so commands can
// drive single pieces, e.g. one reconciliation cycle.
type App struct {
	Config     *config.Config
	Log        *zap.Logger
	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics
	Store      *store.Store
	Ledger     journal.Ledger
	Breaker    *risk.Breaker
	Pause      *gate.PauseFlag
	Session    *session.Gate
	Recipients *notify.RecipientList
	Notifier   notify.Notifier
	Broker     broker.Broker
	Gate       *gate.Gate
	Archiver   *lifecycle.Archiver
	Engine     *lifecycle.Engine
	Reconciler *lifecycle.Reconciler
	// Runner is nil when no analyst endpoint is configured.
	Runner *cycle.Runner
}

// New builds the engine. The logger is owned by the caller.
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	loc, err := cfg.Trading.Location()
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	dur := cfg.Durations()

	a := &App{Config: cfg, Log: log}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry)

	if err := os.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("state dir: %w", err)
	}
	if a.Store, err = store.Open(cfg.Storage.TradesDir()); err != nil {
		return nil, err
	}
	if a.Ledger, err = openLedger(cfg.Journal); err != nil {
		return nil, err
	}

	a.Breaker = risk.NewBreaker(cfg.Storage.BreakerPath(), cfg.Risk.MaxLossesPerDay, loc, risk.WithLogger(log))
	a.Pause = gate.NewPauseFlag(cfg.Storage.PausePath())

	a.Recipients = notify.NewRecipientList(cfg.Storage.RecipientsPath())
	for _, id := range cfg.Notify.Recipients {
		if _, err := a.Recipients.Add(id); err != nil {
			return nil, a.closeWith(err)
		}
	}
	var sender notify.Sender = notify.LogSender{Log: log.Named("notify")}
	if cfg.Notify.WebhookURL != "" {
		sender = notify.NewWebhookSender(cfg.Notify.WebhookURL, cfg.Notify.Token, dur.BrokerTimeout)
	}
	a.Notifier = notify.NewBroadcaster(sender, a.Recipients, log)

	a.Broker, err = newBroker(cfg.Broker, dur, loc, log)
	if err != nil {
		return nil, a.closeWith(err)
	}
	src, ok := a.Broker.(filter.CandleSource)
	if !ok {
		return nil, a.closeWith(fmt.Errorf("broker %q cannot serve candles", cfg.Broker.Mode))
	}

	if a.Session, err = session.NewGate(cfg.Trading.Sessions, loc); err != nil {
		return nil, a.closeWith(err)
	}
	a.Gate = gate.New(a.Pause, a.Breaker, a.Session, filter.New(src, cfg.Filter, log),
		gate.WithFallback(cfg.Trading.AllowFallback),
		gate.WithLogger(log),
		gate.WithMetrics(a.Metrics),
	)

	a.Archiver = lifecycle.NewArchiver(a.Store, a.Ledger, a.Breaker, log, a.Metrics)
	a.Engine = lifecycle.NewEngine(a.Broker, a.Store, a.Archiver, a.Notifier, lifecycle.EngineConfig{
		Supported:     cfg.Trading.Symbols,
		DefaultVolume: cfg.Trading.Volume,
		Policy:        cfg.Risk.Policy(),
		CommentTag:    cfg.Trading.CommentTag,
	}, log, a.Metrics)
	a.Reconciler = lifecycle.NewReconciler(a.Broker, a.Store, a.Archiver, a.Notifier, log, a.Metrics)

	if cfg.Analyst.URL != "" {
		analyst := cycle.NewHTTPAnalyst(cfg.Analyst.URL, cfg.Analyst.APIKey, dur.AnalystTimeout)
		a.Runner = cycle.NewRunner(a.Gate, a.Store, analyst, a.Engine, a.Notifier, cfg.Trading.Symbols, log)
	}
	return a, nil
}

func openLedger(cfg config.JournalConfig) (journal.Ledger, error) {
	switch cfg.Type {
	case "csv":
		return journal.NewCSV(cfg.TradesFile)
	default:
		return journal.NewSQLite(cfg.DBPath)
	}
}

func newBroker(cfg config.BrokerConfig, dur config.Durations, loc *time.Location, log *zap.Logger) (broker.Broker, error) {
	switch cfg.Mode {
	case "mt5":
		return mt5.New(mt5.Config{
			BaseURL:         cfg.BaseURL,
			APIKey:          cfg.APIKey,
			Timeout:         dur.BrokerTimeout,
			HistoryLookback: dur.HistoryLookback,
			Location:        loc,
		}, log), nil
	case "paper":
		return paper.NewEngine(cfg.ContractSize, loc), nil
	default:
		return nil, fmt.Errorf("unknown broker mode %q", cfg.Mode)
	}
}

// Handler returns the control API bound to this app.
func (a *App) Handler() *server.Handler {
	return server.NewHandler(server.Deps{
		Store:      a.Store,
		Breaker:    a.Breaker,
		Pause:      a.Pause,
		Session:    a.Session,
		Recipients: a.Recipients,
		Broker:     a.Broker,
		Engine:     a.Engine,
		Reconciler: a.Reconciler,
		Runner:     a.Runner,
		Notifier:   a.Notifier,
		Gatherer:   a.Registry,
		Symbols:    a.Config.Trading.Symbols,
		Log:        a.Log,
	})
}

// Run starts the reconciler, the analysis scheduler and the control API,
// and blocks until ctx is done or one of them fails.
func (a *App) Run(ctx context.Context) error {
	dur := a.Config.Durations()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Reconciler.Run(gctx, dur.InitialDelay, dur.MonitorInterval)
	})
	if a.Runner != nil && dur.AnalysisInterval > 0 {
		g.Go(func() error { return a.Runner.Run(gctx, dur.AnalysisInterval) })
	} else {
		a.Log.Info("analysis scheduler disabled")
	}
	if a.Config.Server.Addr != "" {
		g.Go(func() error {
			return server.Serve(gctx, a.Config.Server.Addr, a.Handler().Router(), a.Log)
		})
	}

	a.Log.Info("engine started",
		zap.Strings("symbols", a.Config.Trading.Symbols),
		zap.String("broker", a.Config.Broker.Mode),
		zap.Duration("monitor_interval", dur.MonitorInterval),
	)
	err := g.Wait()
	if ctx.Err() != nil {
		// Shutdown was requested.
		return nil
	}
	return err
}

func (a *App) closeWith(err error) error {
	return multierr.Append(err, a.Close())
}

// Close releases the ledger.
func (a *App) Close() error {
	if a.Ledger == nil {
		return nil
	}
	return a.Ledger.Close()
}
