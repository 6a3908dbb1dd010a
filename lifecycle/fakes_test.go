package lifecycle

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rustyeddy/tradekeeper/broker"
	"github.com/rustyeddy/tradekeeper/journal"
	"github.com/rustyeddy/tradekeeper/notify"
	"github.com/rustyeddy/tradekeeper/risk"
	"github.com/rustyeddy/tradekeeper/store"
	"github.com/rustyeddy/tradekeeper/trade"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBroker struct {
	mu         sync.Mutex
	positions  []broker.Position
	listErr    error
	deals      map[trade.Ticket]*broker.Deal
	dealErr    error
	openResult broker.OrderResult
	openErr    error
	cancelErr  error
	closeErr   error
	calls      []string
	// afterList runs once, after the next position list is taken and
	// before it is returned.
	afterList func()
	// afterOpen runs inside OpenOrder once the order is accepted.
	afterOpen func()
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{deals: map[trade.Ticket]*broker.Deal{}}
}

func (f *fakeBroker) call(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeBroker) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBroker) OpenOrder(_ context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	f.call("open")
	if f.afterOpen != nil && f.openErr == nil {
		f.afterOpen()
	}
	return f.openResult, f.openErr
}

func (f *fakeBroker) CancelPendingOrder(context.Context, trade.Ticket) error {
	f.call("cancel")
	return f.cancelErr
}

func (f *fakeBroker) ClosePosition(context.Context, trade.Ticket) error {
	f.call("close")
	return f.closeErr
}

func (f *fakeBroker) ActivePositions(context.Context) ([]broker.Position, error) {
	f.mu.Lock()
	f.calls = append(f.calls, "positions")
	out := append([]broker.Position(nil), f.positions...)
	err := f.listErr
	hook := f.afterList
	f.afterList = nil
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, err
}

func (f *fakeBroker) setPositions(ps ...broker.Position) {
	f.mu.Lock()
	f.positions = ps
	f.mu.Unlock()
}

func (f *fakeBroker) ClosingDeal(_ context.Context, tk trade.Ticket) (*broker.Deal, error) {
	f.call("deal")
	if f.dealErr != nil {
		return nil, f.dealErr
	}
	return f.deals[tk], nil
}

func (f *fakeBroker) TodaysProfit(context.Context) (float64, error) { return 0, nil }

// memLedger is an in-memory journal.Ledger.
type memLedger struct {
	mu      sync.Mutex
	entries map[trade.Ticket]journal.Entry
	failFor string
}

func newMemLedger() *memLedger {
	return &memLedger{entries: map[trade.Ticket]journal.Entry{}}
}

func (l *memLedger) Record(_ context.Context, e journal.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.Symbol == l.failFor {
		return errors.New("ledger unavailable")
	}
	if _, ok := l.entries[e.Ticket]; ok {
		return journal.ErrDuplicate
	}
	l.entries[e.Ticket] = e
	return nil
}

func (l *memLedger) Close() error { return nil }

func (l *memLedger) get(tk trade.Ticket) (journal.Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[tk]
	return e, ok
}

type fixture struct {
	broker  *fakeBroker
	store   *store.Store
	ledger  *memLedger
	breaker *risk.Breaker
	notes   *notify.Recorder
	arch    *Archiver
	rec     *Reconciler
	engine  *Engine
}

var fixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "state"))
	require.NoError(t, err)

	f := &fixture{
		broker: newFakeBroker(),
		store:  st,
		ledger: newMemLedger(),
		breaker: risk.NewBreaker(filepath.Join(dir, "circuit_breaker_stats.json"), 3, time.UTC,
			risk.WithClock(func() time.Time { return fixedNow })),
		notes: &notify.Recorder{},
	}
	log := zap.NewNop()
	f.arch = NewArchiver(st, f.ledger, f.breaker, log, nil)
	f.arch.now = func() time.Time { return fixedNow }
	f.rec = NewReconciler(f.broker, st, f.arch, f.notes, log, nil)
	f.engine = NewEngine(f.broker, st, f.arch, f.notes, EngineConfig{
		Supported:     []string{"XAUUSD", "EURUSD"},
		DefaultVolume: 0.01,
		CommentTag:    "tradekeeper",
	}, log, nil)
	f.engine.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) seed(t *testing.T, rec trade.Record, analysis string) {
	t.Helper()
	require.NoError(t, f.store.Create(rec))
	require.NoError(t, f.store.PutAnalysis(rec.Symbol, rec.Ticket, analysis))
}

func liveRecord(symbol string, tk trade.Ticket) trade.Record {
	return trade.Record{
		Ticket: tk, Symbol: symbol, Type: trade.MarketBuy, Price: 2000,
		StopLoss: 1990, TakeProfit: 2020, Volume: 0.01, Status: trade.Live, OpenedAt: fixedNow.Add(-time.Hour),
	}
}

func pendingRecord(symbol string, tk trade.Ticket) trade.Record {
	return trade.Record{
		Ticket: tk, Symbol: symbol, Type: trade.BuyLimit, Price: 1995,
		StopLoss: 1985, TakeProfit: 2015, Volume: 0.01, Status: trade.Pending, OpenedAt: fixedNow.Add(-time.Hour),
	}
}

func journalEntryFor(rec trade.Record) journal.Entry {
	return journal.Entry{Ticket: rec.Ticket, Symbol: rec.Symbol, CloseReason: "earlier"}
}
