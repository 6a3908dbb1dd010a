package store

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rustyeddy/tradekeeper/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	return s
}

func pendingRecord(symbol string, ticket trade.Ticket) trade.Record {
	return trade.Record{
		Ticket:     ticket,
		Symbol:     symbol,
		Type:       trade.BuyLimit,
		Price:      2300.5,
		StopLoss:   2290,
		TakeProfit: 2330,
		Volume:     0.01,
		Status:     trade.StatusFor(trade.BuyLimit),
		OpenedAt:   time.Date(2025, 6, 30, 8, 0, 0, 0, time.UTC),
	}
}

func TestGetMissingIsNil(t *testing.T) {
	s := newTestStore(t)
	rec, err := s.Get("XAUUSD")
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create(pendingRecord("xauusd", 42)))

	rec, err := s.Get("XAUUSD")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, trade.Ticket(42), rec.Ticket)
	assert.Equal(t, "XAUUSD", rec.Symbol)
	assert.Equal(t, trade.Pending, rec.Status)

	_, err = os.Stat(filepath.Join(s.Root(), "pending", "trade_XAUUSD.json"))
	assert.NoError(t, err)
}

func TestCreateConflict(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create(pendingRecord("EURUSD", 1)))

	err := s.Create(pendingRecord("EURUSD", 2))
	assert.ErrorIs(t, err, ErrStateConflict)

	rec, err := s.Get("EURUSD")
	require.NoError(t, err)
	assert.Equal(t, trade.Ticket(1), rec.Ticket, "existing record must not be overwritten")
}

func TestPromote(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create(pendingRecord("EURUSD", 7)))

	rec, err := s.Promote("EURUSD")
	require.NoError(t, err)
	assert.Equal(t, trade.Live, rec.Status)
	assert.Equal(t, trade.Ticket(7), rec.Ticket)

	pending, err := s.List(trade.Pending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	live, err := s.List(trade.Live)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, trade.Ticket(7), live[0].Ticket)

	_, err = s.Promote("EURUSD")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLiveWinsOverStalePending(t *testing.T) {
	s := newTestStore(t)
	rec := pendingRecord("GBPUSD", 9)
	require.NoError(t, s.Put(rec))
	rec.Status = trade.Live
	require.NoError(t, s.Put(rec))

	got, err := s.Get("GBPUSD")
	require.NoError(t, err)
	assert.Equal(t, trade.Live, got.Status)
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create(pendingRecord("EURUSD", 3)))
	require.NoError(t, s.Remove("EURUSD"))
	require.NoError(t, s.Remove("EURUSD"))

	rec, err := s.Get("EURUSD")
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestPutRejectsUnknownStatus(t *testing.T) {
	s := newTestStore(t)
	rec := pendingRecord("EURUSD", 3)
	rec.Status = ""
	assert.Error(t, s.Put(rec))
}

func TestListAndSymbols(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create(pendingRecord("USDJPY", 1)))
	live := pendingRecord("EURUSD", 2)
	live.Type = trade.MarketBuy
	live.Status = trade.Live
	require.NoError(t, s.Create(live))

	// Stray files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "live", "notes.txt"), []byte("x"), 0o644))

	syms, err := s.Symbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"EURUSD", "USDJPY"}, syms)
}

func TestListReportsCorruptFiles(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create(pendingRecord("USDJPY", 1)))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "pending", "trade_BAD.json"), []byte("{"), 0o644))

	recs, err := s.List(trade.Pending)
	assert.Error(t, err)
	assert.Len(t, recs, 1)
}

func TestAnalysisJournal(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.PutAnalysis("EURUSD", 1, "first thesis"))
	require.NoError(t, s.PutAnalysis("EURUSD", 2, "second thesis"))

	text, ok, err := s.Analysis("EURUSD", 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "first thesis", text)

	text, err = s.TakeAnalysis("EURUSD", 1)
	require.NoError(t, err)
	assert.Equal(t, "first thesis", text)

	path := filepath.Join(s.Root(), "journal", "journal_data_EURUSD.json")
	_, err = os.Stat(path)
	require.NoError(t, err, "file stays while entries remain")

	text, err = s.TakeAnalysis("EURUSD", 2)
	require.NoError(t, err)
	assert.Equal(t, "second thesis", text)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "empty journal file is removed")

	text, err = s.TakeAnalysis("EURUSD", 2)
	assert.NoError(t, err)
	assert.Empty(t, text)
}

func TestLockSerializesSymbol(t *testing.T) {
	s := newTestStore(t)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock("eurusd")
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)

	// Different symbols do not contend.
	u1 := s.Lock("EURUSD")
	u2 := s.Lock("USDJPY")
	u2()
	u1()
}
