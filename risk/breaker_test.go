package risk

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func newTestBreaker(t *testing.T, loc *time.Location) (*Breaker, *clock, string) {
	t.Helper()
	c := &clock{t: time.Date(2025, 6, 30, 9, 0, 0, 0, time.UTC)}
	path := filepath.Join(t.TempDir(), "circuit_breaker_stats.json")
	return NewBreaker(path, 3, loc, WithClock(c.Now)), c, path
}

func TestBreakerTripsAtThreshold(t *testing.T) {
	b, _, _ := newTestBreaker(t, time.UTC)

	for i := 0; i < 2; i++ {
		require.NoError(t, b.RecordLoss())
		tripped, err := b.IsTripped()
		require.NoError(t, err)
		assert.False(t, tripped)
	}

	require.NoError(t, b.RecordLoss())
	tripped, err := b.IsTripped()
	require.NoError(t, err)
	assert.True(t, tripped)

	st, err := b.State()
	require.NoError(t, err)
	assert.Equal(t, Tripped, st)
}

func TestBreakerWinsDoNotReset(t *testing.T) {
	b, _, _ := newTestBreaker(t, time.UTC)

	require.NoError(t, b.RecordOutcome(-10))
	require.NoError(t, b.RecordOutcome(25))
	require.NoError(t, b.RecordOutcome(-5))
	require.NoError(t, b.RecordWin())
	require.NoError(t, b.RecordOutcome(-1))

	s, err := b.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, s.LossesToday)
	assert.Equal(t, 2, s.WinsToday)
	assert.InDelta(t, 9.0, s.RealizedToday, 1e-9)

	tripped, err := b.IsTripped()
	require.NoError(t, err)
	assert.True(t, tripped)
}

func TestBreakerRollover(t *testing.T) {
	b, c, path := newTestBreaker(t, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, b.RecordLoss())
	}
	tripped, _ := b.IsTripped()
	require.True(t, tripped)

	c.Set(time.Date(2025, 7, 1, 0, 1, 0, 0, time.UTC))
	tripped, err := b.IsTripped()
	require.NoError(t, err)
	assert.False(t, tripped)

	s, err := b.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{Date: "2025-07-01"}, s)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"2025-07-01"`)
}

func TestBreakerTradingDayUsesLocation(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	b, c, _ := newTestBreaker(t, loc)

	// 16:30Z is 23:30 local on the 30th.
	c.Set(time.Date(2025, 6, 30, 16, 30, 0, 0, time.UTC))
	for i := 0; i < 3; i++ {
		require.NoError(t, b.RecordLoss())
	}
	tripped, _ := b.IsTripped()
	require.True(t, tripped)

	// 17:30Z is already the 1st locally, though still the 30th in UTC.
	c.Set(time.Date(2025, 6, 30, 17, 30, 0, 0, time.UTC))
	tripped, err := b.IsTripped()
	require.NoError(t, err)
	assert.False(t, tripped)
}

func TestBreakerCorruptStatsFailsClosed(t *testing.T) {
	b, _, path := newTestBreaker(t, time.UTC)
	require.NoError(t, os.WriteFile(path, []byte("{{"), 0o644))

	tripped, err := b.IsTripped()
	assert.Error(t, err)
	assert.True(t, tripped)
	assert.Error(t, b.RecordLoss())
}

func TestBreakerCheck(t *testing.T) {
	b, _, path := newTestBreaker(t, time.UTC)
	for i := 0; i < b.MaxLosses(); i++ {
		require.NoError(t, b.RecordLoss())
	}

	stats, tripped, err := b.Check()
	require.NoError(t, err)
	assert.True(t, tripped)
	assert.Equal(t, b.MaxLosses(), stats.LossesToday)

	require.NoError(t, os.WriteFile(path, []byte("{{"), 0o644))
	stats, tripped, err = b.Check()
	assert.Error(t, err)
	assert.True(t, tripped)
	assert.Zero(t, stats.LossesToday)
}

func TestBreakerConcurrentLosses(t *testing.T) {
	b, _, _ := newTestBreaker(t, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, b.RecordLoss())
		}()
	}
	wg.Wait()

	s, err := b.Stats()
	require.NoError(t, err)
	assert.Equal(t, 20, s.LossesToday)
}

func TestNewBreakerDefaults(t *testing.T) {
	b := NewBreaker(filepath.Join(t.TempDir(), "s.json"), 0, nil)
	assert.Equal(t, DefaultMaxLossesPerDay, b.MaxLosses())
}

func TestSameTradingDay(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	a := time.Date(2025, 6, 30, 16, 59, 0, 0, time.UTC)
	b := time.Date(2025, 6, 30, 17, 0, 0, 0, time.UTC)
	assert.False(t, SameTradingDay(loc, a, b))
	assert.True(t, SameTradingDay(time.UTC, a, b))
	assert.Equal(t, "2025-07-01", TradingDate(loc, b))
}
