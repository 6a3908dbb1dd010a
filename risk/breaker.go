package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/tradekeeper/internal/fsutil"
	"go.uber.org/zap"
)

const DefaultMaxLossesPerDay = 3

type State string

const (
	Armed   State = "ARMED"
	Tripped State = "TRIPPED"
)

// Stats is the persisted per-day breaker document.
type Stats struct {
	Date          string  `json:"date"`
	LossesToday   int     `json:"losses_today"`
	WinsToday     int     `json:"wins_today"`
	RealizedToday float64 `json:"realized_today"`
}

// Breaker counts losing closures per trading day and trips once the count
// reaches the limit. It only re-arms when the trading day rolls over; wins
// do not reset the counter.
type Breaker struct {
	mu        sync.Mutex
	path      string
	maxLosses int
	loc       *time.Location
	now       func() time.Time
	log       *zap.Logger
}

type BreakerOption func(*Breaker)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) { b.now = now }
}

func WithLogger(log *zap.Logger) BreakerOption {
	return func(b *Breaker) { b.log = log.Named("breaker") }
}

// NewBreaker returns a breaker persisting to path. Trading days are
// measured in loc.
func NewBreaker(path string, maxLosses int, loc *time.Location, opts ...BreakerOption) *Breaker {
	if maxLosses <= 0 {
		maxLosses = DefaultMaxLossesPerDay
	}
	if loc == nil {
		loc = time.UTC
	}
	b := &Breaker{
		path:      path,
		maxLosses: maxLosses,
		loc:       loc,
		now:       time.Now,
		log:       zap.NewNop(),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Breaker) MaxLosses() int { return b.maxLosses }

// load reads the stats and rolls them to today. rolled reports whether a
// new day started. Caller holds mu.
func (b *Breaker) load() (s Stats, rolled bool, err error) {
	found, err := fsutil.ReadJSON(b.path, &s)
	if err != nil {
		return Stats{}, false, fmt.Errorf("breaker stats: %w", err)
	}
	today := TradingDate(b.loc, b.now())
	if !found || s.Date != today {
		if found {
			b.log.Info("new trading day, breaker re-armed",
				zap.String("previous", s.Date), zap.String("today", today))
		}
		return Stats{Date: today}, true, nil
	}
	return s, false, nil
}

func (b *Breaker) update(fn func(*Stats)) (Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, _, err := b.load()
	if err != nil {
		return Stats{}, err
	}
	fn(&s)
	if err := fsutil.WriteJSON(b.path, s); err != nil {
		return Stats{}, fmt.Errorf("save breaker stats: %w", err)
	}
	return s, nil
}

// RecordLoss adds one loss to today's counter.
func (b *Breaker) RecordLoss() error {
	return b.record(true, 0)
}

// RecordWin notes a winning closure. It never lowers the loss counter.
func (b *Breaker) RecordWin() error {
	return b.record(false, 0)
}

// RecordOutcome classifies profit by sign and adds it to today's realized
// total. Negative profit is a loss; zero and positive are wins.
func (b *Breaker) RecordOutcome(profit float64) error {
	return b.record(profit < 0, profit)
}

func (b *Breaker) record(loss bool, profit float64) error {
	s, err := b.update(func(s *Stats) {
		if loss {
			s.LossesToday++
		} else {
			s.WinsToday++
		}
		s.RealizedToday += profit
	})
	if err != nil {
		return err
	}
	if loss {
		b.log.Info("loss recorded", zap.Int("losses_today", s.LossesToday), zap.Int("max", b.maxLosses))
		if s.LossesToday == b.maxLosses {
			b.log.Warn("circuit breaker tripped", zap.Int("losses_today", s.LossesToday))
		}
	}
	return nil
}

// Stats returns today's counters, rolling them over and persisting the
// reset when the stored day is stale.
func (b *Breaker) Stats() (Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, rolled, err := b.load()
	if err != nil {
		return Stats{}, err
	}
	if rolled {
		if err := fsutil.WriteJSON(b.path, s); err != nil {
			return Stats{}, fmt.Errorf("save breaker stats: %w", err)
		}
	}
	return s, nil
}

// Check reads today's counters once and reports whether they trip the
// breaker. Unreadable stats count as tripped.
func (b *Breaker) Check() (Stats, bool, error) {
	s, err := b.Stats()
	if err != nil {
		return Stats{}, true, err
	}
	return s, s.LossesToday >= b.maxLosses, nil
}

// State reports ARMED or TRIPPED for today.
func (b *Breaker) State() (State, error) {
	_, tripped, err := b.Check()
	if tripped {
		return Tripped, err
	}
	return Armed, nil
}

// IsTripped reports whether new trades are blocked. Unreadable stats count
// as tripped.
func (b *Breaker) IsTripped() (bool, error) {
	st, err := b.State()
	return st == Tripped, err
}
