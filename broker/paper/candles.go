package paper

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/tradekeeper/market"
	"github.com/rustyeddy/tradekeeper/trade"
)

const maxCandles = 2000

// recordCandleLocked folds the tick mid price into the symbol's M1 series.
func (e *Engine) recordCandleLocked(p Tick) {
	mid := p.Mid()
	bucket := p.Time.Truncate(time.Minute)
	series := e.candles[p.Symbol]

	if n := len(series); n > 0 && series[n-1].Time.Equal(bucket) {
		c := &series[n-1]
		if mid > c.High {
			c.High = mid
		}
		if mid < c.Low {
			c.Low = mid
		}
		c.Close = mid
		c.Volume++
		return
	}

	series = append(series, market.Candle{Open: mid, High: mid, Low: mid, Close: mid, Volume: 1, Time: bucket})
	if len(series) > maxCandles {
		series = series[len(series)-maxCandles:]
	}
	e.candles[p.Symbol] = series
}

// LoadCandles replaces the M1 history of symbol, oldest first.
func (e *Engine) LoadCandles(symbol string, m1 []market.Candle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.candles[trade.NormalizeSymbol(symbol)] = append([]market.Candle(nil), m1...)
}

// FetchOHLCV serves candles built from ticks and loaded history.
func (e *Engine) FetchOHLCV(ctx context.Context, symbol string, tf market.Timeframe, count int) ([]market.Candle, error) {
	e.mu.Lock()
	m1 := append([]market.Candle(nil), e.candles[trade.NormalizeSymbol(symbol)]...)
	e.mu.Unlock()

	switch tf {
	case market.M1:
		return market.Last(m1, count), nil
	case market.M5, market.M30, market.H1:
		return market.Last(market.Aggregate(m1, tf.Duration()), count), nil
	}
	return nil, fmt.Errorf("paper: unsupported timeframe %q", tf)
}
