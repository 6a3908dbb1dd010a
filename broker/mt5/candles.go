package mt5

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/rustyeddy/tradekeeper/market"
)

// FetchOHLCV returns up to count candles for symbol, oldest first.
func (c *Client) FetchOHLCV(ctx context.Context, symbol string, tf market.Timeframe, count int) ([]market.Candle, error) {
	var wire []wireCandle
	err := c.getArray(ctx, "ohlcv", "/ohlcv", map[string]string{
		"symbol":    symbol,
		"timeframe": string(tf),
		"count":     strconv.Itoa(count),
	}, &wire)
	if err != nil {
		return nil, err
	}

	out := make([]market.Candle, 0, len(wire))
	for _, w := range wire {
		out = append(out, market.Candle{
			Open:   w.Open,
			High:   w.High,
			Low:    w.Low,
			Close:  w.Close,
			Volume: w.TickVolume,
			Time:   time.Time(w.Time),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}
