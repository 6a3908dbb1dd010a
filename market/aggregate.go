package market

import "time"

// Aggregate folds candles into buckets of width d aligned to the epoch.
// Input must be sorted by time. The first candle of a bucket gives the
// open, the last gives the close.
func Aggregate(in []Candle, d time.Duration) []Candle {
	if d <= 0 || len(in) == 0 {
		return nil
	}

	out := make([]Candle, 0, len(in))
	var (
		cur    Candle
		bucket time.Time
		open   bool
	)
	for _, c := range in {
		b := c.Time.Truncate(d)
		if !open || !b.Equal(bucket) {
			if open {
				out = append(out, cur)
			}
			bucket = b
			cur = Candle{Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume, Time: b}
			open = true
			continue
		}
		if c.High > cur.High {
			cur.High = c.High
		}
		if c.Low < cur.Low {
			cur.Low = c.Low
		}
		cur.Close = c.Close
		cur.Volume += c.Volume
	}
	if open {
		out = append(out, cur)
	}
	return out
}

// AggregateM1toM5 is Aggregate with a five minute bucket.
func AggregateM1toM5(in []Candle) []Candle {
	return Aggregate(in, M5.Duration())
}

// Last returns the trailing n candles, or all of them when fewer exist.
func Last(in []Candle, n int) []Candle {
	if n <= 0 || len(in) <= n {
		return in
	}
	return in[len(in)-n:]
}
