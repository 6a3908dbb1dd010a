package market

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Candle represents OHLC (Open, High, Low, Close) candlestick data
type Candle struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Time   time.Time
}

// Range is the high-low extent of the candle.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Body is the absolute open-close distance.
func (c Candle) Body() float64 {
	return math.Abs(c.Close - c.Open)
}

// Timeframe names a candle resolution the way the bridge expects it.
type Timeframe string

const (
	M1  Timeframe = "m1"
	M5  Timeframe = "m5"
	M30 Timeframe = "m30"
	H1  Timeframe = "h1"
)

func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case M1:
		return time.Minute
	case M5:
		return 5 * time.Minute
	case M30:
		return 30 * time.Minute
	case H1:
		return time.Hour
	}
	return 0
}

func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	if tf.Duration() == 0 {
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
	return tf, nil
}
