package indicators

import (
	"fmt"

	"github.com/markcheno/go-talib"
	"github.com/rustyeddy/tradekeeper/market"
)

// ATR calculates the Average True Range for the given period and returns
// the value at the most recent candle. The first ATR is the simple mean of
// the first period true ranges; later values use Wilder's smoothing.
// Returns an error if there aren't enough candles for the period.
func ATR(candles []market.Candle, period int) (float64, error) {
	series, err := ATRSeries(candles, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// ATRSeries returns the ATR aligned to candles. Values before index period
// are zero.
func ATRSeries(candles []market.Candle, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(candles) < period+1 {
		return nil, fmt.Errorf("not enough candles: need %d, got %d", period+1, len(candles))
	}

	highs, lows, closes := HLC(candles)
	return talib.Atr(highs, lows, closes, period), nil
}

// HLC splits candles into the parallel slices talib expects.
func HLC(candles []market.Candle) (highs, lows, closes []float64) {
	highs = make([]float64, len(candles))
	lows = make([]float64, len(candles))
	closes = make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}
	return highs, lows, closes
}

// TrueRange of current given the previous candle.
func TrueRange(current, previous market.Candle) float64 {
	tr := talib.TRange(
		[]float64{previous.High, current.High},
		[]float64{previous.Low, current.Low},
		[]float64{previous.Close, current.Close},
	)
	return tr[1]
}
