// Package filter implements the hard signal-quality filter that decides
// whether the most recent candle is a strong enough breakout to analyze.
package filter

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rustyeddy/tradekeeper/indicators"
	"github.com/rustyeddy/tradekeeper/market"
	"go.uber.org/zap"
)

// Reason codes reported when a candle series is rejected.
const (
	ReasonInsufficientData  = "insufficient_data"
	ReasonRangeLtMultiplier = "range_lt_multiplier"
	ReasonBodyLtRatio       = "body_lt_ratio"
	ReasonNoSwingBreak      = "no_swing_break"
)

// ErrInsufficientData is returned by Evaluate when the series is too short.
var ErrInsufficientData = errors.New(ReasonInsufficientData)

// CandleSource fetches the most recent count candles, oldest first.
type CandleSource interface {
	FetchOHLCV(ctx context.Context, symbol string, tf market.Timeframe, count int) ([]market.Candle, error)
}

type Params struct {
	Candles         int     `json:"candles" yaml:"candles"`
	FallbackCandles int     `json:"fallback_candles" yaml:"fallback_candles"`
	ATRPeriod       int     `json:"atr_period" yaml:"atr_period"`
	RangeMultiplier float64 `json:"range_multiplier" yaml:"range_multiplier"`
	BodyRatio       float64 `json:"body_ratio" yaml:"body_ratio"`
	SwingLookback   int     `json:"swing_lookback" yaml:"swing_lookback"`
}

func DefaultParams() Params {
	return Params{
		Candles:         60,
		FallbackCandles: 300,
		ATRPeriod:       14,
		RangeMultiplier: 1.5,
		BodyRatio:       0.7,
		SwingLookback:   8,
	}
}

// Validate checks parameters for internal consistency.
func (p Params) Validate() error {
	if p.ATRPeriod <= 0 {
		return fmt.Errorf("atr_period must be positive")
	}
	if p.SwingLookback <= 0 {
		return fmt.Errorf("swing_lookback must be positive")
	}
	if p.Candles <= p.ATRPeriod || p.Candles <= p.SwingLookback {
		return fmt.Errorf("candles must exceed atr_period and swing_lookback")
	}
	if p.RangeMultiplier <= 0 {
		return fmt.Errorf("range_multiplier must be positive")
	}
	if p.BodyRatio <= 0 || p.BodyRatio > 1 {
		return fmt.Errorf("body_ratio must be in (0, 1]")
	}
	return nil
}

// Result describes the last candle of the evaluated series.
type Result struct {
	Pass         bool    `json:"pass"`
	Reason       string  `json:"reason,omitempty"`
	ATR          float64 `json:"atr"`
	Range        float64 `json:"range"`
	Body         float64 `json:"body"`
	WickATRRatio float64 `json:"wick_atr_ratio,omitempty"`
	Fallback     bool    `json:"fallback,omitempty"`
}

// Evaluate runs the three checks on the final candle of candles. It needs at
// least p.Candles candles and only looks at the most recent p.Candles.
func Evaluate(candles []market.Candle, p Params) (Result, error) {
	if len(candles) < p.Candles {
		return Result{Reason: ReasonInsufficientData}, ErrInsufficientData
	}
	candles = market.Last(candles, p.Candles)

	atr, err := indicators.ATR(candles, p.ATRPeriod)
	if err != nil {
		return Result{Reason: ReasonInsufficientData}, fmt.Errorf("%w: %v", ErrInsufficientData, err)
	}

	last := candles[len(candles)-1]
	res := Result{ATR: atr, Range: last.Range(), Body: last.Body()}

	// A flat series has no volatility to break out of.
	if atr <= 0 || math.IsNaN(atr) || res.Range < p.RangeMultiplier*atr {
		res.Reason = ReasonRangeLtMultiplier
		return res, nil
	}
	if res.Body < p.BodyRatio*res.Range {
		res.Reason = ReasonBodyLtRatio
		return res, nil
	}

	prior := candles[len(candles)-1-p.SwingLookback : len(candles)-1]
	swingHigh, swingLow := prior[0].High, prior[0].Low
	for _, c := range prior[1:] {
		swingHigh = math.Max(swingHigh, c.High)
		swingLow = math.Min(swingLow, c.Low)
	}
	if !(last.High > swingHigh || last.Low < swingLow) {
		res.Reason = ReasonNoSwingBreak
		return res, nil
	}

	res.Pass = true
	res.WickATRRatio = res.Range / atr
	return res, nil
}

// HardFilter fetches candles for a symbol and evaluates them.
type HardFilter struct {
	src    CandleSource
	params Params
	log    *zap.Logger
}

func New(src CandleSource, params Params, log *zap.Logger) *HardFilter {
	if log == nil {
		log = zap.NewNop()
	}
	return &HardFilter{src: src, params: params, log: log.Named("filter")}
}

func (f *HardFilter) Params() Params {
	return f.params
}

// Check evaluates the latest M5 candles of symbol. When fewer than the
// required candles are available and allowFallback is set, M1 candles are
// aggregated into M5 instead. A short series is reported as a failed
// Result with ReasonInsufficientData, not as an error. Errors are fetch
// failures.
func (f *HardFilter) Check(ctx context.Context, symbol string, allowFallback bool) (Result, error) {
	candles, err := f.src.FetchOHLCV(ctx, symbol, market.M5, f.params.Candles)
	if err != nil {
		return Result{}, fmt.Errorf("fetch %s m5: %w", symbol, err)
	}

	fallback := false
	if len(candles) < f.params.Candles && allowFallback {
		f.log.Info("m5 series short, aggregating m1",
			zap.String("symbol", symbol), zap.Int("have", len(candles)))
		m1, err := f.src.FetchOHLCV(ctx, symbol, market.M1, f.params.FallbackCandles)
		if err != nil {
			return Result{}, fmt.Errorf("fetch %s m1: %w", symbol, err)
		}
		candles = market.Last(market.AggregateM1toM5(m1), f.params.Candles)
		fallback = true
	}

	res, err := Evaluate(candles, f.params)
	res.Fallback = fallback
	if errors.Is(err, ErrInsufficientData) {
		f.log.Warn("insufficient candles", zap.String("symbol", symbol), zap.Int("have", len(candles)))
		return res, nil
	}
	if err != nil {
		return res, err
	}

	f.log.Debug("hard filter evaluated",
		zap.String("symbol", symbol),
		zap.Bool("pass", res.Pass),
		zap.String("reason", res.Reason),
		zap.Float64("atr", res.ATR),
		zap.Float64("range", res.Range),
		zap.Float64("body", res.Body))
	return res, nil
}
