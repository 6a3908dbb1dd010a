package paper

import (
	"context"
	"testing"
	"time"

	"github.com/rustyeddy/tradekeeper/broker"
	"github.com/rustyeddy/tradekeeper/market"
	"github.com/rustyeddy/tradekeeper/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	e := NewEngine(100, time.UTC)
	e.now = func() time.Time { return t0.Add(time.Hour) }
	return e
}

func TestMarketOrderNeedsPrice(t *testing.T) {
	e := newTestEngine()
	_, err := e.OpenOrder(context.Background(), broker.OrderRequest{Symbol: "XAUUSD", Type: trade.MarketBuy, Volume: 0.01})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestMarketBuyHitsTakeProfit(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()
	e.SetPrice(Tick{Symbol: "XAUUSD", Bid: 1999.5, Ask: 2000, Time: t0})

	res, err := e.OpenOrder(ctx, broker.OrderRequest{
		Symbol: "xauusd", Type: trade.MarketBuy, Volume: 0.1, StopLoss: 1990, TakeProfit: 2010,
	})
	require.NoError(t, err)
	tk, ok := res.TicketID()
	require.True(t, ok)

	ps, err := e.ActivePositions(ctx)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, tk, ps[0].Ticket)
	assert.Equal(t, 2000.0, ps[0].PriceOpen)

	e.SetPrice(Tick{Symbol: "XAUUSD", Bid: 2010.2, Ask: 2010.7, Time: t0.Add(time.Minute)})

	ps, _ = e.ActivePositions(ctx)
	assert.Empty(t, ps)

	d, err := e.ClosingDeal(ctx, tk)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, broker.ReasonTP, d.Reason)
	assert.Equal(t, broker.CloseTakeProfit, d.Reason.CloseReason())
	assert.InDelta(t, 100.0, d.Profit, 1e-9)

	pl, err := e.TodaysProfit(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, pl, 1e-9)
}

func TestSellStopLoss(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()
	e.SetPrice(Tick{Symbol: "EURUSD", Bid: 1.1000, Ask: 1.1002, Time: t0})

	res, err := e.OpenOrder(ctx, broker.OrderRequest{
		Symbol: "EURUSD", Type: trade.MarketSell, Volume: 1, StopLoss: 1.1050, TakeProfit: 1.0900,
	})
	require.NoError(t, err)

	e.SetPrice(Tick{Symbol: "EURUSD", Bid: 1.1049, Ask: 1.1051, Time: t0.Add(time.Minute)})
	d, _ := e.ClosingDeal(ctx, res.Order)
	require.NotNil(t, d)
	assert.Equal(t, broker.ReasonSL, d.Reason)
	assert.Less(t, d.Profit, 0.0)
}

func TestPendingOrderFills(t *testing.T) {
	tests := []struct {
		name  string
		typ   trade.OrderType
		price float64
		tick  Tick
	}{
		{"buy limit", trade.BuyLimit, 1995, Tick{Bid: 1994.5, Ask: 1995}},
		{"sell limit", trade.SellLimit, 2005, Tick{Bid: 2005, Ask: 2005.5}},
		{"buy stop", trade.BuyStop, 2005, Tick{Bid: 2005, Ask: 2005.5}},
		{"sell stop", trade.SellStop, 1995, Tick{Bid: 1994.5, Ask: 1995}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			e := newTestEngine()
			e.SetPrice(Tick{Symbol: "XAUUSD", Bid: 1999.5, Ask: 2000, Time: t0})

			res, err := e.OpenOrder(ctx, broker.OrderRequest{Symbol: "XAUUSD", Type: tt.typ, Price: tt.price, Volume: 0.01})
			require.NoError(t, err)
			assert.Zero(t, res.Deal)

			ps, _ := e.ActivePositions(ctx)
			assert.Empty(t, ps)

			tick := tt.tick
			tick.Symbol = "XAUUSD"
			tick.Time = t0.Add(time.Minute)
			e.SetPrice(tick)

			ps, _ = e.ActivePositions(ctx)
			require.Len(t, ps, 1)
			assert.Equal(t, res.Order, ps[0].Ticket)
		})
	}
}

func TestCancelAndClose(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()
	e.SetPrice(Tick{Symbol: "XAUUSD", Bid: 1999.5, Ask: 2000, Time: t0})

	pending, err := e.OpenOrder(ctx, broker.OrderRequest{Symbol: "XAUUSD", Type: trade.BuyLimit, Price: 1900, Volume: 0.01})
	require.NoError(t, err)
	filled, err := e.OpenOrder(ctx, broker.OrderRequest{Symbol: "XAUUSD", Type: trade.MarketBuy, Volume: 0.01})
	require.NoError(t, err)

	assert.True(t, broker.IsInvalidRequest(e.ClosePosition(ctx, pending.Order)))
	require.NoError(t, e.CancelPendingOrder(ctx, pending.Order))
	assert.True(t, broker.IsNotFound(e.CancelPendingOrder(ctx, pending.Order)))

	assert.True(t, broker.IsInvalidRequest(e.CancelPendingOrder(ctx, filled.Order)))
	require.NoError(t, e.ClosePosition(ctx, filled.Order))
	assert.True(t, broker.IsNotFound(e.ClosePosition(ctx, filled.Order)))

	d, _ := e.ClosingDeal(ctx, filled.Order)
	require.NotNil(t, d)
	assert.Equal(t, broker.CloseExternal, d.Reason.CloseReason())
}

func TestFetchOHLCVFromTicks(t *testing.T) {
	e := newTestEngine()
	for i, mid := range []float64{10, 12, 9, 11} {
		e.SetPrice(Tick{Symbol: "XAUUSD", Bid: mid, Ask: mid, Time: t0.Add(time.Duration(i) * 20 * time.Second)})
	}

	cs, err := e.FetchOHLCV(context.Background(), "XAUUSD", market.M1, 10)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, market.Candle{Open: 10, High: 12, Low: 9, Close: 9, Volume: 3, Time: t0}, cs[0])
	assert.Equal(t, 11.0, cs[1].Close)

	m5, err := e.FetchOHLCV(context.Background(), "XAUUSD", market.M5, 10)
	require.NoError(t, err)
	require.Len(t, m5, 1)
	assert.Equal(t, 12.0, m5[0].High)
	assert.Equal(t, 11.0, m5[0].Close)
}
