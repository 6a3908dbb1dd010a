// Package paper is an in-memory broker that fills orders against prices
// fed to it with SetPrice. It backs the "paper" broker mode.
package paper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/tradekeeper/broker"
	"github.com/rustyeddy/tradekeeper/market"
	"github.com/rustyeddy/tradekeeper/trade"
	"github.com/shopspring/decimal"
)

// DefaultContractSize converts one lot into units of the base asset.
const DefaultContractSize = 100_000

var ErrNoPrice = errors.New("no price for symbol")

type Tick struct {
	Symbol string
	Bid    float64
	Ask    float64
	Time   time.Time
}

func (t Tick) Mid() float64 { return (t.Bid + t.Ask) / 2 }

type order struct {
	ticket trade.Ticket
	req    broker.OrderRequest
	placed time.Time
}

type position struct {
	ticket   trade.Ticket
	symbol   string
	buy      bool
	volume   float64
	entry    float64
	sl, tp   float64
	openedAt time.Time
}

// triggerStopLoss reports whether mark has reached the stop.
func (p *position) triggerStopLoss(mark float64) bool {
	if p.sl == 0 {
		return false
	}
	if p.buy {
		return mark <= p.sl
	}
	return mark >= p.sl
}

func (p *position) triggerTakeProfit(mark float64) bool {
	if p.tp == 0 {
		return false
	}
	if p.buy {
		return mark >= p.tp
	}
	return mark <= p.tp
}

type Engine struct {
	mu           sync.Mutex
	ticks        map[string]Tick
	candles      map[string][]market.Candle
	orders       map[trade.Ticket]*order
	positions    map[trade.Ticket]*position
	deals        []broker.Deal
	nextTicket   int64
	contractSize float64
	loc          *time.Location
	now          func() time.Time
}

var _ broker.Broker = (*Engine)(nil)

func NewEngine(contractSize float64, loc *time.Location) *Engine {
	if contractSize <= 0 {
		contractSize = DefaultContractSize
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		ticks:        map[string]Tick{},
		candles:      map[string][]market.Candle{},
		orders:       map[trade.Ticket]*order{},
		positions:    map[trade.Ticket]*position{},
		nextTicket:   1000,
		contractSize: contractSize,
		loc:          loc,
		now:          time.Now,
	}
}

func (e *Engine) newTicket() trade.Ticket {
	e.nextTicket++
	return trade.Ticket(e.nextTicket)
}

func (e *Engine) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return e.now()
	}
	return t
}

func (e *Engine) OpenOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	req.Symbol = trade.NormalizeSymbol(req.Symbol)
	if !req.Type.Valid() {
		return broker.OrderResult{}, &broker.RequestError{Op: "open order", Kind: broker.KindInvalidRequest, Msg: "unknown order type " + string(req.Type)}
	}
	if req.Volume <= 0 {
		return broker.OrderResult{}, &broker.RequestError{Op: "open order", Kind: broker.KindInvalidRequest, Msg: "volume must be positive"}
	}

	if req.Type.IsPending() {
		if req.Price <= 0 {
			return broker.OrderResult{}, &broker.RequestError{Op: "open order", Kind: broker.KindInvalidRequest, Msg: "pending order needs a price"}
		}
		tk := e.newTicket()
		e.orders[tk] = &order{ticket: tk, req: req, placed: e.now()}
		// A pending order priced through the market fills on the next tick.
		return broker.OrderResult{Order: tk}, nil
	}

	p, ok := e.ticks[req.Symbol]
	if !ok {
		return broker.OrderResult{}, &broker.RequestError{Op: "open order", Kind: broker.KindRejected, Err: fmt.Errorf("%w: %s", ErrNoPrice, req.Symbol)}
	}
	tk := e.newTicket()
	deal := e.fillLocked(tk, req, p)
	return broker.OrderResult{Order: tk, Deal: deal}, nil
}

// fillLocked opens a position for ticket at the current price and returns
// the entry deal ticket.
func (e *Engine) fillLocked(tk trade.Ticket, req broker.OrderRequest, p Tick) trade.Ticket {
	buy := req.Type.IsBuy()
	price := p.Bid
	if buy {
		price = p.Ask
	}
	at := e.stamp(p.Time)
	e.positions[tk] = &position{
		ticket:   tk,
		symbol:   req.Symbol,
		buy:      buy,
		volume:   req.Volume,
		entry:    price,
		sl:       req.StopLoss,
		tp:       req.TakeProfit,
		openedAt: at,
	}
	dt := e.newTicket()
	e.deals = append(e.deals, broker.Deal{
		Ticket:     dt,
		PositionID: tk,
		Symbol:     req.Symbol,
		Entry:      broker.EntryIn,
		Reason:     broker.ReasonExpert,
		Price:      price,
		Volume:     req.Volume,
		Time:       at,
	})
	return dt
}

func (e *Engine) closeLocked(pos *position, mark float64, at time.Time, reason broker.DealReason) broker.Deal {
	dir := 1.0
	if !pos.buy {
		dir = -1
	}
	profit := decimal.NewFromFloat(mark).
		Sub(decimal.NewFromFloat(pos.entry)).
		Mul(decimal.NewFromFloat(dir * pos.volume * e.contractSize)).
		Round(2)
	pl, _ := profit.Float64()

	d := broker.Deal{
		Ticket:     e.newTicket(),
		PositionID: pos.ticket,
		Symbol:     pos.symbol,
		Entry:      broker.EntryOut,
		Reason:     reason,
		Price:      mark,
		Volume:     pos.volume,
		Profit:     pl,
		Time:       e.stamp(at),
	}
	e.deals = append(e.deals, d)
	delete(e.positions, pos.ticket)
	return d
}

func (e *Engine) CancelPendingOrder(ctx context.Context, tk trade.Ticket) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.orders[tk]; ok {
		delete(e.orders, tk)
		return nil
	}
	if _, ok := e.positions[tk]; ok {
		return &broker.RequestError{Op: "cancel order", Kind: broker.KindInvalidRequest, Msg: "order #" + tk.String() + " already filled"}
	}
	return &broker.RequestError{Op: "cancel order", Kind: broker.KindNotFound, Msg: "order #" + tk.String() + " not found"}
}

func (e *Engine) ClosePosition(ctx context.Context, tk trade.Ticket) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, ok := e.positions[tk]
	if !ok {
		if _, pending := e.orders[tk]; pending {
			return &broker.RequestError{Op: "close position", Kind: broker.KindInvalidRequest, Msg: "#" + tk.String() + " is a pending order"}
		}
		return &broker.RequestError{Op: "close position", Kind: broker.KindNotFound, Msg: "position #" + tk.String() + " not found"}
	}
	p, ok := e.ticks[pos.symbol]
	if !ok {
		return &broker.RequestError{Op: "close position", Kind: broker.KindRejected, Err: fmt.Errorf("%w: %s", ErrNoPrice, pos.symbol)}
	}
	mark := p.Bid
	if !pos.buy {
		mark = p.Ask
	}
	e.closeLocked(pos, mark, p.Time, broker.ReasonExpert)
	return nil
}

// ActivePositions lists filled positions only. Working orders are not
// positions until they fill.
func (e *Engine) ActivePositions(ctx context.Context) ([]broker.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]broker.Position, 0, len(e.positions))
	for _, p := range e.positions {
		typ := "0"
		if !p.buy {
			typ = "1"
		}
		out = append(out, broker.Position{
			Ticket:    p.ticket,
			Symbol:    p.symbol,
			Type:      typ,
			Volume:    p.volume,
			PriceOpen: p.entry,
		})
	}
	return out, nil
}

func (e *Engine) ClosingDeal(ctx context.Context, tk trade.Ticket) (*broker.Deal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return broker.FindClosingDeal(e.deals, tk), nil
}

func (e *Engine) TodaysProfit(ctx context.Context) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().In(e.loc)
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, e.loc)

	total := decimal.Zero
	for _, dl := range e.deals {
		if !dl.Time.Before(start) && !dl.Time.After(now) {
			total = total.Add(decimal.NewFromFloat(dl.Profit))
		}
	}
	f, _ := total.Float64()
	return f, nil
}

// SetPrice records a tick, fills any pending orders it crosses, and closes
// positions whose stop loss or take profit it reaches.
func (e *Engine) SetPrice(p Tick) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p.Symbol = trade.NormalizeSymbol(p.Symbol)
	p.Time = e.stamp(p.Time)
	e.ticks[p.Symbol] = p
	e.recordCandleLocked(p)

	for tk, o := range e.orders {
		if o.req.Symbol != p.Symbol || !crosses(o.req, p) {
			continue
		}
		delete(e.orders, tk)
		e.fillLocked(tk, o.req, p)
	}

	for _, pos := range e.positions {
		if pos.symbol != p.Symbol {
			continue
		}
		mark := p.Bid
		if !pos.buy {
			mark = p.Ask
		}
		switch {
		case pos.triggerStopLoss(mark):
			e.closeLocked(pos, pos.sl, p.Time, broker.ReasonSL)
		case pos.triggerTakeProfit(mark):
			e.closeLocked(pos, pos.tp, p.Time, broker.ReasonTP)
		}
	}
}

// crosses reports whether tick p triggers pending order req.
func crosses(req broker.OrderRequest, p Tick) bool {
	switch req.Type {
	case trade.BuyLimit:
		return p.Ask <= req.Price
	case trade.SellLimit:
		return p.Bid >= req.Price
	case trade.BuyStop:
		return p.Ask >= req.Price
	case trade.SellStop:
		return p.Bid <= req.Price
	}
	return false
}
