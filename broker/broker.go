// Package broker defines the logical broker operations the engine consumes
// and the error taxonomy adapters report through.
package broker

import (
	"context"
	"time"

	"github.com/rustyeddy/tradekeeper/trade"
)

type Broker interface {
	OpenOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	CancelPendingOrder(ctx context.Context, ticket trade.Ticket) error
	ClosePosition(ctx context.Context, ticket trade.Ticket) error
	// ActivePositions lists filled positions. Working orders appear once they fill.
	ActivePositions(ctx context.Context) ([]Position, error)
	// ClosingDeal returns the deal that closed position ticket, or nil when
	// recent history holds none.
	ClosingDeal(ctx context.Context, ticket trade.Ticket) (*Deal, error)
	TodaysProfit(ctx context.Context) (float64, error)
}

type OrderRequest struct {
	Symbol     string          `json:"symbol"`
	Type       trade.OrderType `json:"type"`
	Price      float64         `json:"price"`
	StopLoss   float64         `json:"sl"`
	TakeProfit float64         `json:"tp"`
	Volume     float64         `json:"volume"`
	Comment    string          `json:"comment,omitempty"`
}

// OrderResult carries whichever identifiers the broker returned.
type OrderResult struct {
	Order  trade.Ticket `json:"order"`
	Deal   trade.Ticket `json:"deal"`
	Ticket trade.Ticket `json:"ticket"`
}

// TicketID picks the identifier to track the trade by: order, then deal,
// then ticket. ok is false when none was returned.
func (r OrderResult) TicketID() (trade.Ticket, bool) {
	for _, t := range []trade.Ticket{r.Order, r.Deal, r.Ticket} {
		if t != 0 {
			return t, true
		}
	}
	return 0, false
}

type Position struct {
	Ticket    trade.Ticket `json:"ticket"`
	Symbol    string       `json:"symbol"`
	Type      string       `json:"type,omitempty"`
	Volume    float64      `json:"volume,omitempty"`
	PriceOpen float64      `json:"price_open,omitempty"`
	Profit    float64      `json:"profit,omitempty"`
}

// TicketSet indexes positions by ticket.
func TicketSet(ps []Position) map[trade.Ticket]Position {
	out := make(map[trade.Ticket]Position, len(ps))
	for _, p := range ps {
		out[p.Ticket] = p
	}
	return out
}

// DealEntry is the direction of a deal relative to its position.
type DealEntry int

const (
	EntryIn    DealEntry = 0
	EntryOut   DealEntry = 1
	EntryInOut DealEntry = 2
	EntryOutBy DealEntry = 3
)

// DealReason is the MT5 code for what triggered a deal.
type DealReason int

const (
	ReasonClient DealReason = 0
	ReasonMobile DealReason = 1
	ReasonWeb    DealReason = 2
	ReasonExpert DealReason = 3
	ReasonSL     DealReason = 4
	ReasonTP     DealReason = 5
	ReasonSO     DealReason = 6
)

type Deal struct {
	Ticket     trade.Ticket `json:"ticket"`
	PositionID trade.Ticket `json:"position_id"`
	Symbol     string       `json:"symbol"`
	Entry      DealEntry    `json:"entry"`
	Reason     DealReason   `json:"reason"`
	Price      float64      `json:"price"`
	Volume     float64      `json:"volume"`
	Profit     float64      `json:"profit"`
	Time       time.Time    `json:"time"`
}

// CloseReason is the human readable cause of a position closing.
type CloseReason string

const (
	CloseTakeProfit CloseReason = "Take Profit Hit"
	CloseStopLoss   CloseReason = "Stop Loss Hit"
	CloseUser       CloseReason = "Closed by User"
	CloseExternal   CloseReason = "Closed Externally"
	CloseUnknown    CloseReason = "Closed - Reason Unknown"
)

func (r DealReason) CloseReason() CloseReason {
	switch r {
	case ReasonTP:
		return CloseTakeProfit
	case ReasonSL:
		return CloseStopLoss
	case ReasonClient, ReasonMobile, ReasonWeb:
		return CloseUser
	case ReasonExpert, ReasonSO:
		return CloseExternal
	}
	return CloseUnknown
}

// FindClosingDeal returns the exit deal of position ticket, or nil.
func FindClosingDeal(deals []Deal, ticket trade.Ticket) *Deal {
	for i := range deals {
		if deals[i].PositionID == ticket && deals[i].Entry == EntryOut {
			d := deals[i]
			return &d
		}
	}
	return nil
}
