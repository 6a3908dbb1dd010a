package trade

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Ticket is the broker-issued identifier of an order or position.
type Ticket int64

func (t Ticket) String() string {
	return strconv.FormatInt(int64(t), 10)
}

// ParseTicket parses the decimal form produced by Ticket.String.
func ParseTicket(s string) (Ticket, error) {
	n, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ticket %q: %w", s, err)
	}
	return Ticket(n), nil
}

type OrderType string

const (
	MarketBuy  OrderType = "MARKET_BUY"
	MarketSell OrderType = "MARKET_SELL"
	BuyLimit   OrderType = "BUY_LIMIT"
	SellLimit  OrderType = "SELL_LIMIT"
	BuyStop    OrderType = "BUY_STOP"
	SellStop   OrderType = "SELL_STOP"
)

var orderTypes = []OrderType{MarketBuy, MarketSell, BuyLimit, SellLimit, BuyStop, SellStop}

// ParseOrderType accepts any casing and either '_' or ' ' as separator.
func ParseOrderType(s string) (OrderType, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", "_"))
	for _, ot := range orderTypes {
		if string(ot) == norm {
			return ot, nil
		}
	}
	return "", fmt.Errorf("unknown order type %q", s)
}

// IsPending reports whether the order rests at the broker until price reaches it.
func (o OrderType) IsPending() bool {
	switch o {
	case BuyLimit, SellLimit, BuyStop, SellStop:
		return true
	}
	return false
}

// IsBuy reports the direction of the order.
func (o OrderType) IsBuy() bool {
	switch o {
	case MarketBuy, BuyLimit, BuyStop:
		return true
	}
	return false
}

func (o OrderType) Valid() bool {
	for _, ot := range orderTypes {
		if ot == o {
			return true
		}
	}
	return false
}

// Status is the lifecycle tag of a Record. The storage location of a
// record is derived from it.
type Status string

const (
	Pending Status = "pending"
	Live    Status = "live"
)

// StatusFor returns the status a freshly opened order of type o starts in.
func StatusFor(o OrderType) Status {
	if o.IsPending() {
		return Pending
	}
	return Live
}

// Meta carries the analysis context at the time the trade was opened.
type Meta struct {
	Segment      string  `json:"segment,omitempty"`
	ATR          float64 `json:"atr,omitempty"`
	Range        float64 `json:"range,omitempty"`
	Body         float64 `json:"body,omitempty"`
	WickATRRatio float64 `json:"wick_atr_ratio,omitempty"`
	Filter       string  `json:"filter,omitempty"`
	RR           float64 `json:"rr,omitempty"`
	CycleID      string  `json:"cycle_id,omitempty"`
}

// Record is the locally persisted view of one outstanding trade.
type Record struct {
	Ticket     Ticket    `json:"ticket"`
	Symbol     string    `json:"symbol"`
	Type       OrderType `json:"type"`
	Price      float64   `json:"price"`
	StopLoss   float64   `json:"sl"`
	TakeProfit float64   `json:"tp"`
	Volume     float64   `json:"volume"`
	Status     Status    `json:"status"`
	Comment    string    `json:"comment,omitempty"`
	OpenedAt   time.Time `json:"opened_at"`
	Meta       Meta      `json:"meta"`
}

func (r Record) String() string {
	return fmt.Sprintf("%s #%s %s @ %g (sl %g, tp %g) [%s]",
		r.Symbol, r.Ticket, r.Type, r.Price, r.StopLoss, r.TakeProfit, r.Status)
}

// NormalizeSymbol upper-cases and trims a symbol so file names are stable.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
