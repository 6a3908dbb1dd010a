package mt5

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/tradekeeper/broker"
	"github.com/rustyeddy/tradekeeper/trade"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// flexTicket accepts a ticket as a JSON number or string.
type flexTicket int64

func (t *flexTicket) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(b) == 0 || string(b) == "null" {
		*t = 0
		return nil
	}
	n, err := cast.ToInt64E(string(b))
	if err != nil {
		// Some bridges return floats such as 12345.0.
		f, ferr := strconv.ParseFloat(string(b), 64)
		if ferr != nil {
			return fmt.Errorf("ticket %q: %w", b, err)
		}
		n = int64(f)
	}
	*t = flexTicket(n)
	return nil
}

func (t flexTicket) ticket() trade.Ticket { return trade.Ticket(t) }

// flexTime accepts unix seconds, unix milliseconds, RFC3339, or
// "2006-01-02 15:04:05" (taken as UTC).
type flexTime time.Time

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123,
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*t = flexTime{}
		return nil
	}
	if b[0] != '"' {
		n, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return fmt.Errorf("time %s: %w", b, err)
		}
		// Epoch milliseconds.
		if n > 1e12 {
			*t = flexTime(time.UnixMilli(int64(n)).UTC())
		} else {
			*t = flexTime(time.Unix(int64(n), 0).UTC())
		}
		return nil
	}
	s := strings.Trim(string(b), `"`)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			*t = flexTime(ts.UTC())
			return nil
		}
	}
	return fmt.Errorf("time %q: unrecognized layout", s)
}

type wireOrderResult struct {
	Order  flexTicket `json:"order"`
	Deal   flexTicket `json:"deal"`
	Ticket flexTicket `json:"ticket"`
}

type wirePosition struct {
	Ticket    flexTicket `json:"ticket"`
	Symbol    string     `json:"symbol"`
	Type      any        `json:"type"`
	Volume    float64    `json:"volume"`
	PriceOpen float64    `json:"price_open"`
	Profit    float64    `json:"profit"`
}

func (p wirePosition) position() broker.Position {
	typ := ""
	if p.Type != nil {
		typ = cast.ToString(p.Type)
	}
	return broker.Position{
		Ticket:    p.Ticket.ticket(),
		Symbol:    trade.NormalizeSymbol(p.Symbol),
		Type:      typ,
		Volume:    p.Volume,
		PriceOpen: p.PriceOpen,
		Profit:    p.Profit,
	}
}

type wireDeal struct {
	Ticket     flexTicket `json:"ticket"`
	PositionID flexTicket `json:"position_id"`
	Symbol     string     `json:"symbol"`
	Entry      int        `json:"entry"`
	Reason     int        `json:"reason"`
	Price      float64    `json:"price"`
	Volume     float64    `json:"volume"`
	Profit     float64    `json:"profit"`
	Time       flexTime   `json:"time"`
}

func (d wireDeal) deal() broker.Deal {
	return broker.Deal{
		Ticket:     d.Ticket.ticket(),
		PositionID: d.PositionID.ticket(),
		Symbol:     trade.NormalizeSymbol(d.Symbol),
		Entry:      broker.DealEntry(d.Entry),
		Reason:     broker.DealReason(d.Reason),
		Price:      d.Price,
		Volume:     d.Volume,
		Profit:     d.Profit,
		Time:       time.Time(d.Time),
	}
}

type wireCandle struct {
	Open       float64  `json:"open"`
	High       float64  `json:"high"`
	Low        float64  `json:"low"`
	Close      float64  `json:"close"`
	TickVolume float64  `json:"tick_volume"`
	Time       flexTime `json:"time"`
}

// SumProfit adds deal profits in decimal to avoid drift over many deals.
func SumProfit(deals []broker.Deal) float64 {
	total := decimal.Zero
	for _, d := range deals {
		total = total.Add(decimal.NewFromFloat(d.Profit))
	}
	f, _ := total.Float64()
	return f
}
