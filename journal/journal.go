// Package journal is the permanent ledger of closed trades.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/tradekeeper/trade"
)

// ErrDuplicate is returned when a ticket was already archived.
var ErrDuplicate = errors.New("ticket already in ledger")

// Entry is one archived trade.
type Entry struct {
	ID          string
	Ticket      trade.Ticket
	Symbol      string
	Type        trade.OrderType
	EntryPrice  float64
	StopLoss    float64
	TakeProfit  float64
	Volume      float64
	CloseReason string
	Profit      float64
	ProfitKnown bool
	Analysis    string
	OpenedAt    time.Time
	ClosedAt    time.Time
}

// Ledger appends closed trades. Recording the same ticket twice fails with
// ErrDuplicate and leaves the first entry in place.
type Ledger interface {
	Record(ctx context.Context, e Entry) error
	Close() error
}
