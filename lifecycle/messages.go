package lifecycle

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/tradekeeper/trade"
)

func filledText(rec trade.Record) string {
	return fmt.Sprintf("✅ ORDER FILLED: %s\n\nPending %s #%s at %g is now live.\nSL: %g | TP: %g",
		rec.Symbol, rec.Type, rec.Ticket, rec.Price, rec.StopLoss, rec.TakeProfit)
}

func closedText(rec trade.Record, reason string, profit float64) string {
	return fmt.Sprintf("🔔 TRADE CLOSED: %s\n\nTicket: #%s\nReason: %s\nProfit: %s",
		rec.Symbol, rec.Ticket, reason, money(profit))
}

func gapText(rec trade.Record) string {
	return fmt.Sprintf("ℹ️ TRADE CLOSED: %s\n\nTicket #%s is no longer open, but the closing details are not available. "+
		"Archived with an unknown reason and zero profit.", rec.Symbol, rec.Ticket)
}

func openedText(rec trade.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📈 NEW TRADE: %s %s\n\nTicket: #%s\n", rec.Symbol, rec.Type, rec.Ticket)
	if rec.Price > 0 {
		fmt.Fprintf(&b, "Entry: %g\n", rec.Price)
	}
	fmt.Fprintf(&b, "SL: %g | TP: %g\nVolume: %g\nStatus: %s", rec.StopLoss, rec.TakeProfit, rec.Volume, rec.Status)
	if rec.Meta.RR > 0 {
		fmt.Fprintf(&b, "\nRR: %.2f", rec.Meta.RR)
	}
	return b.String()
}

// unrecordedText reports a position the broker holds but the store does not
// track. It has to be managed by hand.
func unrecordedText(rec trade.Record, err error) string {
	return fmt.Sprintf("⚠️ UNTRACKED TRADE: %s %s\n\nTicket #%s was placed at the broker but could not be recorded locally: %v\n"+
		"It will not be monitored. Close or record it manually.", rec.Symbol, rec.Type, rec.Ticket, err)
}

func cancelledText(rec trade.Record, reason string) string {
	return fmt.Sprintf("🗑 ORDER CANCELLED: %s\n\nPending %s #%s removed.\nReason: %s",
		rec.Symbol, rec.Type, rec.Ticket, reason)
}

func noTradeToCloseText(symbol string) string {
	return fmt.Sprintf("ℹ️ No open trade for %s, nothing to close.", symbol)
}

func holdText(symbol, reason string) string {
	return fmt.Sprintf("⏸ HOLD %s: %s", symbol, orNone(reason))
}

func noTradeText(symbol, reason string) string {
	return fmt.Sprintf("🚫 NO TRADE %s: %s", symbol, orNone(reason))
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "no reason given"
	}
	return s
}

func money(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("$%.2f", v)
}
