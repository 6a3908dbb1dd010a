package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatTradeOrg renders an Entry as an Org-mode block suitable for pasting into a journal.
// Structured facts go into a PROPERTIES drawer; the opening analysis becomes the Thesis.
func FormatTradeOrg(e Entry) string {
	heading := fmt.Sprintf("** Trade: %s %s (#%s)", e.Symbol, e.Type, e.Ticket)
	open := e.OpenedAt.UTC().Format(time.RFC3339)
	close := e.ClosedAt.UTC().Format(time.RFC3339)

	profit := "unknown"
	if e.ProfitKnown {
		profit = fmt.Sprintf("%.2f", e.Profit)
	}

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":ID: %s\n", e.ID))
	b.WriteString(fmt.Sprintf(":TICKET: %s\n", e.Ticket))
	b.WriteString(fmt.Sprintf(":SYMBOL: %s\n", e.Symbol))
	b.WriteString(fmt.Sprintf(":ORDER_TYPE: %s\n", e.Type))
	b.WriteString(fmt.Sprintf(":VOLUME: %.2f\n", e.Volume))
	b.WriteString(fmt.Sprintf(":ENTRY_PRICE: %.5f\n", e.EntryPrice))
	b.WriteString(fmt.Sprintf(":STOP_LOSS: %.5f\n", e.StopLoss))
	b.WriteString(fmt.Sprintf(":TAKE_PROFIT: %.5f\n", e.TakeProfit))
	b.WriteString(fmt.Sprintf(":OPEN_TIME: %s\n", open))
	b.WriteString(fmt.Sprintf(":CLOSE_TIME: %s\n", close))
	b.WriteString(fmt.Sprintf(":PROFIT: %s\n", profit))
	b.WriteString(fmt.Sprintf(":CLOSE_REASON: %s\n", e.CloseReason))
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Thesis\n")
	thesis := strings.TrimSpace(e.Analysis)
	if thesis == "" {
		b.WriteString("- \n\n")
	} else {
		b.WriteString(thesis)
		b.WriteString("\n\n")
	}
	b.WriteString("*** Review\n- \n")

	return b.String()
}

// FormatTradesOrg renders multiple entries separated by blank lines.
func FormatTradesOrg(entries []Entry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(e))
	}
	return b.String()
}
