package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/tradekeeper/trade"
)

const selectEntry = `
	SELECT id, ticket, symbol, order_type, entry_price, stop_loss, take_profit, volume,
	       close_reason, profit, profit_known, analysis, open_time, close_time
	FROM trades`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e      Entry
		ticket int64
		typ    string
	)
	err := s.Scan(
		&e.ID,
		&ticket,
		&e.Symbol,
		&typ,
		&e.EntryPrice,
		&e.StopLoss,
		&e.TakeProfit,
		&e.Volume,
		&e.CloseReason,
		&e.Profit,
		&e.ProfitKnown,
		&e.Analysis,
		&e.OpenedAt,
		&e.ClosedAt,
	)
	e.Ticket = trade.Ticket(ticket)
	e.Type = trade.OrderType(typ)
	return e, err
}

// Get returns the archived entry for ticket.
func (j *SQLite) Get(ctx context.Context, ticket trade.Ticket) (Entry, error) {
	row := j.db.QueryRowContext(ctx, selectEntry+` WHERE ticket = ?`, int64(ticket))
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, fmt.Errorf("trade #%s not found", ticket)
		}
		return Entry{}, err
	}
	return e, nil
}

// ListClosedBetween returns entries whose close time is within [start, end).
func (j *SQLite) ListClosedBetween(ctx context.Context, start, end time.Time) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, selectEntry+`
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Summary aggregates a set of entries. Entries without a known profit are
// counted but not classified.
type Summary struct {
	Trades       int
	Wins         int
	Losses       int
	Unknown      int
	GrossProfit  float64
	GrossLoss    float64
	ProfitFactor float64
	Net          float64
}

func Summarize(entries []Entry) Summary {
	var s Summary
	for _, e := range entries {
		s.Trades++
		switch {
		case !e.ProfitKnown:
			s.Unknown++
		case e.Profit < 0:
			s.Losses++
			s.GrossLoss += -e.Profit
		default:
			s.Wins++
			s.GrossProfit += e.Profit
		}
		s.Net += e.Profit
	}
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	}
	return s
}
