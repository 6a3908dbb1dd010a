package journal

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rustyeddy/tradekeeper/internal/id"
	"github.com/rustyeddy/tradekeeper/trade"
)

var csvHeader = []string{
	"id", "ticket", "symbol", "order_type", "entry_price", "stop_loss", "take_profit",
	"volume", "close_reason", "profit", "profit_known", "open_time", "close_time", "analysis",
}

// CSV appends entries to a CSV file. Existing rows are scanned on open so
// duplicate tickets are rejected across restarts.
type CSV struct {
	mu      sync.Mutex
	f       *os.File
	w       *csv.Writer
	tickets map[trade.Ticket]bool
}

func NewCSV(path string) (*CSV, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	tickets, err := loadTickets(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}

	j := &CSV{f: f, w: csv.NewWriter(f), tickets: tickets}
	if tickets == nil {
		j.tickets = map[trade.Ticket]bool{}
		if err := j.write(csvHeader); err != nil {
			f.Close()
			return nil, err
		}
	}
	return j, nil
}

// loadTickets returns nil for an empty file.
func loadTickets(r io.Reader) (map[trade.Ticket]bool, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(header) < 2 || header[1] != "ticket" {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	out := map[trade.Ticket]bool{}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if len(row) < 2 {
			continue
		}
		tk, err := trade.ParseTicket(row[1])
		if err != nil {
			return nil, err
		}
		out[tk] = true
	}
}

func (j *CSV) write(row []string) error {
	if err := j.w.Write(row); err != nil {
		return err
	}
	j.w.Flush()
	return j.w.Error()
}

func (j *CSV) Record(_ context.Context, e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.tickets[e.Ticket] {
		return fmt.Errorf("%w: #%s", ErrDuplicate, e.Ticket)
	}
	if e.ID == "" {
		e.ID = id.New()
	}
	err := j.write([]string{
		e.ID,
		e.Ticket.String(),
		e.Symbol,
		string(e.Type),
		f(e.EntryPrice),
		f(e.StopLoss),
		f(e.TakeProfit),
		f(e.Volume),
		e.CloseReason,
		f(e.Profit),
		strconv.FormatBool(e.ProfitKnown),
		e.OpenedAt.UTC().Format(time.RFC3339),
		e.ClosedAt.UTC().Format(time.RFC3339),
		e.Analysis,
	})
	if err != nil {
		return err
	}
	j.tickets[e.Ticket] = true
	return nil
}

func (j *CSV) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.w.Flush()
	if err := j.w.Error(); err != nil {
		j.f.Close()
		return err
	}
	return j.f.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
