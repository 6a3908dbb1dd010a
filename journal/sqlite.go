package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/tradekeeper/internal/id"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = id.New()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO trades
		(id, ticket, symbol, order_type, entry_price, stop_loss, take_profit, volume,
		 close_reason, profit, profit_known, analysis, open_time, close_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, int64(e.Ticket), e.Symbol, string(e.Type), e.EntryPrice, e.StopLoss,
		e.TakeProfit, e.Volume, e.CloseReason, e.Profit, e.ProfitKnown, e.Analysis,
		e.OpenedAt.UTC(), e.ClosedAt.UTC(),
	)
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: #%s", ErrDuplicate, e.Ticket)
	}
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
