package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	ticket INTEGER NOT NULL UNIQUE,
	symbol TEXT NOT NULL,
	order_type TEXT NOT NULL,
	entry_price REAL NOT NULL,
	stop_loss REAL NOT NULL,
	take_profit REAL NOT NULL,
	volume REAL NOT NULL,
	close_reason TEXT NOT NULL,
	profit REAL NOT NULL,
	profit_known INTEGER NOT NULL,
	analysis TEXT NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_close_time ON trades(close_time);
CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
`
