package tradelog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"pivot-itm-bot/internal/types"
)

// SQLiteStore mirrors closed trades into a single table.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=3000;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", p, err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS trades (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    trade_date TEXT NOT NULL,
    symbol TEXT NOT NULL,
    direction TEXT NOT NULL,
    entry_price REAL NOT NULL,
    exit_price REAL NOT NULL,
    quantity INTEGER NOT NULL,
    invested REAL NOT NULL,
    pnl REAL NOT NULL,
    pnl_percent REAL NOT NULL,
    exit_reason TEXT NOT NULL,
    entry_time TEXT NOT NULL,
    exit_time TEXT NOT NULL,
    stop_loss REAL NOT NULL,
    profit_target REAL NOT NULL,
    pivot REAL NOT NULL,
    entry_order_id TEXT,
    exit_order_id TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_trades_date ON trades(trade_date);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Insert(ctx context.Context, r types.TradeRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO trades (
    trade_date, symbol, direction, entry_price, exit_price, quantity, invested,
    pnl, pnl_percent, exit_reason, entry_time, exit_time, stop_loss, profit_target,
    pivot, entry_order_id, exit_order_id
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Date, r.Symbol, string(r.Direction), r.EntryPrice, r.ExitPrice, r.Quantity, r.Invested,
		r.PnL, r.PnLPercent, string(r.ExitReason), r.EntryTime.Format(time.RFC3339), r.ExitTime.Format(time.RFC3339),
		r.StopLoss, r.ProfitTarget, r.Pivot, r.EntryOrderID, r.ExitOrderID,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// TradesOn returns the trades of date in insertion order.
func (s *SQLiteStore) TradesOn(ctx context.Context, date string) ([]types.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT trade_date, symbol, direction, entry_price, exit_price, quantity, invested,
       pnl, pnl_percent, exit_reason, entry_time, exit_time, stop_loss, profit_target,
       pivot, COALESCE(entry_order_id, ''), COALESCE(exit_order_id, '')
FROM trades WHERE trade_date = ? ORDER BY id ASC`, date)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []types.TradeRecord
	for rows.Next() {
		var (
			r                   types.TradeRecord
			dir, reason         string
			entryTime, exitTime string
		)
		if err := rows.Scan(&r.Date, &r.Symbol, &dir, &r.EntryPrice, &r.ExitPrice, &r.Quantity, &r.Invested,
			&r.PnL, &r.PnLPercent, &reason, &entryTime, &exitTime, &r.StopLoss, &r.ProfitTarget,
			&r.Pivot, &r.EntryOrderID, &r.ExitOrderID); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		r.Direction = types.Direction(dir)
		r.ExitReason = types.ExitReason(reason)
		r.EntryTime, _ = time.Parse(time.RFC3339, entryTime)
		r.ExitTime, _ = time.Parse(time.RFC3339, exitTime)
		out = append(out, r)
	}
	return out, rows.Err()
}
