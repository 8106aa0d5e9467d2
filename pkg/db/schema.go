package db

import (
	"fmt"
)

// schema holds the minimum persisted state core actually needs (spec.md
// §6): an append-only execution-result log sufficient to reconstruct
// daily P&L across restarts, and the kill switch's daily P&L bucket
// keyed by UTC date. Everything else — open orders, positions, market
// pairs — is recomputable from venue state and lives only in memory.
const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS executions (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    venue TEXT NOT NULL,
    market_id TEXT NOT NULL,
    outcome_id TEXT NOT NULL,
    success BOOLEAN NOT NULL,
    partial BOOLEAN NOT NULL DEFAULT 0,
    filled_size REAL DEFAULT 0,
    filled_price REAL DEFAULT 0,
    realized_pnl REAL DEFAULT 0,
    execution_time_ms INTEGER DEFAULT 0,
    error TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_executions_created_at ON executions(created_at);

CREATE TABLE IF NOT EXISTS daily_pnl (
    date TEXT PRIMARY KEY, -- UTC YYYY-MM-DD
    realized_pnl REAL NOT NULL DEFAULT 0,
    execution_count INTEGER NOT NULL DEFAULT 0,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// ApplyMigrations bootstraps the schema; keep lightweight for fast startup.
func ApplyMigrations(d *Database) error {
	if d == nil || d.DB == nil {
		return fmt.Errorf("database is not initialized")
	}
	if _, err := d.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
