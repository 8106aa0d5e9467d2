package db

import (
	"context"
	"database/sql"
	"time"
)

// Execution is one append-only row in the execution-result log (spec.md
// §6's minimum persisted state). Kind is "arbitrage" or "signal"; it
// mirrors execution.Result/execution.ArbResult closely enough to
// reconstruct daily P&L without depending on that package directly.
type Execution struct {
	ID              string
	Kind            string
	Venue           string
	MarketID        string
	OutcomeID       string
	Success         bool
	Partial         bool
	FilledSize      float64
	FilledPrice     float64
	RealizedPnl     float64
	ExecutionTimeMs int64
	Error           string
	CreatedAt       time.Time
}

// DailyPnl is the kill switch's daily P&L bucket, keyed by UTC date
// ("2006-01-02"), persisted so a restart mid-day doesn't reset the
// drawdown/loss-limit accounting.
type DailyPnl struct {
	Date           string
	RealizedPnl    float64
	ExecutionCount int
	UpdatedAt      time.Time
}

// RecordExecution appends one execution result to the log.
func (d *Database) RecordExecution(ctx context.Context, e Execution) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO executions (
			id, kind, venue, market_id, outcome_id, success, partial,
			filled_size, filled_price, realized_pnl, execution_time_ms, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
	`,
		e.ID, e.Kind, e.Venue, e.MarketID, e.OutcomeID, e.Success, e.Partial,
		e.FilledSize, e.FilledPrice, e.RealizedPnl, e.ExecutionTimeMs, e.Error, e.CreatedAt,
	)
	return err
}

// ListExecutionsSince returns every execution recorded at or after since,
// oldest first — used to replay the log into a fresh daily P&L bucket
// after a restart that lost the in-memory kill switch state.
func (d *Database) ListExecutionsSince(ctx context.Context, since time.Time) ([]Execution, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, kind, venue, market_id, outcome_id, success, partial,
		       filled_size, filled_price, realized_pnl, execution_time_ms,
		       COALESCE(error, ''), created_at
		FROM executions
		WHERE created_at >= ?
		ORDER BY created_at ASC
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Execution
	for rows.Next() {
		var e Execution
		if err := rows.Scan(&e.ID, &e.Kind, &e.Venue, &e.MarketID, &e.OutcomeID, &e.Success, &e.Partial,
			&e.FilledSize, &e.FilledPrice, &e.RealizedPnl, &e.ExecutionTimeMs, &e.Error, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertDailyPnl adds delta to the named UTC date's running realized P&L
// and increments its execution count.
func (d *Database) UpsertDailyPnl(ctx context.Context, date string, delta float64) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO daily_pnl (date, realized_pnl, execution_count, updated_at)
		VALUES (?, ?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(date) DO UPDATE SET
			realized_pnl = realized_pnl + excluded.realized_pnl,
			execution_count = execution_count + 1,
			updated_at = CURRENT_TIMESTAMP
	`, date, delta)
	return err
}

// GetDailyPnl returns the bucket for date, or a zero-value bucket if none
// has been recorded yet.
func (d *Database) GetDailyPnl(ctx context.Context, date string) (DailyPnl, error) {
	var p DailyPnl
	err := d.DB.QueryRowContext(ctx, `
		SELECT date, realized_pnl, execution_count, updated_at
		FROM daily_pnl WHERE date = ?
	`, date).Scan(&p.Date, &p.RealizedPnl, &p.ExecutionCount, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return DailyPnl{Date: date}, nil
	}
	if err != nil {
		return DailyPnl{}, err
	}
	return p, nil
}
