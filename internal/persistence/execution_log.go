package persistence

import (
	"context"
	"fmt"
	"time"

	"oddsarb.dev/core/pkg/db"
)

// ExecutionLog is the append-only execution-result log spec.md §6 calls
// the minimum persisted state core needs: enough to reconstruct daily
// P&L across restarts. Writes go through BatchWriter (teacher's own
// batching pattern, repurposed here from arbitrary SQL ops to two
// domain writes per execution) so a burst of fills doesn't serialize on
// disk I/O one row at a time.
type ExecutionLog struct {
	bw *BatchWriter
}

// NewExecutionLog wraps database in a BatchWriter with the teacher's own
// defaults (50 ops or 500ms, whichever comes first).
func NewExecutionLog(database *db.Database) *ExecutionLog {
	return &ExecutionLog{bw: NewBatchWriter(database.DB, 50, 500*time.Millisecond)}
}

// Record appends one execution result and folds its realized P&L into
// the UTC-dated daily bucket. Both writes land in the same batch
// transaction since BatchWriter.executeBatch runs the whole buffer
// inside one Begin/Commit.
func (l *ExecutionLog) Record(e db.Execution) {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	l.bw.WriteQuery(`
		INSERT INTO executions (
			id, kind, venue, market_id, outcome_id, success, partial,
			filled_size, filled_price, realized_pnl, execution_time_ms, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Kind, e.Venue, e.MarketID, e.OutcomeID, e.Success, e.Partial,
		e.FilledSize, e.FilledPrice, e.RealizedPnl, e.ExecutionTimeMs, e.Error, createdAt)

	l.bw.WriteQuery(`
		INSERT INTO daily_pnl (date, realized_pnl, execution_count, updated_at)
		VALUES (?, ?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(date) DO UPDATE SET
			realized_pnl = realized_pnl + excluded.realized_pnl,
			execution_count = execution_count + 1,
			updated_at = CURRENT_TIMESTAMP
	`, utcDateKey(createdAt), e.RealizedPnl)
}

// Flush forces any buffered writes to disk immediately.
func (l *ExecutionLog) Flush() error {
	return l.bw.Flush()
}

// Close flushes and stops the background flush goroutine.
func (l *ExecutionLog) Close() error {
	return l.bw.Close()
}

// ReplayTodayPnl returns today's (UTC) persisted realized P&L bucket, for
// seeding risk.KillSwitch.UpdateDailyPnl on startup after a restart.
func ReplayTodayPnl(ctx context.Context, database *db.Database) (float64, error) {
	bucket, err := database.GetDailyPnl(ctx, utcDateKey(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("replay daily pnl: %w", err)
	}
	return bucket.RealizedPnl, nil
}

func utcDateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
