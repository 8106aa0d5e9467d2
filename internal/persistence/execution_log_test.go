package persistence

import (
	"context"
	"testing"
	"time"

	"oddsarb.dev/core/pkg/db"
)

func TestExecutionLogRecordAndReplay(t *testing.T) {
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	log := NewExecutionLog(database)
	defer log.Close()

	log.Record(db.Execution{
		ID: "e1", Kind: "arbitrage", Venue: "polymarket",
		MarketID: "m1", OutcomeID: "m1:yes", Success: true,
		RealizedPnl: 1.5, CreatedAt: time.Now().UTC(),
	})
	if err := log.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	pnl, err := ReplayTodayPnl(context.Background(), database)
	if err != nil {
		t.Fatalf("replay today pnl: %v", err)
	}
	if pnl != 1.5 {
		t.Fatalf("expected replayed pnl 1.5, got %v", pnl)
	}

	executions, err := database.ListExecutionsSince(context.Background(), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("list executions: %v", err)
	}
	if len(executions) != 1 || executions[0].ID != "e1" {
		t.Fatalf("expected one execution e1, got %+v", executions)
	}
}
