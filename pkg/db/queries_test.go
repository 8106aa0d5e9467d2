package db

import (
	"context"
	"testing"
	"time"
)

func TestRecordAndListExecutions(t *testing.T) {
	database, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer database.Close()

	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC()

	exec := Execution{
		ID: "exec-1", Kind: "arbitrage", Venue: "polymarket",
		MarketID: "m1", OutcomeID: "m1:yes", Success: true,
		FilledSize: 100, FilledPrice: 0.45, RealizedPnl: 5, ExecutionTimeMs: 120,
		CreatedAt: now,
	}
	if err := database.RecordExecution(ctx, exec); err != nil {
		t.Fatalf("record execution: %v", err)
	}

	got, err := database.ListExecutionsSince(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("list executions: %v", err)
	}
	if len(got) != 1 || got[0].ID != "exec-1" {
		t.Fatalf("expected to find exec-1, got %+v", got)
	}

	// Executions recorded before the cutoff are excluded.
	got, err = database.ListExecutionsSince(ctx, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("list executions: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no executions after the cutoff, got %d", len(got))
	}
}

func TestUpsertDailyPnlAccumulates(t *testing.T) {
	database, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer database.Close()

	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	ctx := context.Background()
	date := "2026-07-31"

	if err := database.UpsertDailyPnl(ctx, date, 3.5); err != nil {
		t.Fatalf("upsert daily pnl: %v", err)
	}
	if err := database.UpsertDailyPnl(ctx, date, -1.0); err != nil {
		t.Fatalf("upsert daily pnl: %v", err)
	}

	got, err := database.GetDailyPnl(ctx, date)
	if err != nil {
		t.Fatalf("get daily pnl: %v", err)
	}
	if got.RealizedPnl != 2.5 {
		t.Fatalf("expected accumulated pnl 2.5, got %v", got.RealizedPnl)
	}
	if got.ExecutionCount != 2 {
		t.Fatalf("expected execution count 2, got %d", got.ExecutionCount)
	}
}

func TestGetDailyPnlReturnsZeroValueWhenAbsent(t *testing.T) {
	database, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer database.Close()

	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	got, err := database.GetDailyPnl(context.Background(), "2026-01-01")
	if err != nil {
		t.Fatalf("get daily pnl: %v", err)
	}
	if got.RealizedPnl != 0 || got.ExecutionCount != 0 {
		t.Fatalf("expected zero-value bucket, got %+v", got)
	}
}
