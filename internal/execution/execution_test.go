package execution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"oddsarb.dev/core/internal/arbitrage"
	"oddsarb.dev/core/internal/strategy"
	"oddsarb.dev/core/internal/venue"
)

// fakePlacer is a scripted OrderPlacer for deterministic executor tests.
type fakePlacer struct {
	mu       sync.Mutex
	handler  func(req venue.OrderRequest) (venue.Order, error)
	calls    int
	delay    time.Duration
}

func (f *fakePlacer) PlaceOrder(ctx context.Context, v venue.ID, req venue.OrderRequest) (venue.Order, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return venue.Order{}, ctx.Err()
		}
	}
	return f.handler(req)
}

func filledOrder(req venue.OrderRequest) (venue.Order, error) {
	return venue.Order{ID: "o-" + req.OutcomeID, Status: venue.StatusFilled, FilledSizeUSD: req.SizeUSD, AvgFillPrice: req.Price}, nil
}

func TestSignalExecutorRejectsLowConfidence(t *testing.T) {
	p := &fakePlacer{handler: filledOrder}
	e := NewSignalExecutor(p, 2)
	sig := strategy.TradingSignal{ID: "s1", Confidence: 0.1, ExpiresAt: time.Now().Add(time.Minute), Side: venue.SideBuy, Price: 0.5, Size: 10}
	res := e.Execute(context.Background(), venue.Polymarket, sig)
	if res.Error == nil {
		t.Fatal("expected rejection for low confidence")
	}
	if p.calls != 0 {
		t.Fatal("expected no order placed for rejected signal")
	}
}

func TestSignalExecutorRejectsExpired(t *testing.T) {
	p := &fakePlacer{handler: filledOrder}
	e := NewSignalExecutor(p, 2)
	sig := strategy.TradingSignal{ID: "s1", Confidence: 0.9, ExpiresAt: time.Now().Add(-time.Second), Side: venue.SideBuy, Price: 0.5, Size: 10}
	res := e.Execute(context.Background(), venue.Polymarket, sig)
	if res.Error == nil {
		t.Fatal("expected rejection for expired signal")
	}
}

func TestSignalExecutorSingleLegFilled(t *testing.T) {
	p := &fakePlacer{handler: filledOrder}
	e := NewSignalExecutor(p, 2)
	sig := strategy.TradingSignal{ID: "s1", Confidence: 0.9, ExpiresAt: time.Now().Add(time.Minute), Side: venue.SideBuy, Price: 0.5, Size: 10}
	res := e.Execute(context.Background(), venue.Polymarket, sig)
	if !res.Success || res.OrderID == "" {
		t.Fatalf("expected success, got %+v", res)
	}
}

func TestSignalExecutorBatchRequiresAllLegsFilled(t *testing.T) {
	p := &fakePlacer{handler: func(req venue.OrderRequest) (venue.Order, error) {
		if req.OutcomeID == "no" {
			return venue.Order{Status: venue.StatusRejected}, nil
		}
		return filledOrder(req)
	}}
	e := NewSignalExecutor(p, 2)
	sig := strategy.TradingSignal{
		ID: "s2", Confidence: 0.9, ExpiresAt: time.Now().Add(time.Minute), MarketID: "m1",
		Batch: []strategy.BatchLeg{
			{OutcomeID: "yes", Side: venue.SideBuy, Price: 0.4, Size: 10},
			{OutcomeID: "no", Side: venue.SideBuy, Price: 0.4, Size: 10},
		},
	}
	res := e.Execute(context.Background(), venue.Polymarket, sig)
	if res.Success {
		t.Fatal("expected batch failure when one leg rejected")
	}
}

func TestSignalExecutorRejectsDuplicatePending(t *testing.T) {
	block := make(chan struct{})
	p := &fakePlacer{handler: func(req venue.OrderRequest) (venue.Order, error) {
		<-block
		return filledOrder(req)
	}}
	e := NewSignalExecutor(p, 2)
	sig := strategy.TradingSignal{ID: "s3", Confidence: 0.9, ExpiresAt: time.Now().Add(time.Minute), Side: venue.SideBuy, Price: 0.5, Size: 10}

	done := make(chan Result, 1)
	go func() { done <- e.Execute(context.Background(), venue.Polymarket, sig) }()
	time.Sleep(20 * time.Millisecond) // let the first call register as pending

	res2 := e.Execute(context.Background(), venue.Polymarket, sig)
	if res2.Error == nil {
		t.Fatal("expected rejection for duplicate pending signal")
	}
	close(block)
	<-done
}

func legOpp(id string, legs ...arbitrage.Leg) arbitrage.Opportunity {
	return arbitrage.Opportunity{ID: id, Legs: legs, NetSpread: 0.02, MaxSize: 100}
}

func TestArbitrageExecutorAllLegsFilledSuccess(t *testing.T) {
	p := &fakePlacer{handler: filledOrder}
	e := NewArbitrageExecutor(map[venue.ID]OrderPlacer{venue.Polymarket: p, venue.Kalshi: p})
	opp := legOpp("a1",
		arbitrage.Leg{Venue: venue.Polymarket, MarketID: "m1", OutcomeID: "yes", Side: venue.SideBuy, Price: 0.4, Size: 10},
		arbitrage.Leg{Venue: venue.Kalshi, MarketID: "m2", OutcomeID: "no", Side: venue.SideBuy, Price: 0.4, Size: 10},
	)
	res := e.Execute(context.Background(), opp, ArbOptions{TimeoutMs: 1000})
	if !res.Success || res.FilledLegs != 2 {
		t.Fatalf("expected full success, got %+v", res)
	}
}

func TestArbitrageExecutorAllLegsFailedNoUnwind(t *testing.T) {
	p := &fakePlacer{handler: func(req venue.OrderRequest) (venue.Order, error) {
		return venue.Order{}, errors.New("rejected")
	}}
	e := NewArbitrageExecutor(map[venue.ID]OrderPlacer{venue.Polymarket: p})
	opp := legOpp("a2", arbitrage.Leg{Venue: venue.Polymarket, MarketID: "m1", OutcomeID: "yes", Side: venue.SideBuy, Price: 0.4, Size: 10})
	res := e.Execute(context.Background(), opp, ArbOptions{TimeoutMs: 1000})
	if res.Success || res.Partial {
		t.Fatalf("expected clean failure, got %+v", res)
	}
}

func TestArbitrageExecutorPartialFillTriggersUnwind(t *testing.T) {
	p := &fakePlacer{handler: func(req venue.OrderRequest) (venue.Order, error) {
		if req.OutcomeID == "yes" {
			return filledOrder(req)
		}
		return venue.Order{Status: venue.StatusRejected}, nil
	}}
	e := NewArbitrageExecutor(map[venue.ID]OrderPlacer{venue.Polymarket: p, venue.Kalshi: p})
	opp := legOpp("a3",
		arbitrage.Leg{Venue: venue.Polymarket, MarketID: "m1", OutcomeID: "yes", Side: venue.SideBuy, Price: 0.4, Size: 10},
		arbitrage.Leg{Venue: venue.Kalshi, MarketID: "m2", OutcomeID: "no", Side: venue.SideBuy, Price: 0.4, Size: 10},
	)
	res := e.Execute(context.Background(), opp, ArbOptions{TimeoutMs: 1000})
	if !res.Partial || res.Success {
		t.Fatalf("expected partial-fill outcome, got %+v", res)
	}
}

func TestArbitrageExecutorRejectsConcurrentExecution(t *testing.T) {
	block := make(chan struct{})
	p := &fakePlacer{handler: func(req venue.OrderRequest) (venue.Order, error) {
		<-block
		return filledOrder(req)
	}}
	e := NewArbitrageExecutor(map[venue.ID]OrderPlacer{venue.Polymarket: p})
	opp := legOpp("a4", arbitrage.Leg{Venue: venue.Polymarket, MarketID: "m1", OutcomeID: "yes", Side: venue.SideBuy, Price: 0.4, Size: 10})

	done := make(chan ArbResult, 1)
	go func() { done <- e.Execute(context.Background(), opp, ArbOptions{TimeoutMs: 1000}) }()
	time.Sleep(20 * time.Millisecond)

	res2 := e.Execute(context.Background(), opp, ArbOptions{TimeoutMs: 1000})
	if !errors.Is(res2.Error, ErrExecutionInProgress) {
		t.Fatalf("expected ErrExecutionInProgress, got %v", res2.Error)
	}
	close(block)
	<-done
}

func TestArbitrageExecutorHistoryTracksResults(t *testing.T) {
	p := &fakePlacer{handler: filledOrder}
	e := NewArbitrageExecutor(map[venue.ID]OrderPlacer{venue.Polymarket: p})
	opp := legOpp("a5", arbitrage.Leg{Venue: venue.Polymarket, MarketID: "m1", OutcomeID: "yes", Side: venue.SideBuy, Price: 0.4, Size: 10})
	e.Execute(context.Background(), opp, ArbOptions{TimeoutMs: 1000})
	stats := e.Stats()
	if stats.SuccessCount != 1 {
		t.Fatalf("expected 1 success in history, got %+v", stats)
	}
}
