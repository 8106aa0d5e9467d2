package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"oddsarb.dev/core/internal/strategy"
	"oddsarb.dev/core/internal/venue"
)

const defaultMinConfidence = 0.3

// SignalExecutor fulfills strategy TradingSignals (C9, spec.md §4.9).
type SignalExecutor struct {
	placer        OrderPlacer
	minConfidence float64
	maxSlippage   float64 // fraction, e.g. 0.02 for 2%

	mu      sync.Mutex
	pending map[string]struct{} // signal IDs currently executing
}

// NewSignalExecutor builds a Signal Executor. maxSlippagePercent is in
// percent terms (e.g. 2 for 2%); zero selects the spec default.
func NewSignalExecutor(placer OrderPlacer, maxSlippagePercent float64) *SignalExecutor {
	if maxSlippagePercent <= 0 {
		maxSlippagePercent = 2
	}
	return &SignalExecutor{
		placer:        placer,
		minConfidence: defaultMinConfidence,
		maxSlippage:   maxSlippagePercent / 100.0,
		pending:       make(map[string]struct{}),
	}
}

// Execute fulfills a single TradingSignal, rejecting it immediately if
// stale, low-confidence, or already pending (spec.md §4.9).
func (e *SignalExecutor) Execute(ctx context.Context, v venue.ID, sig strategy.TradingSignal) Result {
	start := time.Now()
	if sig.Confidence < e.minConfidence {
		return Result{Error: fmt.Errorf("execution: confidence %.2f below minimum %.2f", sig.Confidence, e.minConfidence)}
	}
	if time.Now().After(sig.ExpiresAt) {
		return Result{Error: fmt.Errorf("execution: signal %s expired at %s", sig.ID, sig.ExpiresAt)}
	}

	e.mu.Lock()
	if _, inFlight := e.pending[sig.ID]; inFlight {
		e.mu.Unlock()
		return Result{Error: fmt.Errorf("execution: signal %s already pending", sig.ID)}
	}
	e.pending[sig.ID] = struct{}{}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.pending, sig.ID)
		e.mu.Unlock()
	}()

	var res Result
	if len(sig.Batch) > 0 {
		res = e.executeBatch(ctx, v, sig)
	} else {
		res = e.executeSingle(ctx, v, sig)
	}
	res.ExecutionTimeMs = time.Since(start).Milliseconds()
	return res
}

func (e *SignalExecutor) executeSingle(ctx context.Context, v venue.ID, sig strategy.TradingSignal) Result {
	price := limitPrice(sig.Side, sig.Price, e.maxSlippage)
	req := venue.OrderRequest{
		MarketID: sig.MarketID, OutcomeID: sig.OutcomeID, Side: sig.Side,
		Price: price, SizeUSD: sig.Size, Type: venue.OrderGTC, StrategyID: sig.StrategyID,
	}
	order, err := e.placer.PlaceOrder(ctx, v, req)
	if err != nil {
		return Result{Error: fmt.Errorf("execution: place order: %w", err)}
	}
	success := order.Status == venue.StatusFilled || order.Status == venue.StatusPartial
	return Result{
		Success: success, OrderID: order.ID,
		FilledSize: order.FilledSizeUSD, FilledPrice: order.AvgFillPrice,
	}
}

// executeBatch submits every leg in parallel; success requires all legs
// acknowledged filled or partially filled (spec.md §4.9 — batch signals are
// intra-market sum arbitrage, partial legs leave a benign capped position,
// no unwind here).
func (e *SignalExecutor) executeBatch(ctx context.Context, v venue.ID, sig strategy.TradingSignal) Result {
	type legResult struct {
		order venue.Order
		err   error
	}
	results := make([]legResult, len(sig.Batch))
	var wg sync.WaitGroup
	for i, leg := range sig.Batch {
		wg.Add(1)
		go func(i int, leg strategy.BatchLeg) {
			defer wg.Done()
			price := limitPrice(leg.Side, leg.Price, e.maxSlippage)
			req := venue.OrderRequest{
				MarketID: sig.MarketID, OutcomeID: leg.OutcomeID, Side: leg.Side,
				Price: price, SizeUSD: leg.Size, Type: venue.OrderGTC, StrategyID: sig.StrategyID,
			}
			order, err := e.placer.PlaceOrder(ctx, v, req)
			results[i] = legResult{order: order, err: err}
		}(i, leg)
	}
	wg.Wait()

	var filledSize, filledNotional float64
	firstOrderID := ""
	for _, r := range results {
		if r.err != nil || (r.order.Status != venue.StatusFilled && r.order.Status != venue.StatusPartial) {
			return Result{Error: fmt.Errorf("execution: batch leg failed, no unwind for batch signals")}
		}
		if firstOrderID == "" {
			firstOrderID = r.order.ID
		}
		filledSize += r.order.FilledSizeUSD
		filledNotional += r.order.FilledSizeUSD * r.order.AvgFillPrice
	}
	avgPrice := 0.0
	if filledSize > 0 {
		avgPrice = filledNotional / filledSize
	}
	return Result{Success: true, OrderID: firstOrderID, FilledSize: filledSize, FilledPrice: avgPrice}
}
