package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"oddsarb.dev/core/internal/arbitrage"
	"oddsarb.dev/core/internal/venue"
)

const (
	defaultLegTimeout    = 5 * time.Second
	defaultUnwindTimeout = 10 * time.Second
	ringCapacity         = 100
)

// ErrExecutionInProgress is returned when Execute is called while a prior
// execution is still running (spec.md §4.10's single-in-flight rule).
var ErrExecutionInProgress = errors.New("execution: an execution is already in progress")

// ArbOptions configures one Execute call.
type ArbOptions struct {
	TimeoutMs      int64 // per-leg FOK timeout, default 5000
	MaxSlippageBps float64
	UseGtc         bool // unwind legs use GTC with a longer timeout
}

// ArbResult is the outcome of one arbitrage execution (spec.md §4.10).
type ArbResult struct {
	OpportunityID string
	Success       bool
	Partial       bool
	FilledLegs    int
	TotalLegs     int
	RealizedPnl   float64 // unwind loss if partial, else estimated profit
	Latency       time.Duration
	Error         error
}

// ArbitrageExecutor executes cross-venue and single-venue arbitrage
// opportunities (C10, spec.md §4.10) — the hard execution primitive.
// Grounded on the teacher's internal/order/async_executor.go for the
// worker/result-ring shape, generalized from single-order retry to
// parallel multi-leg FOK submission with unwind.
type ArbitrageExecutor struct {
	venues map[venue.ID]OrderPlacer

	inFlight int32 // atomic flag, 0 or 1

	history *resultRing
}

// NewArbitrageExecutor builds an executor dispatching legs to the placer
// registered for each leg's venue.
func NewArbitrageExecutor(venues map[venue.ID]OrderPlacer) *ArbitrageExecutor {
	return &ArbitrageExecutor{venues: venues, history: newResultRing(ringCapacity)}
}

// Stats returns a snapshot of the last 100 execution results.
func (e *ArbitrageExecutor) Stats() Stats { return e.history.Stats() }

// Execute runs the opportunity's legs. At most one execution may be in
// flight; concurrent calls are rejected without side effects.
func (e *ArbitrageExecutor) Execute(ctx context.Context, opp arbitrage.Opportunity, opts ArbOptions) ArbResult {
	if !atomic.CompareAndSwapInt32(&e.inFlight, 0, 1) {
		return ArbResult{OpportunityID: opp.ID, Error: ErrExecutionInProgress}
	}
	defer atomic.StoreInt32(&e.inFlight, 0)

	start := time.Now()
	timeout := time.Duration(opts.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultLegTimeout
	}

	orderType := venue.OrderFOK
	if opts.UseGtc {
		orderType = venue.OrderGTC
	}
	legs := applySlippageBuffer(opp.Legs, opts.MaxSlippageBps)
	fills := e.submitLegs(ctx, legs, orderType, timeout)
	filledCount := 0
	for _, f := range fills {
		if f.filled {
			filledCount++
		}
	}

	res := ArbResult{OpportunityID: opp.ID, TotalLegs: len(opp.Legs), FilledLegs: filledCount}

	switch {
	case filledCount == len(opp.Legs):
		res.Success = true
		res.RealizedPnl = opp.NetSpread * opp.MaxSize
	case filledCount == 0:
		res.Success = false
		res.Error = fmt.Errorf("execution: all %d legs failed for opportunity %s", len(opp.Legs), opp.ID)
	default:
		res.Partial = true
		unwindLoss := e.unwind(ctx, legs, fills)
		res.RealizedPnl = unwindLoss
		res.Error = fmt.Errorf("execution: partial fill (%d/%d legs), unwound", filledCount, len(opp.Legs))
	}

	res.Latency = time.Since(start)
	e.history.push(res)
	return res
}

type legFill struct {
	leg        arbitrage.Leg
	filled     bool
	filledSize float64
	fillPrice  float64
}

// applySlippageBuffer widens each leg's FOK limit price by bps so the taker
// still clears on a small adverse move between detection and submission.
func applySlippageBuffer(legs []arbitrage.Leg, bps float64) []arbitrage.Leg {
	if bps <= 0 {
		return legs
	}
	slip := bps / 10000.0
	out := make([]arbitrage.Leg, len(legs))
	for i, leg := range legs {
		leg.Price = limitPrice(leg.Side, leg.Price, slip)
		out[i] = leg
	}
	return out
}

// submitLegs submits every leg in parallel, racing a per-leg timeout.
func (e *ArbitrageExecutor) submitLegs(ctx context.Context, legs []arbitrage.Leg, orderType venue.OrderType, timeout time.Duration) []legFill {
	out := make([]legFill, len(legs))
	var wg sync.WaitGroup
	for i, leg := range legs {
		wg.Add(1)
		go func(i int, leg arbitrage.Leg) {
			defer wg.Done()
			out[i] = e.submitOneLeg(ctx, leg, orderType, timeout)
		}(i, leg)
	}
	wg.Wait()
	return out
}

func (e *ArbitrageExecutor) submitOneLeg(ctx context.Context, leg arbitrage.Leg, orderType venue.OrderType, timeout time.Duration) legFill {
	placer, ok := e.venues[leg.Venue]
	if !ok {
		return legFill{leg: leg}
	}

	legCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type submitResult struct {
		order venue.Order
		err   error
	}
	done := make(chan submitResult, 1)
	go func() {
		req := venue.OrderRequest{
			MarketID: leg.MarketID, OutcomeID: leg.OutcomeID, Side: leg.Side,
			Price: leg.Price, SizeUSD: leg.Size, Type: orderType,
		}
		order, err := placer.PlaceOrder(legCtx, leg.Venue, req)
		done <- submitResult{order: order, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return legFill{leg: leg}
		}
		filled := r.order.Status == venue.StatusFilled || r.order.Status == venue.StatusPartial
		return legFill{leg: leg, filled: filled, filledSize: r.order.FilledSizeUSD, fillPrice: r.order.AvgFillPrice}
	case <-legCtx.Done():
		return legFill{leg: leg}
	}
}

// unwind closes every successfully-filled leg with an opposite-side GTC
// order priced for near-certain fill, and returns the total realized loss
// (spec.md §4.10).
func (e *ArbitrageExecutor) unwind(ctx context.Context, legs []arbitrage.Leg, fills []legFill) float64 {
	var unwindLegs []arbitrage.Leg
	entryPrices := make(map[string]float64) // keyed by outcomeID
	for i, f := range fills {
		if !f.filled || f.filledSize <= 0 {
			continue
		}
		leg := legs[i]
		closePrice := 0.01
		if leg.Side == venue.SideSell {
			closePrice = 0.99
		}
		unwindLegs = append(unwindLegs, arbitrage.Leg{
			Venue: leg.Venue, MarketID: leg.MarketID, OutcomeID: leg.OutcomeID,
			Side: leg.Side.Opposite(), Price: closePrice, Size: f.filledSize,
		})
		entryPrices[leg.OutcomeID] = f.fillPrice
	}
	if len(unwindLegs) == 0 {
		return 0
	}

	unwindFills := e.submitLegs(ctx, unwindLegs, venue.OrderGTC, defaultUnwindTimeout)

	var totalLoss float64
	for i, f := range unwindFills {
		if !f.filled {
			continue
		}
		leg := unwindLegs[i]
		entry := entryPrices[leg.OutcomeID]
		exit := f.fillPrice
		// leg.Side here is the unwind (opposite) side: closing a long
		// (original BUY) sells at exit, loss = entry - exit; closing a
		// short (original SELL) buys back at exit, loss = exit - entry.
		var loss float64
		if leg.Side == venue.SideSell {
			loss = (entry - exit) * f.filledSize
		} else {
			loss = (exit - entry) * f.filledSize
		}
		totalLoss += loss
	}
	return totalLoss
}
