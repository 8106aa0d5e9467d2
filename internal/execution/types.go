// Package execution implements the Signal Executor (C9, spec.md §4.9) and
// the Arbitrage Executor (C10, spec.md §4.10). Both convert a detected
// intent (a strategy TradingSignal or an arbitrage Opportunity) into venue
// order submissions, grounded on the teacher's
// internal/order/async_executor.go: a worker-pool-free but still
// concurrency-bounded executor wrapping a lower-level order placer, with a
// bounded ring of recent ExecutionResults for diagnostics.
package execution

import (
	"context"
	"sync"
	"time"

	"oddsarb.dev/core/internal/venue"
)

// OrderPlacer is the subset of the Order Manager (C11) the executors need.
// Accepting this narrow interface (rather than importing internal/orders
// directly) keeps C9/C10 decoupled from C11's policy chain and position
// bookkeeping — execution only needs "submit this request to this venue and
// tell me the resulting order state", not the rest of the Order Manager's
// surface.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, v venue.ID, req venue.OrderRequest) (venue.Order, error)
}

// Result is the Signal Executor's return shape (spec.md §4.9).
type Result struct {
	Success         bool
	OrderID         string
	FilledSize      float64
	FilledPrice     float64
	ExecutionTimeMs int64
	Error           error
}

// limitPrice applies the configured slippage buffer (spec.md §4.9):
// BUY uses min(0.99, price*(1+slip)); SELL uses max(0.01, price*(1-slip)).
func limitPrice(side venue.Side, price, slip float64) float64 {
	if side == venue.SideBuy {
		return min(0.99, price*(1+slip))
	}
	return max(0.01, price*(1-slip))
}

// resultRing is a fixed-capacity ring buffer of the last N execution
// results, used by the Arbitrage Executor for diagnostics (spec.md §4.10:
// "Keep last 100 execution results in a ring").
type resultRing struct {
	mu       sync.Mutex
	buf      []ArbResult
	cap      int
	next     int
	filled   bool
}

func newResultRing(capacity int) *resultRing {
	return &resultRing{buf: make([]ArbResult, capacity), cap: capacity}
}

func (r *resultRing) push(res ArbResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = res
	r.next = (r.next + 1) % r.cap
	if r.next == 0 {
		r.filled = true
	}
}

// Snapshot returns the ring's current contents, oldest first.
func (r *resultRing) Snapshot() []ArbResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.next
	if !r.filled {
		out := make([]ArbResult, n)
		copy(out, r.buf[:n])
		return out
	}
	out := make([]ArbResult, r.cap)
	copy(out, r.buf[n:])
	copy(out[r.cap-n:], r.buf[:n])
	return out
}

// Stats summarizes the ring for metrics/monitoring.
type Stats struct {
	SuccessCount  int
	PartialCount  int
	FailureCount  int
	AverageLatency time.Duration
	RealizedProfit float64
}

func (r *resultRing) Stats() Stats {
	entries := r.Snapshot()
	var st Stats
	var totalLatency time.Duration
	for _, e := range entries {
		switch {
		case e.Success && !e.Partial:
			st.SuccessCount++
		case e.Partial:
			st.PartialCount++
		default:
			st.FailureCount++
		}
		totalLatency += e.Latency
		st.RealizedProfit += e.RealizedPnl
	}
	if len(entries) > 0 {
		st.AverageLatency = totalLatency / time.Duration(len(entries))
	}
	return st
}
