// Package orders implements the Order Manager (C11, spec.md §4.11): the
// central authority over orders, positions, and trades. Every order
// placement runs a fixed pre-write policy chain (kill switch, position
// limits, rate limiter, venue dispatch) before it touches a venue client or
// the paper-trading mirror. Grounded on the teacher's
// internal/order/executor.go (persist-then-dispatch-then-emit shape,
// gateway resolution by binding) and internal/order/dry_run.go (the
// MockExecutor's instant-fill/partial-fill/balance-ledger simulation,
// adapted from single-price-per-symbol spot accounting to per-(market,
// outcome) binary-contract accounting).
package orders

import (
	"errors"

	"oddsarb.dev/core/internal/marketdata"
	"oddsarb.dev/core/internal/venue"
)

// ErrKillSwitchActive is returned when the kill switch blocks all new
// orders (spec.md §4.11 step 1, §4.12).
var ErrKillSwitchActive = errors.New("orders: kill switch active")

// ErrLimitExceeded is returned when a position or exposure cap would be
// breached (spec.md §4.11 step 2).
type ErrLimitExceeded struct{ Reason string }

func (e *ErrLimitExceeded) Error() string { return "orders: limit exceeded: " + e.Reason }

// KillSwitch is the narrow view of the Risk Core (C12) the Order Manager
// needs. Defined here (not imported from internal/risk) to avoid a
// risk<->orders import cycle: C12 cancels open orders through the Order
// Manager, and the Order Manager checks C12's tripped state before every
// placement.
type KillSwitch interface {
	Active() bool
}

// PositionLimiter is the narrow view of C12's Position Limits component.
type PositionLimiter interface {
	// CheckOrder returns a non-nil error if placing req on v would breach a
	// per-market or aggregate exposure cap.
	CheckOrder(v venue.ID, req venue.OrderRequest) error
}

// PriceSource supplies cached top-of-book data for the paper-trading
// venue's instant/partial fill decision (spec.md §4.11).
type PriceSource interface {
	GetOrderBook(k marketdata.Key) (book venue.OrderBook, fresh bool, ok bool)
}

// noopKillSwitch/noopLimiter let the Manager run standalone (e.g. in
// tests) before C12 is wired in.
type noopKillSwitch struct{}

func (noopKillSwitch) Active() bool { return false }

type noopLimiter struct{}

func (noopLimiter) CheckOrder(venue.ID, venue.OrderRequest) error { return nil }
