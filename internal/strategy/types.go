// Package strategy implements the Strategy Detectors (C8, spec.md §4.8).
// spec.md §9 replaces the teacher's BaseStrategy class hierarchy with a
// capability-set interface; there is no virtual base, each strategy is a
// small struct implementing Strategy directly — grounded on the shape
// already used by internal/strategy/orderbook_imbalance.go (a struct with
// its own OnDepthUpdate-style ingestion method) generalized from one
// concrete strategy to the interface every strategy here satisfies.
package strategy

import (
	"context"
	"time"

	"oddsarb.dev/core/internal/marketdata"
	"oddsarb.dev/core/internal/priceseries"
	"oddsarb.dev/core/internal/venue"
)

// BatchLeg is one leg of a multi-leg signal (spec.md §3's
// metadata.batch[]).
type BatchLeg struct {
	OutcomeID string
	Side      venue.Side
	Price     float64
	Size      float64
}

// TradingSignal is a strategy's trade intent (spec.md §3).
type TradingSignal struct {
	ID         string
	StrategyID string
	MarketID   string
	OutcomeID  string
	Side       venue.Side
	Price      float64
	Size       float64
	Confidence float64
	Reason     string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Batch      []BatchLeg // non-nil for batch (multi-leg) intents
}

// Input bundles what a strategy needs to react to one PriceUpdate: the
// update itself, the full binary market snapshot it belongs to (both
// outcomes, already cache-fresh), and the C5 price statistics for the
// specific outcome that just updated. This generalizes spec.md §9's
// illustrative `OnPriceUpdate(PriceUpdate)` signature to carry the market
// and stats context every concrete strategy below actually needs, rather
// than having each strategy re-derive them from a bare price tick.
type Input struct {
	Update marketdata.PriceUpdate
	Market venue.Market
	Stats  priceseries.Stats
}

// Strategy is the capability set every concrete strategy implements
// (spec.md §9): no shared base, each variant is a tagged-union-style struct.
type Strategy interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	OnPriceUpdate(in Input)
	EmitSignals() []TradingSignal
}
