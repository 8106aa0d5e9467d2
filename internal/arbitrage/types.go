// Package arbitrage implements the Arbitrage Detector (C7, spec.md §4.7):
// single-venue probability-sum arbitrage and cross-venue complementary-pair
// arbitrage, plus pre-execution re-validation.
package arbitrage

import (
	"time"

	"oddsarb.dev/core/internal/venue"
)

// Kind distinguishes single-venue from cross-venue opportunities.
type Kind string

const (
	KindSinglePlatform Kind = "SinglePlatform"
	KindCrossPlatform  Kind = "CrossPlatform"
)

// Leg is one side of an opportunity's execution plan.
type Leg struct {
	Venue     venue.ID
	MarketID  string
	OutcomeID string
	Side      venue.Side
	Price     float64
	Size      float64
	MaxSize   float64
}

// Opportunity is a detected arbitrage candidate (spec.md §3).
type Opportunity struct {
	ID          string
	Kind        Kind
	Legs        []Leg
	GrossSpread float64
	NetSpread   float64
	SpreadBps   float64
	MaxSize     float64
	MaxProfit   float64
	Confidence  float64
	DetectedAt  time.Time
	ExpiresAt   time.Time
	IsValid     bool
}

// FeeFunc returns the taker fee rate for a given outcome on a venue.
type FeeFunc func(outcomeID string) float64

// crossPlatformBuffer accounts for oracle/settlement risk on cross-venue
// pairs (spec.md §4.7). Detector.CrossPlatformBufferOverride replaces it
// with the configured crossPlatformSpreadBuffer (spec.md §6) when set.
const crossPlatformBuffer = 0.15

// opportunityTTL bounds how long a detected opportunity remains eligible
// for dispatch before it must be re-detected.
const opportunityTTL = 5 * time.Second
