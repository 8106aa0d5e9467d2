// Package matcher implements the Market Matcher (C6, spec.md §4.6): it
// finds candidate cross-venue market pairs by text similarity, then
// verifies them either via a pluggable external verifier or a heuristic
// fallback scorer.
package matcher

import (
	"time"

	"oddsarb.dev/core/internal/venue"
)

// minSimilarity/maxCandidates/maxEndDateSkew gate Stage 1 candidate search.
const (
	minSimilarity  = 0.3
	maxCandidates  = 50
	maxEndDateSkew = 7 * 24 * time.Hour
)

// acceptThreshold is the Stage 2 confidence floor below which a pair is
// rejected (spec.md §4.6).
const acceptThreshold = 0.8

// MarketPair is an accepted cross-venue match, keyed polyExt:kalshiExt.
type MarketPair struct {
	Key            string
	Polymarket     venue.Market
	Kalshi         venue.Market
	PolyOutcome    venue.OutcomeType
	KalshiOutcome  venue.OutcomeType
	Confidence     float64
	Reasoning      string
	IsActive       bool
	MatchedAt      time.Time
}

func pairKey(poly, kalshi venue.Market) string {
	return poly.ExternalID + ":" + kalshi.ExternalID
}

// VerifyResult is the structured output of either verifier path.
type VerifyResult struct {
	IsMatch       bool
	Confidence    float64
	Reasoning     string
	PolyOutcome   venue.OutcomeType
	KalshiOutcome venue.OutcomeType
}

// ExternalVerifier is the pluggable LLM-backed verification boundary
// (spec.md §4.6/§9). Implementations are reached over HTTP/JSON — see
// DESIGN.md for why this replaces the teacher's grpc-based strategy
// verifier path.
type ExternalVerifier interface {
	Verify(poly, kalshi venue.Market) (VerifyResult, error)
}
