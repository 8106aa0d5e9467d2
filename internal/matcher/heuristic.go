package matcher

import (
	"math"
	"regexp"

	"oddsarb.dev/core/internal/venue"
)

// patternBonus is awarded when both titles match the same "shape" of
// question (spec.md §4.6's examples: "Will X win", "X by YYYY", "Price of
// X").
const patternBonus = 0.1

// dateProximityBonus is the maximum bonus awarded when both markets'
// end dates coincide exactly, decaying linearly to zero at maxEndDateSkew.
const dateProximityBonus = 0.1

// heuristicCap bounds the fallback scorer's confidence (spec.md §4.6).
const heuristicCap = 0.95

var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^will .+ win`),
	regexp.MustCompile(`(?i) by \d{4}`),
	regexp.MustCompile(`(?i)^price of `),
	regexp.MustCompile(`(?i)^will .+ reach`),
	regexp.MustCompile(`(?i)^will .+ happen`),
}

func sharedPattern(a, b string) bool {
	for _, p := range titlePatterns {
		if p.MatchString(a) && p.MatchString(b) {
			return true
		}
	}
	return false
}

// heuristicVerify combines Jaccard similarity, shared question-shape
// patterns, and end-date proximity into a capped confidence score when no
// external verifier is configured.
func heuristicVerify(poly, kalshi venue.Market, similarity float64) VerifyResult {
	score := similarity
	if sharedPattern(poly.Title, kalshi.Title) {
		score += patternBonus
	}

	skew := math.Abs(poly.EndDate.Sub(kalshi.EndDate).Hours())
	maxSkewHours := maxEndDateSkew.Hours()
	if skew <= maxSkewHours {
		score += dateProximityBonus * (1 - skew/maxSkewHours)
	}

	if score > heuristicCap {
		score = heuristicCap
	}

	return VerifyResult{
		IsMatch:       score >= acceptThreshold,
		Confidence:    score,
		Reasoning:     "heuristic: jaccard+pattern+date-proximity",
		PolyOutcome:   venue.OutcomeYes,
		KalshiOutcome: venue.OutcomeYes,
	}
}
