package arbitrage

import (
	"sort"

	"oddsarb.dev/core/internal/venue"
)

// maxAskDrift and minSizeFraction bound the pre-execution re-validation
// check (spec.md §4.7).
const (
	maxAskDrift     = 0.01
	minSizeFraction = 0.5
)

// Revalidate re-checks every leg against current order books: each leg's
// best ask must still be within maxAskDrift of the quoted price, and
// available size must be at least minSizeFraction of the requested size.
// It mutates opp.IsValid in place and returns the same pointer.
func Revalidate(opp *Opportunity, currentBooks map[string]venue.OrderBook) *Opportunity {
	for _, leg := range opp.Legs {
		book, ok := currentBooks[leg.OutcomeID]
		if !ok {
			opp.IsValid = false
			return opp
		}
		ask := book.BestAsk()
		if len(book.Asks) == 0 {
			opp.IsValid = false
			return opp
		}
		drift := (ask.Price - leg.Price) / leg.Price
		if drift < 0 {
			drift = -drift
		}
		if drift > maxAskDrift {
			opp.IsValid = false
			return opp
		}
		if ask.Size < leg.Size*minSizeFraction {
			opp.IsValid = false
			return opp
		}
	}
	opp.IsValid = true
	return opp
}

// RankOpportunities sorts by maxProfit descending, tie-broken by earlier
// detectedAt (spec.md §4.7).
func RankOpportunities(opps []*Opportunity) []*Opportunity {
	sort.SliceStable(opps, func(i, j int) bool {
		if opps[i].MaxProfit != opps[j].MaxProfit {
			return opps[i].MaxProfit > opps[j].MaxProfit
		}
		return opps[i].DetectedAt.Before(opps[j].DetectedAt)
	})
	return opps
}
