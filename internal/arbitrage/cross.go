package arbitrage

import (
	"time"

	"github.com/google/uuid"

	"oddsarb.dev/core/internal/matcher"
	"oddsarb.dev/core/internal/venue"
)

// DetectCrossVenue evaluates both complementary pairings for a matched
// pair — (i) BUY poly.YES + BUY kalshi.NO, (ii) BUY poly.NO + BUY
// kalshi.YES — and returns the higher-profit one, or nil if neither clears
// the threshold (spec.md §4.7). poly/kalshi are fresh market snapshots for
// the pair's two legs; feePoly/feeKalshi compute each venue's taker fee.
func (d *Detector) DetectCrossVenue(pair matcher.MarketPair, poly, kalshi venue.Market, feePoly, feeKalshi FeeFunc) *Opportunity {
	polyYes, polyNo := splitOutcomes(poly)
	kalshiYes, kalshiNo := splitOutcomes(kalshi)
	if polyYes == nil || polyNo == nil || kalshiYes == nil || kalshiNo == nil {
		return nil
	}

	a := d.evaluatePairing(pair, polyYes, kalshiNo, feePoly, feeKalshi)
	b := d.evaluatePairing(pair, polyNo, kalshiYes, feePoly, feeKalshi)

	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.MaxProfit >= b.MaxProfit:
		return a
	default:
		return b
	}
}

func (d *Detector) evaluatePairing(pair matcher.MarketPair, polyLeg, kalshiLeg *venue.Outcome, feePoly, feeKalshi FeeFunc) *Opportunity {
	if !polyLeg.Quoted() || !kalshiLeg.Quoted() {
		return nil
	}

	gross := 1 - polyLeg.BestAsk - kalshiLeg.BestAsk - d.crossPlatformBuffer()
	net := gross - feePoly(polyLeg.ID)*polyLeg.BestAsk - feeKalshi(kalshiLeg.ID)*kalshiLeg.BestAsk
	spreadBps := net * 10000

	threshold := d.minSpreadBps()
	if spreadBps < threshold {
		return nil
	}

	maxSize := min(polyLeg.AskSize, kalshiLeg.AskSize)
	now := time.Now()
	return &Opportunity{
		ID:   uuid.NewString(),
		Kind: KindCrossPlatform,
		Legs: []Leg{
			{Venue: venue.Polymarket, MarketID: pair.Polymarket.ID, OutcomeID: polyLeg.ID, Side: venue.SideBuy, Price: polyLeg.BestAsk, Size: maxSize, MaxSize: polyLeg.AskSize},
			{Venue: venue.Kalshi, MarketID: pair.Kalshi.ID, OutcomeID: kalshiLeg.ID, Side: venue.SideBuy, Price: kalshiLeg.BestAsk, Size: maxSize, MaxSize: kalshiLeg.AskSize},
		},
		GrossSpread: gross,
		NetSpread:   net,
		SpreadBps:   spreadBps,
		MaxSize:     maxSize,
		MaxProfit:   net * maxSize,
		Confidence:  pair.Confidence, // carried over from the matcher (spec.md §4.7)
		DetectedAt:  now,
		ExpiresAt:   now.Add(opportunityTTL),
		IsValid:     true,
	}
}
