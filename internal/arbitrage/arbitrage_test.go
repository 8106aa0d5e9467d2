package arbitrage

import (
	"testing"
	"time"

	"oddsarb.dev/core/internal/matcher"
	"oddsarb.dev/core/internal/venue"
)

func binaryMarket(v venue.ID, ext string, yesAsk, yesAskSize, noAsk, noAskSize float64) venue.Market {
	return venue.Market{
		ID: string(v) + ":" + ext, Venue: v, ExternalID: ext, IsActive: true, Status: venue.MarketActive,
		Outcomes: []venue.Outcome{
			{ID: string(v) + ":" + ext + ":yes", Type: venue.OutcomeYes, BestBid: yesAsk - 0.01, BestAsk: yesAsk, AskSize: yesAskSize},
			{ID: string(v) + ":" + ext + ":no", Type: venue.OutcomeNo, BestBid: noAsk - 0.01, BestAsk: noAsk, AskSize: noAskSize},
		},
	}
}

func zeroFee(string) float64 { return 0 }

func TestDetectSingleVenueFindsSumArbitrage(t *testing.T) {
	m := binaryMarket(venue.Polymarket, "m1", 0.45, 100, 0.45, 100) // sums to 0.90
	d := New()
	opp := d.DetectSingleVenue(m, 0, 0)
	if opp == nil {
		t.Fatalf("expected opportunity for ask sum 0.90")
	}
	if opp.SpreadBps <= 0 {
		t.Fatalf("expected positive spread, got %v", opp.SpreadBps)
	}
	if opp.MaxSize != 100 {
		t.Fatalf("expected maxSize 100, got %v", opp.MaxSize)
	}
}

func TestDetectSingleVenueNoArbitrageAboveOne(t *testing.T) {
	m := binaryMarket(venue.Polymarket, "m1", 0.55, 100, 0.55, 100) // sums to 1.10
	d := New()
	opp := d.DetectSingleVenue(m, 0, 0)
	if opp != nil {
		t.Fatalf("expected no opportunity when ask sum exceeds 1, got %+v", opp)
	}
}

func TestDetectSingleVenueFeesCanKillOpportunity(t *testing.T) {
	m := binaryMarket(venue.Polymarket, "m1", 0.495, 100, 0.495, 100) // gross 0.01
	d := New()
	opp := d.DetectSingleVenue(m, 0.05, 0.05) // fees exceed the thin gross spread
	if opp != nil {
		t.Fatalf("expected fees to eliminate thin spread, got %+v", opp)
	}
}

func TestDetectCrossVenuePrefersHigherProfitPairing(t *testing.T) {
	poly := binaryMarket(venue.Polymarket, "p1", 0.30, 50, 0.90, 50)
	kalshi := binaryMarket(venue.Kalshi, "k1", 0.90, 50, 0.30, 50)
	pair := matcher.MarketPair{Polymarket: poly, Kalshi: kalshi, Confidence: 0.9}

	d := &Detector{MinSpreadBpsOverride: 1}
	opp := d.DetectCrossVenue(pair, poly, kalshi, zeroFee, zeroFee)
	if opp == nil {
		t.Fatalf("expected a cross-venue opportunity")
	}
	if opp.Confidence != 0.9 {
		t.Fatalf("expected confidence carried from pair, got %v", opp.Confidence)
	}
	// poly.YES(0.30)+kalshi.NO(0.30) is profitable; poly.NO(0.90)+kalshi.YES(0.90) is not.
	if opp.Legs[0].OutcomeID != poly.Outcomes[0].ID || opp.Legs[1].OutcomeID != kalshi.Outcomes[1].ID {
		t.Fatalf("expected poly.YES + kalshi.NO pairing, got %s + %s", opp.Legs[0].OutcomeID, opp.Legs[1].OutcomeID)
	}
}

func TestRevalidateFlagsDriftedPrice(t *testing.T) {
	opp := &Opportunity{
		Legs: []Leg{{OutcomeID: "o1", Price: 0.5, Size: 10}},
	}
	books := map[string]venue.OrderBook{
		"o1": {Asks: []venue.PriceLevel{{Price: 0.52, Size: 20}}}, // 4% drift > 1%
	}
	Revalidate(opp, books)
	if opp.IsValid {
		t.Fatalf("expected drifted price to invalidate opportunity")
	}
}

func TestRevalidateFlagsInsufficientSize(t *testing.T) {
	opp := &Opportunity{
		Legs: []Leg{{OutcomeID: "o1", Price: 0.5, Size: 10}},
	}
	books := map[string]venue.OrderBook{
		"o1": {Asks: []venue.PriceLevel{{Price: 0.5, Size: 4}}}, // < 50% of requested
	}
	Revalidate(opp, books)
	if opp.IsValid {
		t.Fatalf("expected insufficient size to invalidate opportunity")
	}
}

func TestRankOpportunitiesOrdersByProfitThenTime(t *testing.T) {
	now := time.Now()
	a := &Opportunity{MaxProfit: 10, DetectedAt: now}
	b := &Opportunity{MaxProfit: 10, DetectedAt: now.Add(-time.Second)}
	c := &Opportunity{MaxProfit: 20, DetectedAt: now}

	ranked := RankOpportunities([]*Opportunity{a, b, c})
	if ranked[0] != c {
		t.Fatalf("expected highest-profit opportunity first")
	}
	if ranked[1] != b {
		t.Fatalf("expected earlier-detected opportunity to win the profit tie")
	}
}
