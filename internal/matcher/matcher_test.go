package matcher

import (
	"testing"
	"time"

	"oddsarb.dev/core/internal/venue"
)

func market(venueID venue.ID, ext, title, desc string, end time.Time) venue.Market {
	return venue.Market{
		ID: string(venueID) + ":" + ext, Venue: venueID, ExternalID: ext,
		Title: title, Description: desc, EndDate: end, IsActive: true,
		Status: venue.MarketActive,
	}
}

func TestScanAcceptsSimilarMarkets(t *testing.T) {
	end := time.Now().Add(48 * time.Hour)
	poly := []venue.Market{market(venue.Polymarket, "p1", "Will the Fed raise rates in March", "Fed rate decision", end)}
	kalshi := []venue.Market{market(venue.Kalshi, "k1", "Will the Fed raise rates in March", "FOMC rate decision", end)}

	m := New(nil)
	accepted := m.Scan(poly, kalshi)
	if len(accepted) != 1 {
		t.Fatalf("expected 1 accepted pair, got %d", len(accepted))
	}
	if accepted[0].Confidence < acceptThreshold {
		t.Fatalf("accepted pair below threshold: %v", accepted[0].Confidence)
	}
}

func TestScanRejectsDissimilarMarkets(t *testing.T) {
	end := time.Now().Add(48 * time.Hour)
	poly := []venue.Market{market(venue.Polymarket, "p1", "Will it rain in Tokyo tomorrow", "weather", end)}
	kalshi := []venue.Market{market(venue.Kalshi, "k1", "Will the Lakers win the championship", "sports", end)}

	m := New(nil)
	accepted := m.Scan(poly, kalshi)
	if len(accepted) != 0 {
		t.Fatalf("expected 0 accepted pairs for dissimilar markets, got %d", len(accepted))
	}
}

func TestScanRejectsEndDateSkewBeyondWindow(t *testing.T) {
	poly := []venue.Market{market(venue.Polymarket, "p1", "Will the Fed raise rates in March", "Fed rate decision", time.Now())}
	kalshi := []venue.Market{market(venue.Kalshi, "k1", "Will the Fed raise rates in March", "FOMC rate decision", time.Now().Add(30*24*time.Hour))}

	m := New(nil)
	accepted := m.Scan(poly, kalshi)
	if len(accepted) != 0 {
		t.Fatalf("expected 0 accepted pairs when end dates skew beyond window, got %d", len(accepted))
	}
}

func TestDeactivateMarksPairsInactive(t *testing.T) {
	end := time.Now().Add(48 * time.Hour)
	poly := []venue.Market{market(venue.Polymarket, "p1", "Will the Fed raise rates in March", "Fed rate decision", end)}
	kalshi := []venue.Market{market(venue.Kalshi, "k1", "Will the Fed raise rates in March", "FOMC rate decision", end)}

	m := New(nil)
	m.Scan(poly, kalshi)
	if len(m.Pairs()) != 1 {
		t.Fatalf("expected 1 active pair before deactivation")
	}
	m.Deactivate("p1")
	if len(m.Pairs()) != 0 {
		t.Fatalf("expected 0 active pairs after deactivation")
	}
}

func TestJaccardSimilarity(t *testing.T) {
	a := normalizedWords("Will the Fed raise rates")
	b := normalizedWords("Will the Fed raise rates")
	if sim := jaccard(a, b); sim != 1.0 {
		t.Fatalf("expected identical word sets to have similarity 1.0, got %v", sim)
	}
}
