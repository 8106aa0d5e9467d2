package arbitrage

import (
	"time"

	"github.com/google/uuid"

	"oddsarb.dev/core/internal/venue"
)

// minSpreadBps is the default acceptance threshold (spec.md §4.7); callers
// may override via Detector.MinSpreadBpsOverride.
const minSpreadBps = 50.0 // 0.5%

// DetectSingleVenue evaluates the binary-market probability-sum invariant
// P(YES)+P(NO)=1 on one venue's market snapshot. feeYES/feeNO are the taker
// fee rates for each outcome.
func (d *Detector) DetectSingleVenue(m venue.Market, feeYES, feeNO float64) *Opportunity {
	if !m.Binary() || !m.IsActive {
		return nil
	}
	yes, no := splitOutcomes(m)
	if yes == nil || no == nil || !yes.Quoted() || !no.Quoted() {
		return nil
	}

	gross := 1 - yes.BestAsk - no.BestAsk
	net := gross - feeYES*yes.BestAsk - feeNO*no.BestAsk
	spreadBps := net * 10000

	threshold := d.minSpreadBps()
	if spreadBps < threshold {
		return nil
	}

	maxSize := min(yes.AskSize, no.AskSize)
	now := time.Now()
	return &Opportunity{
		ID:   uuid.NewString(),
		Kind: KindSinglePlatform,
		Legs: []Leg{
			{Venue: m.Venue, MarketID: m.ID, OutcomeID: yes.ID, Side: venue.SideBuy, Price: yes.BestAsk, Size: maxSize, MaxSize: yes.AskSize},
			{Venue: m.Venue, MarketID: m.ID, OutcomeID: no.ID, Side: venue.SideBuy, Price: no.BestAsk, Size: maxSize, MaxSize: no.AskSize},
		},
		GrossSpread: gross,
		NetSpread:   net,
		SpreadBps:   spreadBps,
		MaxSize:     maxSize,
		MaxProfit:   net * maxSize,
		Confidence:  1.0, // single-venue math is exact, no matcher uncertainty
		DetectedAt:  now,
		ExpiresAt:   now.Add(opportunityTTL),
		IsValid:     true,
	}
}

func splitOutcomes(m venue.Market) (yes, no *venue.Outcome) {
	for i := range m.Outcomes {
		o := &m.Outcomes[i]
		switch o.Type {
		case venue.OutcomeYes:
			yes = o
		case venue.OutcomeNo:
			no = o
		}
	}
	return
}
