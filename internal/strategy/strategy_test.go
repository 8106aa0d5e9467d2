package strategy

import (
	"testing"
	"time"

	"oddsarb.dev/core/internal/marketdata"
	"oddsarb.dev/core/internal/priceseries"
	"oddsarb.dev/core/internal/venue"
)

func binaryMarket(id string, yesAsk, yesBid, noAsk, noBid float64, end time.Time) venue.Market {
	return venue.Market{
		ID: id, EndDate: end, Status: venue.MarketActive, IsActive: true,
		Outcomes: []venue.Outcome{
			{ID: id + ":yes", Type: venue.OutcomeYes, BestAsk: yesAsk, BestBid: yesBid, AskSize: 100, BidSize: 100},
			{ID: id + ":no", Type: venue.OutcomeNo, BestAsk: noAsk, BestBid: noBid, AskSize: 100, BidSize: 100},
		},
	}
}

func TestProbabilitySumEmitsBelowEpsilon(t *testing.T) {
	s := NewProbabilitySumStrategy("ps1", 0.3) // epsilon 0.003
	m := binaryMarket("poly:m1", 0.5, 0.49, 0.49, 0.48, time.Now().Add(48*time.Hour))
	s.OnPriceUpdate(Input{Market: m})
	sigs := s.EmitSignals()
	if len(sigs) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(sigs))
	}
	if len(sigs[0].Batch) != 2 {
		t.Fatalf("expected 2-leg batch, got %d", len(sigs[0].Batch))
	}
}

func TestProbabilitySumRejectsAtOrAboveEpsilon(t *testing.T) {
	s := NewProbabilitySumStrategy("ps1", 0.3)
	// sum = 0.5+0.497 = 0.997 = 1-epsilon exactly, should not fire (>=)
	m := binaryMarket("poly:m1", 0.5, 0.49, 0.497, 0.48, time.Now().Add(48*time.Hour))
	s.OnPriceUpdate(Input{Market: m})
	if sigs := s.EmitSignals(); len(sigs) != 0 {
		t.Fatalf("expected no signal at boundary, got %d", len(sigs))
	}
}

func TestProbabilitySumRespectsCooldown(t *testing.T) {
	s := NewProbabilitySumStrategy("ps1", 0.3)
	m := binaryMarket("poly:m1", 0.5, 0.49, 0.49, 0.48, time.Now().Add(48*time.Hour))
	s.OnPriceUpdate(Input{Market: m})
	s.OnPriceUpdate(Input{Market: m})
	if sigs := s.EmitSignals(); len(sigs) != 1 {
		t.Fatalf("expected cooldown to suppress second signal, got %d", len(sigs))
	}
}

func TestEndgameRejectsOutsideHoursWindow(t *testing.T) {
	s := NewEndgameStrategy("eg1", 1, 24, 0.8, 0.99, 10)
	m := binaryMarket("poly:m2", 0.95, 0.94, 0.1, 0.09, time.Now().Add(72*time.Hour))
	s.OnPriceUpdate(Input{Market: m})
	if sigs := s.EmitSignals(); len(sigs) != 0 {
		t.Fatalf("expected no signal outside hours window, got %d", len(sigs))
	}
}

func TestEndgameEmitsWithinWindowAboveReturnThreshold(t *testing.T) {
	s := NewEndgameStrategy("eg1", 1, 24, 0.8, 0.99, 10)
	m := binaryMarket("poly:m2", 0.95, 0.94, 0.1, 0.09, time.Now().Add(2*time.Hour))
	s.OnPriceUpdate(Input{Market: m})
	sigs := s.EmitSignals()
	if len(sigs) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(sigs))
	}
	if sigs[0].Side != venue.SideBuy {
		t.Fatalf("expected BUY side, got %s", sigs[0].Side)
	}
}

func TestMomentumRequiresTrendAndRSIConfirmation(t *testing.T) {
	s := NewMomentumStrategy("mo1", 0.05, 1.0)
	m := binaryMarket("poly:m3", 0.5, 0.49, 0.5, 0.49, time.Now().Add(48*time.Hour))
	update := marketdata.PriceUpdate{MarketID: m.ID, BestAsk: 0.5, BestBid: 0.49, AskSize: 50}
	stats := priceseries.Stats{Momentum: 0.1, ChangePercent: 2, Trend: priceseries.TrendUp, RSI: 60, SMA: 0.5}
	s.OnPriceUpdate(Input{Update: update, Market: m, Stats: stats})
	if sigs := s.EmitSignals(); len(sigs) != 1 {
		t.Fatalf("expected momentum signal with trend+rsi confirmation, got %d", len(sigs))
	}
}

func TestMomentumRejectsWhenRSIOverbought(t *testing.T) {
	s := NewMomentumStrategy("mo1", 0.05, 1.0)
	m := binaryMarket("poly:m3", 0.5, 0.49, 0.5, 0.49, time.Now().Add(48*time.Hour))
	update := marketdata.PriceUpdate{MarketID: m.ID, BestAsk: 0.5, BestBid: 0.49, AskSize: 50}
	stats := priceseries.Stats{Momentum: 0.1, ChangePercent: 2, Trend: priceseries.TrendUp, RSI: 75, SMA: 0.5}
	s.OnPriceUpdate(Input{Update: update, Market: m, Stats: stats})
	if sigs := s.EmitSignals(); len(sigs) != 0 {
		t.Fatalf("expected no signal when RSI>=70, got %d", len(sigs))
	}
}

func TestMeanReversionEmitsSellWhenOverbought(t *testing.T) {
	s := NewMeanReversionStrategy("mr1", 0.02, 0.1)
	m := binaryMarket("poly:m4", 0.55, 0.54, 0.45, 0.44, time.Now().Add(48*time.Hour))
	update := marketdata.PriceUpdate{MarketID: m.ID, BestBid: 0.54, BestAsk: 0.55, MidPrice: 0.545, BidSize: 20}
	stats := priceseries.Stats{SMA: 0.5}
	s.OnPriceUpdate(Input{Update: update, Market: m, Stats: stats})
	sigs := s.EmitSignals()
	if len(sigs) != 1 || sigs[0].Side != venue.SideSell {
		t.Fatalf("expected SELL reversion signal, got %+v", sigs)
	}
}

func TestMeanReversionEmitsBuyWhenOversold(t *testing.T) {
	s := NewMeanReversionStrategy("mr1", 0.02, 0.1)
	m := binaryMarket("poly:m4", 0.45, 0.44, 0.55, 0.54, time.Now().Add(48*time.Hour))
	update := marketdata.PriceUpdate{MarketID: m.ID, BestBid: 0.44, BestAsk: 0.45, MidPrice: 0.45, AskSize: 20}
	stats := priceseries.Stats{SMA: 0.5}
	s.OnPriceUpdate(Input{Update: update, Market: m, Stats: stats})
	sigs := s.EmitSignals()
	if len(sigs) != 1 || sigs[0].Side != venue.SideBuy {
		t.Fatalf("expected BUY reversion signal, got %+v", sigs)
	}
}

func TestImbalanceEmitsOnlyOnSideChange(t *testing.T) {
	s := NewImbalanceStrategy("ib1", 1.5)
	m := binaryMarket("poly:m5", 0.5, 0.49, 0.5, 0.49, time.Now().Add(48*time.Hour))
	update := marketdata.PriceUpdate{MarketID: m.ID, OutcomeID: m.Outcomes[0].ID, BestAsk: 0.5, BestBid: 0.49, BidSize: 200, AskSize: 100}
	s.OnPriceUpdate(Input{Update: update, Market: m})
	// immediately repeat the same imbalance direction: cooldown+same-side suppress a second emission
	s.OnPriceUpdate(Input{Update: update, Market: m})
	sigs := s.EmitSignals()
	if len(sigs) != 1 {
		t.Fatalf("expected exactly 1 signal, got %d", len(sigs))
	}
	if sigs[0].Side != venue.SideBuy {
		t.Fatalf("expected BUY on bid-heavy imbalance, got %s", sigs[0].Side)
	}
}

func TestImbalanceIgnoresBelowThreshold(t *testing.T) {
	s := NewImbalanceStrategy("ib1", 1.5)
	m := binaryMarket("poly:m5", 0.5, 0.49, 0.5, 0.49, time.Now().Add(48*time.Hour))
	update := marketdata.PriceUpdate{MarketID: m.ID, BestAsk: 0.5, BestBid: 0.49, BidSize: 110, AskSize: 100}
	s.OnPriceUpdate(Input{Update: update, Market: m})
	if sigs := s.EmitSignals(); len(sigs) != 0 {
		t.Fatalf("expected no signal below ratio threshold, got %d", len(sigs))
	}
}

func TestBlendConfidenceBounded(t *testing.T) {
	cases := []priceseries.Stats{
		{Momentum: 5, RSI: 100, VolumeSpike: true, SMA: 10, VWAP: 1},
		{Momentum: -5, RSI: 0, VolumeSpike: false, SMA: 1, VWAP: 10},
		{Momentum: 0, RSI: 50, VolumeSpike: false},
	}
	for _, c := range cases {
		v := blendConfidence(c)
		if v < 0 || v > 1 {
			t.Fatalf("blendConfidence out of bounds: %f for %+v", v, c)
		}
	}
}

func TestCooldownTrackerReadyAfterExpiry(t *testing.T) {
	ct := newCooldownTracker()
	if !ct.Ready("m1") {
		t.Fatal("expected ready with no prior mark")
	}
	ct.MarkUntil("m1", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if !ct.Ready("m1") {
		t.Fatal("expected ready after cooldown expiry")
	}
}
