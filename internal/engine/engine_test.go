package engine

import (
	"context"
	"testing"
	"time"

	"oddsarb.dev/core/internal/arbitrage"
	"oddsarb.dev/core/internal/marketdata"
	"oddsarb.dev/core/internal/matcher"
	"oddsarb.dev/core/internal/priceseries"
	"oddsarb.dev/core/internal/strategy"
	"oddsarb.dev/core/internal/venue"
)

func binaryMarket(v venue.ID, id string, yesAsk, yesSize, noAsk, noSize float64) venue.Market {
	return venue.Market{
		ID: id, Venue: v, ExternalID: id, IsActive: true, Status: venue.MarketActive,
		Outcomes: []venue.Outcome{
			{ID: id + ":yes", Type: venue.OutcomeYes, BestBid: yesAsk - 0.01, BestAsk: yesAsk, AskSize: yesSize},
			{ID: id + ":no", Type: venue.OutcomeNo, BestBid: noAsk - 0.01, BestAsk: noAsk, AskSize: noSize},
		},
	}
}

type fakeClient struct {
	venue.Client
	id venue.ID
}

func (f fakeClient) ID() venue.ID              { return f.id }
func (f fakeClient) TakerFee(string) float64   { return 0 }

func TestMarketCacheSeedAndApplyUpdate(t *testing.T) {
	c := newMarketCache()
	c.seed(venue.Polymarket, []venue.Market{binaryMarket(venue.Polymarket, "m1", 0.5, 100, 0.5, 100)})

	pu := marketdata.PriceUpdate{Venue: venue.Polymarket, MarketID: "m1", OutcomeID: "m1:yes", BestAsk: 0.6, BestBid: 0.59}
	mkt, ok := c.applyUpdate(pu)
	if !ok {
		t.Fatal("expected market to be found")
	}
	if mkt.Outcomes[0].BestAsk != 0.6 {
		t.Fatalf("expected updated ask 0.6, got %v", mkt.Outcomes[0].BestAsk)
	}
	if mkt.Outcomes[1].BestAsk != 0.5 {
		t.Fatalf("expected untouched NO outcome ask 0.5, got %v", mkt.Outcomes[1].BestAsk)
	}

	if _, ok := c.applyUpdate(marketdata.PriceUpdate{Venue: venue.Kalshi, MarketID: "unknown"}); ok {
		t.Fatal("expected unknown market to miss")
	}
}

func TestPairIndexLookup(t *testing.T) {
	idx := newPairIndex()
	pair := matcher.MarketPair{
		Polymarket: venue.Market{ID: "p1"},
		Kalshi:     venue.Market{ID: "k1"},
	}
	idx.rebuild([]matcher.MarketPair{pair})

	if _, ok := idx.lookup(venue.Polymarket, "p1"); !ok {
		t.Fatal("expected polymarket side lookup to hit")
	}
	if _, ok := idx.lookup(venue.Kalshi, "k1"); !ok {
		t.Fatal("expected kalshi side lookup to hit")
	}
	if _, ok := idx.lookup(venue.Polymarket, "nonexistent"); ok {
		t.Fatal("expected miss for unmatched market")
	}
}

func TestDebounceScanEnforcesFloor(t *testing.T) {
	e := &Engine{cfg: Config{ScanDebounceMs: 50}, lastScan: make(map[marketdata.Key]time.Time)}
	key := marketdata.Key{Venue: venue.Polymarket, MarketID: "m1", OutcomeID: "m1:yes"}

	if !e.debounceScan(key) {
		t.Fatal("expected first scan to pass")
	}
	if e.debounceScan(key) {
		t.Fatal("expected immediate second scan to be debounced")
	}
	time.Sleep(60 * time.Millisecond)
	if !e.debounceScan(key) {
		t.Fatal("expected scan to pass again after the debounce interval")
	}
}

func TestCooldownGatesScans(t *testing.T) {
	e := &Engine{cfg: Config{CooldownAfterExecutionMs: 30}}
	if e.inGlobalCooldown() {
		t.Fatal("expected no cooldown before any execution")
	}
	e.enterCooldown()
	if !e.inGlobalCooldown() {
		t.Fatal("expected cooldown immediately after entering it")
	}
	time.Sleep(40 * time.Millisecond)
	if e.inGlobalCooldown() {
		t.Fatal("expected cooldown to have expired")
	}
}

func TestDetectArbitrageFindsSingleVenueOpportunity(t *testing.T) {
	m := binaryMarket(venue.Polymarket, "m1", 0.45, 100, 0.45, 100) // sums to 0.90
	e := &Engine{
		cfg: Config{EnableSinglePlatformArb: true},
		deps: Dependencies{
			Venues:   map[venue.ID]venue.Client{venue.Polymarket: fakeClient{id: venue.Polymarket}},
			Detector: arbitrage.New(),
		},
		markets: newMarketCache(),
		pairs:   newPairIndex(),
	}
	opp := e.detectArbitrage(venue.Polymarket, m)
	if opp == nil {
		t.Fatal("expected a single-venue arbitrage opportunity")
	}
	if opp.MaxSize != 100 {
		t.Fatalf("expected maxSize 100, got %v", opp.MaxSize)
	}
}

func TestDetectArbitrageDisabledBySingleFlagFindsNothing(t *testing.T) {
	m := binaryMarket(venue.Polymarket, "m1", 0.45, 100, 0.45, 100)
	e := &Engine{
		cfg: Config{EnableSinglePlatformArb: false},
		deps: Dependencies{
			Venues:   map[venue.ID]venue.Client{venue.Polymarket: fakeClient{id: venue.Polymarket}},
			Detector: arbitrage.New(),
		},
		markets: newMarketCache(),
		pairs:   newPairIndex(),
	}
	if opp := e.detectArbitrage(venue.Polymarket, m); opp != nil {
		t.Fatal("expected no opportunity with single-platform arb disabled")
	}
}

type fakeStrategy struct {
	signals []strategy.TradingSignal
}

func (f *fakeStrategy) Start(ctx context.Context) error { return nil }
func (f *fakeStrategy) Stop(ctx context.Context) error  { return nil }
func (f *fakeStrategy) OnPriceUpdate(in strategy.Input) {}
func (f *fakeStrategy) EmitSignals() []strategy.TradingSignal {
	out := f.signals
	f.signals = nil
	return out
}

func TestDetectSignalsPicksHighestConfidence(t *testing.T) {
	low := &fakeStrategy{signals: []strategy.TradingSignal{{ID: "low", Confidence: 0.4}}}
	high := &fakeStrategy{signals: []strategy.TradingSignal{{ID: "high", Confidence: 0.9}}}
	e := &Engine{
		deps: Dependencies{
			Strategies: []strategy.Strategy{low, high},
			Prices:     priceseries.NewStore(10),
		},
	}
	pu := marketdata.PriceUpdate{Venue: venue.Polymarket, MarketID: "m1", OutcomeID: "m1:yes", Timestamp: time.Now()}
	sig, v := e.detectSignals(pu, binaryMarket(venue.Polymarket, "m1", 0.5, 100, 0.5, 100))
	if sig == nil || sig.ID != "high" {
		t.Fatalf("expected the higher-confidence signal to win, got %+v", sig)
	}
	if v != venue.Polymarket {
		t.Fatalf("expected signal venue to match the triggering price update, got %s", v)
	}
}

func TestTopByVolumeOrdersDescendingAndTruncates(t *testing.T) {
	markets := []venue.Market{
		{ID: "a", Volume24h: 10},
		{ID: "b", Volume24h: 50},
		{ID: "c", Volume24h: 30},
	}
	top := topByVolume(markets, 2)
	if len(top) != 2 || top[0].ID != "b" || top[1].ID != "c" {
		t.Fatalf("expected [b,c] by descending volume, got %+v", top)
	}
}
