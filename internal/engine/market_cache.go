package engine

import (
	"sync"

	"oddsarb.dev/core/internal/marketdata"
	"oddsarb.dev/core/internal/matcher"
	"oddsarb.dev/core/internal/venue"
)

// marketCache holds the latest known venue.Market snapshot per (venue,
// marketID), seeded from the initial GetMarkets universe fetch and kept
// current by folding each PriceUpdate's top-of-book into the matching
// outcome. Detectors and strategies need a full Market (both outcomes'
// quotes), but C4 only caches per-outcome PriceUpdate/OrderBook; this is
// the engine-local merge the teacher's orderbook_imbalance.go instead gets
// for free from a single-symbol feed.
type marketCache struct {
	mu      sync.RWMutex
	byVenue map[venue.ID]map[string]venue.Market // marketID -> Market
}

func newMarketCache() *marketCache {
	return &marketCache{byVenue: make(map[venue.ID]map[string]venue.Market)}
}

func (c *marketCache) seed(v venue.ID, markets []venue.Market) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.byVenue[v]
	if !ok {
		m = make(map[string]venue.Market)
		c.byVenue[v] = m
	}
	for _, mkt := range markets {
		m[mkt.ID] = mkt
	}
}

// applyUpdate folds a PriceUpdate into the cached market's matching
// outcome and returns the refreshed snapshot (ok=false if the market is
// not yet known).
func (c *marketCache) applyUpdate(pu marketdata.PriceUpdate) (venue.Market, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.byVenue[pu.Venue]
	if !ok {
		return venue.Market{}, false
	}
	mkt, ok := m[pu.MarketID]
	if !ok {
		return venue.Market{}, false
	}
	for i := range mkt.Outcomes {
		if mkt.Outcomes[i].ID == pu.OutcomeID {
			mkt.Outcomes[i].BestBid = pu.BestBid
			mkt.Outcomes[i].BestAsk = pu.BestAsk
			mkt.Outcomes[i].BidSize = pu.BidSize
			mkt.Outcomes[i].AskSize = pu.AskSize
			break
		}
	}
	m[pu.MarketID] = mkt
	return mkt, true
}

func (c *marketCache) get(v venue.ID, marketID string) (venue.Market, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byVenue[v]
	if !ok {
		return venue.Market{}, false
	}
	mkt, ok := m[marketID]
	return mkt, ok
}

// pairIndex resolves the active MarketPair a given (venue, marketID)
// participates in, for O(1) lookup on every PriceUpdate instead of
// scanning Matcher.Pairs() per tick.
type pairIndex struct {
	mu   sync.RWMutex
	byID map[string]matcher.MarketPair // "venue:marketId" -> pair
}

func newPairIndex() *pairIndex {
	return &pairIndex{byID: make(map[string]matcher.MarketPair)}
}

func (p *pairIndex) rebuild(pairs []matcher.MarketPair) {
	idx := make(map[string]matcher.MarketPair, len(pairs)*2)
	for _, pair := range pairs {
		idx[string(venue.Polymarket)+":"+pair.Polymarket.ID] = pair
		idx[string(venue.Kalshi)+":"+pair.Kalshi.ID] = pair
	}
	p.mu.Lock()
	p.byID = idx
	p.mu.Unlock()
}

func (p *pairIndex) lookup(v venue.ID, marketID string) (matcher.MarketPair, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pair, ok := p.byID[string(v)+":"+marketID]
	return pair, ok
}
