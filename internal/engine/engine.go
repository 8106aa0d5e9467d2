// Package engine implements the Trading Engine (C13, spec.md §4.13): it
// wires C1-C12 together and runs the detect-then-execute loop. Grounded on
// the teacher's internal/engine/impl.go for the "one struct holding every
// subsystem, Run dispatches to them" shape, and on internal/strategy/
// engine.go's handleTick for the event-driven react-then-collect-then-
// dispatch pattern — generalized here from a single strategy's tick
// handler to the multi-detector, pick-best-of-N dispatch spec.md §4.13
// describes.
package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"oddsarb.dev/core/internal/arbitrage"
	"oddsarb.dev/core/internal/events"
	"oddsarb.dev/core/internal/execution"
	"oddsarb.dev/core/internal/marketdata"
	"oddsarb.dev/core/internal/matcher"
	"oddsarb.dev/core/internal/orders"
	"oddsarb.dev/core/internal/persistence"
	"oddsarb.dev/core/internal/priceseries"
	"oddsarb.dev/core/internal/risk"
	"oddsarb.dev/core/internal/strategy"
	"oddsarb.dev/core/internal/venue"
	"oddsarb.dev/core/pkg/db"
)

// Dependencies bundles every already-constructed component the Engine
// orchestrates. Built by main.go; the Engine itself constructs none of
// these so each remains independently testable.
type Dependencies struct {
	Bus *events.Bus

	Venues map[venue.ID]venue.Client // concrete REST clients, also in paper-trading mode

	MarketData *marketdata.Service
	Prices     *priceseries.Store
	Matcher    *matcher.Matcher
	Detector   *arbitrage.Detector
	Strategies []strategy.Strategy

	SignalExecutor    *execution.SignalExecutor
	ArbitrageExecutor *execution.ArbitrageExecutor

	Orders     *orders.Manager
	KillSwitch *risk.KillSwitch

	// Persistence is optional: nil disables the execution-result log
	// (e.g. in tests), but spec.md §6 expects it wired in production so
	// daily P&L survives a restart.
	Persistence *persistence.ExecutionLog
}

// Engine is C13: it connects every venue, seeds the market/matched-pair
// universe, runs the scan/execute loop, and feeds realized P&L back to
// C12.
type Engine struct {
	cfg  Config
	deps Dependencies

	markets *marketCache
	pairs   *pairIndex

	mu             sync.Mutex
	cooldownUntil  time.Time
	lastScan       map[marketdata.Key]time.Time
	rankingWeights map[string]float64

	unsubscribe func()
}

// New builds an Engine. Run must be called to start it.
func New(cfg Config, deps Dependencies) *Engine {
	return &Engine{
		cfg:            cfg,
		deps:           deps,
		markets:        newMarketCache(),
		pairs:          newPairIndex(),
		lastScan:       make(map[marketdata.Key]time.Time),
		rankingWeights: make(map[string]float64),
	}
}

// Run executes spec.md §4.13's seven orchestration steps and blocks until
// ctx is cancelled, at which point it shuts down gracefully.
func (e *Engine) Run(ctx context.Context) error {
	universes, err := e.connectAndFetchUniverses(ctx)
	if err != nil {
		return err
	}

	if e.cfg.EnableCrossPlatformArb {
		e.scanMatcher(universes)
	}

	e.seedTrackedMarkets(universes)
	go e.deps.MarketData.Run(ctx)

	go e.deps.KillSwitch.Run(ctx)
	go e.scanLoop(ctx)

	ch, unsubscribe := e.deps.Bus.Subscribe(events.EventPriceUpdate, 256)
	e.unsubscribe = unsubscribe
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return ctx.Err()
		case payload, ok := <-ch:
			if !ok {
				return nil
			}
			pu, ok := payload.(marketdata.PriceUpdate)
			if !ok {
				continue
			}
			e.handlePriceUpdate(ctx, pu)
		}
	}
}

// connectAndFetchUniverses is step 1.
func (e *Engine) connectAndFetchUniverses(ctx context.Context) (map[venue.ID][]venue.Market, error) {
	universes := make(map[venue.ID][]venue.Market, len(e.deps.Venues))
	for id, client := range e.deps.Venues {
		if err := client.Connect(ctx); err != nil {
			log.Printf("engine: connect %s: %v", id, err)
			continue
		}
		active := true
		markets, err := client.GetMarkets(ctx, venue.MarketFilter{Active: &active})
		if err != nil {
			log.Printf("engine: fetch markets for %s: %v", id, err)
			continue
		}
		universes[id] = markets
		e.markets.seed(id, markets)
	}
	return universes, nil
}

// scanMatcher is step 2: run C6 once over the initial universes.
func (e *Engine) scanMatcher(universes map[venue.ID][]venue.Market) {
	poly := universes[venue.Polymarket]
	kalshi := universes[venue.Kalshi]
	if len(poly) == 0 || len(kalshi) == 0 {
		return
	}
	e.deps.Matcher.Scan(poly, kalshi)
	e.pairs.rebuild(e.deps.Matcher.Pairs())
}

// seedTrackedMarkets is step 3: subscribe C4 to the top-N markets per
// venue by 24h volume.
func (e *Engine) seedTrackedMarkets(universes map[venue.ID][]venue.Market) {
	n := e.cfg.TopNTrackedMarkets
	if n <= 0 {
		n = 50
	}
	for v, markets := range universes {
		top := topByVolume(markets, n)
		for _, m := range top {
			if !m.Binary() {
				continue
			}
			for _, o := range m.Outcomes {
				e.deps.MarketData.Track(marketdata.Key{Venue: v, MarketID: m.ID, OutcomeID: o.ID})
			}
		}
	}
}

func topByVolume(markets []venue.Market, n int) []venue.Market {
	sorted := make([]venue.Market, len(markets))
	copy(sorted, markets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Volume24h > sorted[j].Volume24h })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// handlePriceUpdate is steps 5-7: push to C5, gate on kill switch/cooldown/
// debounce, run detectors, pick the best candidate, dispatch.
func (e *Engine) handlePriceUpdate(ctx context.Context, pu marketdata.PriceUpdate) {
	key := marketdata.Key{Venue: pu.Venue, MarketID: pu.MarketID, OutcomeID: pu.OutcomeID}
	e.deps.Prices.Push(key, priceseries.Sample{Timestamp: pu.Timestamp, Price: pu.MidPrice})

	if e.deps.KillSwitch.Active() {
		return
	}
	if e.inGlobalCooldown() {
		return
	}
	if !e.debounceScan(key) {
		return
	}

	market, ok := e.markets.applyUpdate(pu)
	if !ok {
		return
	}

	opp := e.detectArbitrage(pu.Venue, market)
	sig, sigVenue := e.detectSignals(pu, market)

	switch {
	case opp != nil:
		e.executeOpportunity(ctx, *opp)
	case sig != nil:
		e.executeSignal(ctx, sigVenue, *sig)
	}
}

// detectArbitrage runs C7 on the updated market (single-venue) and on its
// matched cross-venue pair if one exists, returning the higher-maxProfit
// candidate.
func (e *Engine) detectArbitrage(v venue.ID, market venue.Market) *arbitrage.Opportunity {
	client := e.deps.Venues[v]
	if client == nil {
		return nil
	}
	var best *arbitrage.Opportunity

	if e.cfg.EnableSinglePlatformArb {
		yes, no := splitOutcomeIDs(market)
		if yes != "" && no != "" {
			if o := e.deps.Detector.DetectSingleVenue(market, client.TakerFee(yes), client.TakerFee(no)); o != nil {
				best = o
			}
		}
	}

	if e.cfg.EnableCrossPlatformArb {
		if pair, ok := e.pairs.lookup(v, market.ID); ok {
			otherVenue := venue.Kalshi
			if v == venue.Kalshi {
				otherVenue = venue.Polymarket
			}
			otherID := pair.Kalshi.ID
			if v == venue.Kalshi {
				otherID = pair.Polymarket.ID
			}
			if otherMarket, ok := e.markets.get(otherVenue, otherID); ok {
				otherClient := e.deps.Venues[otherVenue]
				if otherClient != nil {
					var polyMkt, kalshiMkt venue.Market
					var feePoly, feeKalshi arbitrage.FeeFunc
					if v == venue.Polymarket {
						polyMkt, kalshiMkt = market, otherMarket
						feePoly, feeKalshi = client.TakerFee, otherClient.TakerFee
					} else {
						polyMkt, kalshiMkt = otherMarket, market
						feePoly, feeKalshi = otherClient.TakerFee, client.TakerFee
					}
					if o := e.deps.Detector.DetectCrossVenue(pair, polyMkt, kalshiMkt, feePoly, feeKalshi); o != nil {
						if best == nil || o.MaxProfit > best.MaxProfit {
							best = o
						}
					}
				}
			}
		}
	}
	return best
}

// detectSignals runs every C8 strategy against the updated market and
// returns the signal with the highest ranked confidence emitted this tick.
// Ranked confidence is the raw signal confidence scaled by that strategy
// kind's ranking weight (spec.md §6's "get/update ranking criteria"),
// letting an operator favor or de-prioritize a strategy without disabling
// it outright.
func (e *Engine) detectSignals(pu marketdata.PriceUpdate, market venue.Market) (*strategy.TradingSignal, venue.ID) {
	stats := e.deps.Prices.Stats(marketdata.Key{Venue: pu.Venue, MarketID: pu.MarketID, OutcomeID: pu.OutcomeID})
	in := strategy.Input{Update: pu, Market: market, Stats: stats}

	var best *strategy.TradingSignal
	var bestRanked float64
	for _, s := range e.deps.Strategies {
		s.OnPriceUpdate(in)
		weight := e.rankingWeight(fmt.Sprintf("%T", s))
		for _, sig := range s.EmitSignals() {
			sig := sig
			ranked := sig.Confidence * weight
			if best == nil || ranked > bestRanked {
				best = &sig
				bestRanked = ranked
			}
		}
	}
	return best, pu.Venue
}

// rankingWeight returns the configured ranking weight for a strategy kind,
// defaulting to 1.0 when unset.
func (e *Engine) rankingWeight(kind string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if w, ok := e.rankingWeights[kind]; ok {
		return w
	}
	return 1.0
}

func splitOutcomeIDs(m venue.Market) (yes, no string) {
	for _, o := range m.Outcomes {
		if o.Type == venue.OutcomeYes {
			yes = o.ID
		} else if o.Type == venue.OutcomeNo {
			no = o.ID
		}
	}
	return yes, no
}

func (e *Engine) executeOpportunity(ctx context.Context, opp arbitrage.Opportunity) {
	currentBooks := make(map[string]venue.OrderBook, len(opp.Legs))
	for _, leg := range opp.Legs {
		if book, fresh, ok := e.deps.MarketData.GetOrderBook(marketdata.Key{Venue: leg.Venue, MarketID: leg.MarketID, OutcomeID: leg.OutcomeID}); ok && fresh {
			currentBooks[leg.OutcomeID] = book
		}
	}
	revalidated := arbitrage.Revalidate(&opp, currentBooks)
	if !revalidated.IsValid {
		return
	}

	e.deps.Bus.Publish(events.EventArbitrageOpportunity, opp)
	e.deps.Bus.Publish(events.EventExecutionStarted, opp.ID)

	execCtx, cancel := context.WithTimeout(ctx, e.cfg.executionTimeout())
	defer cancel()
	res := e.deps.ArbitrageExecutor.Execute(execCtx, opp, execution.ArbOptions{
		TimeoutMs:      int64(e.cfg.executionTimeout() / time.Millisecond),
		MaxSlippageBps: e.cfg.MaxSlippageBps,
	})

	if res.Partial {
		e.deps.Bus.Publish(events.EventExecutionUnwound, res)
	} else {
		e.deps.Bus.Publish(events.EventExecutionCompleted, res)
	}

	e.enterCooldown()
	e.deps.KillSwitch.UpdateDailyPnl(res.RealizedPnl)
	e.persistArbResult(opp, res)
}

func (e *Engine) persistArbResult(opp arbitrage.Opportunity, res execution.ArbResult) {
	if e.deps.Persistence == nil || len(opp.Legs) == 0 {
		return
	}
	errMsg := ""
	if res.Error != nil {
		errMsg = res.Error.Error()
	}
	leg := opp.Legs[0]
	e.deps.Persistence.Record(db.Execution{
		ID: res.OpportunityID, Kind: "arbitrage", Venue: string(leg.Venue),
		MarketID: leg.MarketID, OutcomeID: leg.OutcomeID, Success: res.Success, Partial: res.Partial,
		RealizedPnl: res.RealizedPnl, ExecutionTimeMs: res.Latency.Milliseconds(), Error: errMsg,
	})
}

func (e *Engine) executeSignal(ctx context.Context, v venue.ID, sig strategy.TradingSignal) {
	e.deps.Bus.Publish(events.EventStrategySignal, sig)
	e.deps.Bus.Publish(events.EventExecutionStarted, sig.ID)

	execCtx, cancel := context.WithTimeout(ctx, e.cfg.executionTimeout())
	defer cancel()
	res := e.deps.SignalExecutor.Execute(execCtx, v, sig)
	e.deps.Bus.Publish(events.EventExecutionCompleted, res)

	e.enterCooldown()
	var realized float64
	if res.Success {
		realized = (res.FilledPrice - sig.Price) * res.FilledSize
		e.deps.KillSwitch.UpdateDailyPnl(realized)
	}
	e.persistSignalResult(v, sig, res, realized)
}

func (e *Engine) persistSignalResult(v venue.ID, sig strategy.TradingSignal, res execution.Result, realized float64) {
	if e.deps.Persistence == nil {
		return
	}
	errMsg := ""
	if res.Error != nil {
		errMsg = res.Error.Error()
	}
	e.deps.Persistence.Record(db.Execution{
		ID: sig.ID, Kind: "signal", Venue: string(v),
		MarketID: sig.MarketID, OutcomeID: sig.OutcomeID, Success: res.Success,
		FilledSize: res.FilledSize, FilledPrice: res.FilledPrice,
		RealizedPnl: realized, ExecutionTimeMs: res.ExecutionTimeMs, Error: errMsg,
	})
}

func (e *Engine) inGlobalCooldown() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return time.Now().Before(e.cooldownUntil)
}

func (e *Engine) enterCooldown() {
	e.mu.Lock()
	e.cooldownUntil = time.Now().Add(e.cfg.cooldownAfterExecution())
	e.mu.Unlock()
}

// debounceScan enforces spec.md §4.13 step 7: at most one scan per key per
// scanDebounce interval, layered on top of C4's own fan-out debounce.
func (e *Engine) debounceScan(key marketdata.Key) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now()
	if last, ok := e.lastScan[key]; ok && now.Sub(last) < e.cfg.scanDebounce() {
		return false
	}
	e.lastScan[key] = now
	return true
}

// scanLoop is the polling-fallback watchdog (spec.md §4.13 step 4, §9's
// resolution of the scanMarkets/triggerScan redundancy: the event-driven
// path above is primary, this is a longer-interval safety net that
// re-evaluates every tracked key from the cache even if no fresh
// PriceUpdate arrived).
func (e *Engine) scanLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.scanInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.pollScan(ctx)
		}
	}
}

func (e *Engine) pollScan(ctx context.Context) {
	if e.deps.KillSwitch.Active() {
		return
	}
	for v, markets := range e.snapshotTrackedMarkets() {
		for _, m := range markets {
			for _, o := range m.Outcomes {
				pu, fresh, ok := e.deps.MarketData.GetPrice(marketdata.Key{Venue: v, MarketID: m.ID, OutcomeID: o.ID})
				if !ok || !fresh {
					continue
				}
				e.handlePriceUpdate(ctx, pu)
			}
		}
	}
}

func (e *Engine) snapshotTrackedMarkets() map[venue.ID][]venue.Market {
	out := make(map[venue.ID][]venue.Market)
	e.markets.mu.RLock()
	defer e.markets.mu.RUnlock()
	for v, byID := range e.markets.byVenue {
		for _, m := range byID {
			out[v] = append(out[v], m)
		}
	}
	return out
}

// shutdown cancels all open orders best-effort then lets Run return
// (spec.md §4.13: "Shutdown cancels all open orders best-effort, then
// disconnects").
func (e *Engine) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.deps.Orders.CancelAllOrders(ctx, nil, nil); err != nil {
		log.Printf("engine: shutdown cancel-all: %v", err)
	}
}
