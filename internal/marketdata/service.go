// Package marketdata implements the Market Data Service (C4, spec.md §4.4):
// it owns the orderbook/price caches, derives PriceUpdate from top-of-book,
// fans out with per-key debounce, manages the tracked-market subscription
// universe, and runs a REST polling fallback for quiet markets. Grounded on
// internal/market/feed.go's ws-stream-plus-polling-fallback shape and
// pkg/cache.ShardedPriceCache's TTL/eviction pattern.
package marketdata

import (
	"context"
	"log"
	"sync"
	"time"

	"oddsarb.dev/core/internal/events"
	"oddsarb.dev/core/internal/venue"
	"oddsarb.dev/core/internal/venuews"
)

// defaultDebounce is the fan-out quiescent interval for PriceUpdate events
// (spec.md §4.4); orderbook events are never debounced.
const defaultDebounce = 100 * time.Millisecond

// defaultPollInterval drives the REST fallback poller.
const defaultPollInterval = 5 * time.Second

// wsSource is satisfied by both internal/venuews/polymarket.Client and
// internal/venuews/kalshi.Client.
type wsSource interface {
	Run(ctx context.Context) (<-chan venuews.Update, error)
	Subscribe(channel string, identifiers []string)
}

// Config controls debounce/TTL/poll tuning; zero values take spec defaults.
type Config struct {
	TTL          time.Duration
	Debounce     time.Duration
	PollInterval time.Duration
}

// Service is C4: the normalized, cached, debounced view of both venues'
// market data, published onto the shared event bus.
type Service struct {
	bus   *events.Bus
	store *store

	debounce     time.Duration
	pollInterval time.Duration

	polyWS   wsSource
	kalshiWS wsSource
	polyRest venue.Client
	kalshiRest venue.Client

	mu      sync.Mutex
	tracked map[Key]struct{}
	timers  map[Key]*time.Timer
	connected map[venue.ID]bool
}

// New builds C4 wired to both venue WebSocket clients (for live streaming)
// and both venue REST clients (for the polling fallback).
func New(bus *events.Bus, cfg Config, polyWS, kalshiWS wsSource, polyRest, kalshiRest venue.Client) *Service {
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Service{
		bus:          bus,
		store:        newStore(cfg.TTL),
		debounce:     debounce,
		pollInterval: pollInterval,
		polyWS:       polyWS,
		kalshiWS:     kalshiWS,
		polyRest:     polyRest,
		kalshiRest:   kalshiRest,
		tracked:      make(map[Key]struct{}),
		timers:       make(map[Key]*time.Timer),
		connected:    map[venue.ID]bool{venue.Polymarket: false, venue.Kalshi: false},
	}
}

// Track adds a market/outcome to the subscription universe: if a stream is
// already running the venue's client is live-subscribed; otherwise it will
// be included the next time Run dials.
func (s *Service) Track(k Key) {
	s.mu.Lock()
	_, already := s.tracked[k]
	s.tracked[k] = struct{}{}
	s.mu.Unlock()
	if already {
		return
	}
	switch k.Venue {
	case venue.Polymarket:
		s.polyWS.Subscribe("book", []string{k.OutcomeID})
	case venue.Kalshi:
		s.kalshiWS.Subscribe("orderbook_delta", []string{k.MarketID})
	}
}

// Untrack removes a market/outcome from the universe and evicts its cache
// entries. The underlying WS clients do not support per-key unsubscribe
// frames without a reconnect in this design, so eviction is what actually
// stops it from being served; it is simply no longer refreshed.
func (s *Service) Untrack(k Key) {
	s.mu.Lock()
	delete(s.tracked, k)
	s.mu.Unlock()
	s.store.evict(k)
}

// GetOrderBook returns the cached book for k, or ok=false if unknown, or
// fresh=false if the entry has exceeded the TTL (spec.md §4.4).
func (s *Service) GetOrderBook(k Key) (book venue.OrderBook, fresh bool, ok bool) {
	return s.store.getBook(k)
}

// GetPrice returns the cached PriceUpdate for k.
func (s *Service) GetPrice(k Key) (p PriceUpdate, fresh bool, ok bool) {
	return s.store.getPrice(k)
}

// Run starts both venue WS consumer loops and the REST polling fallback. It
// blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup

	if s.polyWS != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.consume(ctx, venue.Polymarket, s.polyWS)
		}()
	}
	if s.kalshiWS != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.consume(ctx, venue.Kalshi, s.kalshiWS)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.pollLoop(ctx)
	}()

	wg.Wait()
}

func (s *Service) consume(ctx context.Context, v venue.ID, src wsSource) {
	ch, err := src.Run(ctx)
	if err != nil {
		log.Printf("marketdata: %s stream failed to start: %v", v, err)
		s.markDisconnected(v)
		return
	}
	s.markConnected(v)

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-ch:
			if !ok {
				s.markDisconnected(v)
				return
			}
			s.handleUpdate(u)
		}
	}
}

func (s *Service) markConnected(v venue.ID) {
	s.mu.Lock()
	wasDown := !s.connected[v]
	s.connected[v] = true
	s.mu.Unlock()
	if wasDown {
		s.bus.Publish(events.EventFeedRestored, v)
	}
}

func (s *Service) markDisconnected(v venue.ID) {
	s.mu.Lock()
	wasUp := s.connected[v]
	s.connected[v] = false
	s.mu.Unlock()
	if wasUp {
		s.bus.Publish(events.EventFeedDegraded, v)
	}
}

func (s *Service) handleUpdate(u venuews.Update) {
	v := venue.ID(u.Venue)
	k := Key{Venue: v, MarketID: u.MarketID, OutcomeID: u.OutcomeID}

	switch u.Kind {
	case venuews.EventOrderBookSnapshot, venuews.EventOrderBookDelta:
		book := venue.OrderBook{MarketID: u.MarketID, OutcomeID: u.OutcomeID, Timestamp: u.Timestamp}
		for _, lvl := range u.Bids {
			book.Bids = append(book.Bids, venue.PriceLevel{Price: lvl[0], Size: lvl[1]})
		}
		for _, lvl := range u.Asks {
			book.Asks = append(book.Asks, venue.PriceLevel{Price: lvl[0], Size: lvl[1]})
		}
		s.store.setBook(k, book)
		s.bus.Publish(events.EventOrderBookUpdate, book) // undebounced, per spec.md §4.4

		pu := derivePriceUpdate(k, book, "stream")
		s.store.setPrice(k, pu)
		s.scheduleDebouncedFanout(k, pu)

	case venuews.EventTrade:
		// Trades do not feed the top-of-book cache directly; C5 ingests
		// them separately via its own subscription if wired.

	case venuews.EventOrderUpdate:
		s.bus.Publish(events.EventOrderSubmitted, u)
	}
}

func derivePriceUpdate(k Key, book venue.OrderBook, source string) PriceUpdate {
	hasBid := len(book.Bids) > 0
	hasAsk := len(book.Asks) > 0
	bid := book.BestBid()
	ask := book.BestAsk()

	pu := PriceUpdate{
		Venue: k.Venue, MarketID: k.MarketID, OutcomeID: k.OutcomeID,
		Source: source, Timestamp: time.Now(),
	}
	if hasBid {
		pu.BestBid = bid.Price
		pu.BidSize = bid.Size
	}
	if hasAsk {
		pu.BestAsk = ask.Price
		pu.AskSize = ask.Size
	}
	if hasBid && hasAsk {
		pu.MidPrice = (bid.Price + ask.Price) / 2
		pu.Spread = ask.Price - bid.Price
	}
	return pu
}

// scheduleDebouncedFanout overwrites any pending timer for k with the
// latest update; after the quiescent interval elapses with no further
// update, the most recent PriceUpdate is published once (spec.md §4.4).
func (s *Service) scheduleDebouncedFanout(k Key, pu PriceUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[k]; ok {
		t.Stop()
	}
	s.timers[k] = time.AfterFunc(s.debounce, func() {
		latest, fresh, ok := s.store.getPrice(k)
		if ok && fresh {
			s.bus.Publish(events.EventPriceUpdate, latest)
		}
		s.mu.Lock()
		delete(s.timers, k)
		s.mu.Unlock()
	})
}

func (s *Service) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

func (s *Service) pollOnce(ctx context.Context) {
	s.mu.Lock()
	keys := make([]Key, 0, len(s.tracked))
	for k := range s.tracked {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	for _, k := range keys {
		var client venue.Client
		switch k.Venue {
		case venue.Polymarket:
			client = s.polyRest
		case venue.Kalshi:
			client = s.kalshiRest
		}
		if client == nil {
			continue
		}
		book, err := client.GetOrderBook(ctx, k.MarketID, k.OutcomeID)
		if err != nil {
			continue
		}
		s.store.setBook(k, book)
		pu := derivePriceUpdate(k, book, "poll")
		s.store.setPrice(k, pu)
		s.bus.Publish(events.EventPriceUpdate, pu)
	}
}
