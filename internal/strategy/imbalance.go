package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"oddsarb.dev/core/internal/venue"
)

// ImbalanceStrategy trades in the direction of order book depth imbalance.
// Generalized from the teacher's OrderBookImbalanceStrategy (single-symbol
// bid/ask depth ratio) to the (venue, market, outcome) key space.
type ImbalanceStrategy struct {
	id        string
	threshold float64 // e.g. 1.5 means 50% more depth on one side
	signalTTL time.Duration
	cooldown  time.Duration
	cooldowns *cooldownTracker

	mu         sync.Mutex
	lastSide   map[string]venue.Side // last emitted side per market, to only emit on change
	pending    []TradingSignal
}

func NewImbalanceStrategy(id string, threshold float64) *ImbalanceStrategy {
	return &ImbalanceStrategy{
		id: id, threshold: threshold,
		signalTTL: 10 * time.Second, cooldown: 15 * time.Second,
		cooldowns: newCooldownTracker(), lastSide: make(map[string]venue.Side),
	}
}

func (s *ImbalanceStrategy) Start(ctx context.Context) error { return nil }
func (s *ImbalanceStrategy) Stop(ctx context.Context) error  { return nil }

func (s *ImbalanceStrategy) OnPriceUpdate(in Input) {
	if in.Update.BidSize == 0 || in.Update.AskSize == 0 || !s.cooldowns.Ready(in.Market.ID) {
		return
	}
	ratio := in.Update.BidSize / in.Update.AskSize

	var side venue.Side
	var price, size float64
	switch {
	case ratio >= s.threshold:
		side = venue.SideBuy
		price, size = in.Update.BestAsk, in.Update.AskSize
	case ratio <= 1/s.threshold:
		side = venue.SideSell
		price, size = in.Update.BestBid, in.Update.BidSize
	default:
		return
	}
	if price == 0 {
		return
	}

	s.mu.Lock()
	if s.lastSide[in.Market.ID] == side {
		s.mu.Unlock()
		return
	}
	s.lastSide[in.Market.ID] = side
	s.mu.Unlock()

	confidence := blendConfidence(in.Stats)
	now := time.Now()
	sig := TradingSignal{
		ID: uuid.NewString(), StrategyID: s.id, MarketID: in.Market.ID, OutcomeID: in.Update.OutcomeID,
		Side: side, Price: price, Size: size, Confidence: confidence,
		Reason:    "orderbook-imbalance: depth ratio crossed threshold",
		CreatedAt: now, ExpiresAt: now.Add(s.signalTTL),
	}

	s.mu.Lock()
	s.pending = append(s.pending, sig)
	s.mu.Unlock()
	s.cooldowns.MarkUntil(in.Market.ID, s.cooldown)
}

func (s *ImbalanceStrategy) EmitSignals() []TradingSignal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}
