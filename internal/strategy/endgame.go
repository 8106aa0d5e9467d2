package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"oddsarb.dev/core/internal/venue"
)

// EndgameStrategy buys outcomes approaching resolution whose annualized
// implied return clears a threshold (spec.md §4.8).
type EndgameStrategy struct {
	id                  string
	minHoursToRes       float64
	maxHoursToRes       float64
	minProb             float64
	maxProb             float64
	minAnnualizedReturn float64
	signalTTL           time.Duration
	cooldown            time.Duration
	cooldowns           *cooldownTracker

	mu      sync.Mutex
	pending []TradingSignal
}

// NewEndgameStrategy builds the strategy with spec.md §4.8's defaults
// (hours window, probability band, annualized-return threshold in percent).
func NewEndgameStrategy(id string, minHoursToRes, maxHoursToRes, minProb, maxProb, minAnnualizedReturnPct float64) *EndgameStrategy {
	return &EndgameStrategy{
		id: id, minHoursToRes: minHoursToRes, maxHoursToRes: maxHoursToRes,
		minProb: minProb, maxProb: maxProb, minAnnualizedReturn: minAnnualizedReturnPct,
		signalTTL: time.Minute, cooldown: time.Minute, cooldowns: newCooldownTracker(),
	}
}

func (s *EndgameStrategy) Start(ctx context.Context) error { return nil }
func (s *EndgameStrategy) Stop(ctx context.Context) error  { return nil }

func (s *EndgameStrategy) OnPriceUpdate(in Input) {
	if !in.Market.Binary() || !s.cooldowns.Ready(in.Market.ID) {
		return
	}
	h := time.Until(in.Market.EndDate).Hours()
	if h < s.minHoursToRes || h > s.maxHoursToRes {
		return
	}

	var best *venue.Outcome
	var bestAnnualized float64
	for i := range in.Market.Outcomes {
		o := &in.Market.Outcomes[i]
		if !o.Quoted() || o.BestAsk < s.minProb || o.BestAsk > s.maxProb {
			continue
		}
		profitPct := (1 - o.BestAsk) / o.BestAsk * 100
		annualized := profitPct * (8760 / h)
		if annualized >= s.minAnnualizedReturn && annualized > bestAnnualized {
			best = o
			bestAnnualized = annualized
		}
	}
	if best == nil {
		return
	}

	now := time.Now()
	sig := TradingSignal{
		ID: uuid.NewString(), StrategyID: s.id, MarketID: in.Market.ID, OutcomeID: best.ID,
		Side: venue.SideBuy, Price: best.BestAsk, Size: best.AskSize,
		Confidence: best.BestAsk,
		Reason:     "endgame: annualized return clears threshold near resolution",
		CreatedAt:  now, ExpiresAt: now.Add(s.signalTTL),
	}

	s.mu.Lock()
	s.pending = append(s.pending, sig)
	s.mu.Unlock()
	s.cooldowns.MarkUntil(in.Market.ID, s.cooldown)
}

func (s *EndgameStrategy) EmitSignals() []TradingSignal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}
