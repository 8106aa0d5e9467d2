package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"oddsarb.dev/core/internal/venue"
)

// ProbabilitySumStrategy emits a batch intent when a binary market's
// ask(YES)+ask(NO) sits below 1-epsilon (spec.md §4.8).
type ProbabilitySumStrategy struct {
	id             string
	epsilon        float64 // default 0.003 (0.3%)
	signalTTL      time.Duration
	cooldown       time.Duration
	cooldowns      *cooldownTracker

	mu      sync.Mutex
	pending []TradingSignal
}

// NewProbabilitySumStrategy builds the strategy with epsilon in percent
// terms (e.g. 0.3 for 0.3%).
func NewProbabilitySumStrategy(id string, epsilonPercent float64) *ProbabilitySumStrategy {
	if epsilonPercent <= 0 {
		epsilonPercent = 0.3
	}
	return &ProbabilitySumStrategy{
		id:        id,
		epsilon:   epsilonPercent / 100.0,
		signalTTL: 5 * time.Second,
		cooldown:  30 * time.Second,
		cooldowns: newCooldownTracker(),
	}
}

func (s *ProbabilitySumStrategy) Start(ctx context.Context) error { return nil }
func (s *ProbabilitySumStrategy) Stop(ctx context.Context) error  { return nil }

func (s *ProbabilitySumStrategy) OnPriceUpdate(in Input) {
	if !in.Market.Binary() || !s.cooldowns.Ready(in.Market.ID) {
		return
	}
	var yes, no *venue.Outcome
	for i := range in.Market.Outcomes {
		o := &in.Market.Outcomes[i]
		switch o.Type {
		case venue.OutcomeYes:
			yes = o
		case venue.OutcomeNo:
			no = o
		}
	}
	if yes == nil || no == nil || !yes.Quoted() || !no.Quoted() {
		return
	}

	sum := yes.BestAsk + no.BestAsk
	if sum >= 1-s.epsilon {
		return
	}

	profitPct := (1 - sum) * 100
	confidence := 0.7 + profitPct/20
	if confidence > 1 {
		confidence = 1
	}

	// split sizes proportional to ask so contract counts at resolution
	// are equal (spec.md §4.8): sY:sN = askYES:askNO.
	yesSize := min(yes.AskSize, no.AskSize*yes.BestAsk/no.BestAsk)
	if yesSize <= 0 {
		return
	}
	noSize := yesSize * no.BestAsk / yes.BestAsk

	now := time.Now()
	sig := TradingSignal{
		ID:         uuid.NewString(),
		StrategyID: s.id,
		MarketID:   in.Market.ID,
		Confidence: confidence,
		Reason:     "probability-sum: ask(YES)+ask(NO) below 1-epsilon",
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.signalTTL),
		Batch: []BatchLeg{
			{OutcomeID: yes.ID, Side: venue.SideBuy, Price: yes.BestAsk, Size: yesSize},
			{OutcomeID: no.ID, Side: venue.SideBuy, Price: no.BestAsk, Size: noSize},
		},
	}

	s.mu.Lock()
	s.pending = append(s.pending, sig)
	s.mu.Unlock()
	s.cooldowns.MarkUntil(in.Market.ID, s.cooldown)
}

func (s *ProbabilitySumStrategy) EmitSignals() []TradingSignal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}
