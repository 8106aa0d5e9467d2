package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"oddsarb.dev/core/internal/venue"
)

// MeanReversionStrategy trades reversion toward the SMA when price deviates
// beyond a z-score-like band (spec.md §4.8).
type MeanReversionStrategy struct {
	id        string
	tauLow    float64 // lower deviation bound from sma, fraction
	tauHigh   float64 // upper deviation bound from sma, fraction
	signalTTL time.Duration
	cooldown  time.Duration
	cooldowns *cooldownTracker

	mu      sync.Mutex
	pending []TradingSignal
}

func NewMeanReversionStrategy(id string, tauLow, tauHigh float64) *MeanReversionStrategy {
	return &MeanReversionStrategy{
		id: id, tauLow: tauLow, tauHigh: tauHigh,
		signalTTL: 15 * time.Second, cooldown: 20 * time.Second, cooldowns: newCooldownTracker(),
	}
}

func (s *MeanReversionStrategy) Start(ctx context.Context) error { return nil }
func (s *MeanReversionStrategy) Stop(ctx context.Context) error  { return nil }

func (s *MeanReversionStrategy) OnPriceUpdate(in Input) {
	if in.Stats.Insufficient || in.Stats.SMA <= 0 || !s.cooldowns.Ready(in.Market.ID) {
		return
	}
	price := in.Update.MidPrice
	if price == 0 {
		return
	}
	deviation := (price - in.Stats.SMA) / in.Stats.SMA

	var side venue.Side
	var orderPrice, size float64
	switch {
	case deviation >= s.tauLow && deviation <= s.tauHigh:
		// overbought relative to sma: short/sell back toward the mean.
		side = venue.SideSell
		orderPrice = in.Update.BestBid
		size = in.Update.BidSize
	case deviation <= -s.tauLow && deviation >= -s.tauHigh:
		// oversold relative to sma: buy back toward the mean.
		side = venue.SideBuy
		orderPrice = in.Update.BestAsk
		size = in.Update.AskSize
	default:
		return
	}
	if orderPrice == 0 {
		return
	}

	confidence := blendConfidence(in.Stats)
	now := time.Now()
	sig := TradingSignal{
		ID: uuid.NewString(), StrategyID: s.id, MarketID: in.Market.ID, OutcomeID: in.Update.OutcomeID,
		Side: side, Price: orderPrice, Size: size, Confidence: confidence,
		Reason:    "mean-reversion: price deviation from sma within reversion band",
		CreatedAt: now, ExpiresAt: now.Add(s.signalTTL),
	}

	s.mu.Lock()
	s.pending = append(s.pending, sig)
	s.mu.Unlock()
	s.cooldowns.MarkUntil(in.Market.ID, s.cooldown)
}

func (s *MeanReversionStrategy) EmitSignals() []TradingSignal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}
