package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"oddsarb.dev/core/internal/priceseries"
	"oddsarb.dev/core/internal/venue"
)

// MomentumStrategy trades continuation of a confirmed trend (spec.md §4.8).
type MomentumStrategy struct {
	id          string
	tauMomentum float64 // minimum |momentum|
	tauChange   float64 // minimum |changePercent|
	smaTolerance float64
	signalTTL   time.Duration
	cooldown    time.Duration
	cooldowns   *cooldownTracker

	mu      sync.Mutex
	pending []TradingSignal
}

func NewMomentumStrategy(id string, tauMomentum, tauChange float64) *MomentumStrategy {
	return &MomentumStrategy{
		id: id, tauMomentum: tauMomentum, tauChange: tauChange, smaTolerance: 0.01,
		signalTTL: 15 * time.Second, cooldown: 20 * time.Second, cooldowns: newCooldownTracker(),
	}
}

func (s *MomentumStrategy) Start(ctx context.Context) error { return nil }
func (s *MomentumStrategy) Stop(ctx context.Context) error  { return nil }

func (s *MomentumStrategy) OnPriceUpdate(in Input) {
	if in.Stats.Insufficient || !s.cooldowns.Ready(in.Market.ID) {
		return
	}
	stats := in.Stats
	if abs(stats.Momentum) < s.tauMomentum || abs(stats.ChangePercent) < s.tauChange {
		return
	}

	var side venue.Side
	switch {
	case stats.Momentum > 0 && stats.Trend == priceseries.TrendUp && stats.RSI < 70:
		side = venue.SideBuy
	case stats.Momentum < 0 && stats.Trend == priceseries.TrendDown && stats.RSI > 30:
		side = venue.SideSell
	default:
		return
	}

	price := in.Update.BestAsk
	if side == venue.SideSell {
		price = in.Update.BestBid
	}
	if price == 0 {
		return
	}
	// price should be near sma(5) within tolerance to avoid chasing a
	// spike; out.SMA here is the long-window SMA computed by C5, used as
	// a coarse reference band.
	if stats.SMA > 0 {
		drift := abs(price-stats.SMA) / stats.SMA
		if drift > s.smaTolerance*5 {
			return
		}
	}

	confidence := blendConfidence(stats)
	now := time.Now()
	sig := TradingSignal{
		ID: uuid.NewString(), StrategyID: s.id, MarketID: in.Market.ID, OutcomeID: in.Update.OutcomeID,
		Side: side, Price: price, Size: in.Update.AskSize, Confidence: confidence,
		Reason:    "momentum: trend-confirmed continuation",
		CreatedAt: now, ExpiresAt: now.Add(s.signalTTL),
	}

	s.mu.Lock()
	s.pending = append(s.pending, sig)
	s.mu.Unlock()
	s.cooldowns.MarkUntil(in.Market.ID, s.cooldown)
}

func (s *MomentumStrategy) EmitSignals() []TradingSignal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// blendConfidence combines momentum strength, RSI, volume spike, and VWAP
// position into a single [0,1] confidence score (spec.md §4.8).
func blendConfidence(stats priceseries.Stats) float64 {
	momentumScore := abs(stats.Momentum)
	if momentumScore > 1 {
		momentumScore = 1
	}
	rsiScore := 1 - abs(stats.RSI-50)/50
	volumeScore := 0.0
	if stats.VolumeSpike {
		volumeScore = 1.0
	}
	vwapScore := 0.5
	if stats.VWAP > 0 && stats.SMA > 0 {
		if stats.SMA >= stats.VWAP {
			vwapScore = 0.75
		} else {
			vwapScore = 0.25
		}
	}
	blended := 0.4*momentumScore + 0.3*rsiScore + 0.15*volumeScore + 0.15*vwapScore
	if blended > 1 {
		blended = 1
	}
	if blended < 0 {
		blended = 0
	}
	return blended
}
