// Package risk implements the Risk Core (C12): the Kill Switch, Position
// Limits, Exposure Tracker, and Drawdown Monitor. Grounded on the teacher's
// internal/risk/manager.go for the config-driven, mutex-protected evaluator
// shape and internal/risk/stoploss.go for the high-water-mark ratchet
// pattern (StopLossManager.updateTrailingStop), generalized from a
// per-symbol trailing stop on one position to a portfolio-wide drawdown
// ratchet over total equity. The per-strategy stop-loss/take-profit sizing
// in the teacher's Manager does not apply here: binary prediction-market
// contracts settle at 0 or 1, there is no continuous exit price to trail.
package risk

import (
	"context"
	"time"

	"oddsarb.dev/core/internal/venue"
)

// Trigger identifies which condition tripped the kill switch.
type Trigger string

const (
	TriggerNone           Trigger = ""
	TriggerDailyLossLimit Trigger = "DailyLossLimit"
	TriggerDrawdownLimit  Trigger = "DrawdownLimit"
	TriggerPositionLimit  Trigger = "PositionLimit"
	TriggerApiErrorRate   Trigger = "ApiErrorRate"
	TriggerManual         Trigger = "Manual"
)

// Config holds the Risk Core's thresholds.
type Config struct {
	MaxDailyLoss       float64       // USD; DailyLossLimit trips when dailyPnl <= -MaxDailyLoss
	MaxDrawdownPct     float64       // fraction, e.g. 0.2 for 20%
	MaxTotalExposure   float64       // USD aggregate across all open positions
	ApiErrorRateThresh float64       // fraction, e.g. 0.5
	ApiErrorWindow     time.Duration // rolling window for the error-rate trigger

	CheckInterval time.Duration // kill switch evaluation cadence, default 100ms

	PerMarketExposureCap float64 // USD, Position Limits
}

// DefaultConfig returns the Risk Core's stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxDailyLoss:         2,
		MaxDrawdownPct:       0.10,
		MaxTotalExposure:     10,
		ApiErrorRateThresh:   0.5,
		ApiErrorWindow:       time.Minute,
		CheckInterval:        100 * time.Millisecond,
		PerMarketExposureCap: 5,
	}
}

// OrderCanceller is the narrow view of the Order Manager (C11) the kill
// switch needs to cancel all open orders once on trip.
type OrderCanceller interface {
	CancelAllOrders(ctx context.Context, v *venue.ID, marketID *string) error
}

// BalanceSource supplies cash balance for equity computation.
type BalanceSource interface {
	Balance() float64
}

// PositionSource supplies open positions for exposure and equity computation.
type PositionSource interface {
	GetPositions(v *venue.ID) []venue.Position
}
