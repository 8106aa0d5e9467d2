package risk

import (
	"fmt"

	"oddsarb.dev/core/internal/venue"
)

// PositionLimits checks a prospective order against per-market and
// aggregate exposure caps before the Order Manager dispatches it. Satisfies
// orders.PositionLimiter. Grounded on the teacher Manager's EvaluateSignal
// per-symbol exposure clip and account total-exposure check, generalized
// from a position-resize decision to a hard accept/reject gate: prediction
// contracts have no partial-size risk reduction analogous to a spot order's
// shrink-to-fit, so the check is a refusal rather than an adjustment.
type PositionLimits struct {
	cfg      Config
	exposure *ExposureTracker
}

// NewPositionLimits builds a limiter reading live exposure from tracker.
func NewPositionLimits(cfg Config, tracker *ExposureTracker) *PositionLimits {
	return &PositionLimits{cfg: cfg, exposure: tracker}
}

// CheckOrder computes the hypothetical post-trade exposure for req's market
// (summed across both outcomes, spec.md §8: size(YES)+size(NO) <=
// maxPositionSizeUsd) and for the account in aggregate, rejecting if either
// would breach its cap.
func (p *PositionLimits) CheckOrder(v venue.ID, req venue.OrderRequest) error {
	marketExposure := p.exposure.MarketTotalExposure(req.MarketID)
	hypotheticalMarket := marketExposure + req.SizeUSD
	if p.cfg.PerMarketExposureCap > 0 && hypotheticalMarket > p.cfg.PerMarketExposureCap {
		return &PositionLimitError{
			Reason: fmt.Sprintf("market %s exposure %.2f would exceed cap %.2f", req.MarketID, hypotheticalMarket, p.cfg.PerMarketExposureCap),
		}
	}

	hypotheticalTotal := p.exposure.Total() + req.SizeUSD
	if p.cfg.MaxTotalExposure > 0 && hypotheticalTotal > p.cfg.MaxTotalExposure {
		return &PositionLimitError{
			Reason: fmt.Sprintf("aggregate exposure %.2f would exceed cap %.2f", hypotheticalTotal, p.cfg.MaxTotalExposure),
		}
	}

	return nil
}

// PositionLimitError reports which exposure cap a rejected order would breach.
type PositionLimitError struct{ Reason string }

func (e *PositionLimitError) Error() string { return "risk: position limit: " + e.Reason }
