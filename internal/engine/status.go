package engine

import (
	"context"
	"fmt"
	"time"

	"oddsarb.dev/core/internal/risk"
	"oddsarb.dev/core/internal/venue"
)

// StrategyInfo describes one running C8 strategy for the command/
// observation surface (spec.md §6: "list strategies"). Grounded on the
// teacher's engine.Service.ListStrategies/StrategyInfo DTO, trimmed from a
// DB-row-backed multi-user record down to the fields a single in-process
// strategy set actually has.
type StrategyInfo struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Active bool   `json:"active"`
}

// RiskSnapshot reports C12's live state (spec.md §6's risk surface).
type RiskSnapshot struct {
	Active        bool          `json:"active"`
	Trigger       risk.Trigger  `json:"trigger"`
	Reason        string        `json:"reason"`
	DailyPnl      float64       `json:"daily_pnl"`
	Drawdown      float64       `json:"drawdown"`
	TotalExposure float64       `json:"total_exposure"`
}

// ComponentHealth is one entry of HealthSnapshot.Components.
type ComponentHealth string

const (
	HealthHealthy   ComponentHealth = "Healthy"
	HealthDegraded  ComponentHealth = "Degraded"
	HealthUnhealthy ComponentHealth = "Unhealthy"
)

// HealthSnapshot is the health endpoint's exact shape (spec.md §6:
// "health snapshot {status, components{}, timestamp}").
type HealthSnapshot struct {
	Status     ComponentHealth            `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  time.Time                  `json:"timestamp"`
}

// ListStrategies reports every wired C8 strategy's identity. Strategy
// instances in this design have no pause/resume state machine of their own
// (spec.md §9 drops the BaseStrategy hierarchy in favor of a flat
// capability set); "active" here means wired into the current Run, not a
// per-strategy toggle.
func (e *Engine) ListStrategies() []StrategyInfo {
	out := make([]StrategyInfo, 0, len(e.deps.Strategies))
	for i, s := range e.deps.Strategies {
		kind := fmt.Sprintf("%T", s)
		out = append(out, StrategyInfo{ID: fmt.Sprintf("%s-%d", kind, i), Kind: kind, Active: true})
	}
	return out
}

// GetRankingCriteria reports the current per-strategy-kind confidence
// weights (spec.md §6: "get/update ranking criteria"). A kind absent from
// the map is implicitly weighted 1.0.
func (e *Engine) GetRankingCriteria() map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]float64, len(e.rankingWeights))
	for k, v := range e.rankingWeights {
		out[k] = v
	}
	return out
}

// SetRankingCriteria merges the given per-strategy-kind weights into the
// live ranking criteria, taking effect on the next signal dispatch.
func (e *Engine) SetRankingCriteria(weights map[string]float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, v := range weights {
		e.rankingWeights[k] = v
	}
}

// GetOpenOrders proxies to C11 (spec.md §6: "list/get orders by id").
func (e *Engine) GetOpenOrders(v *venue.ID) []venue.Order {
	return e.deps.Orders.GetOpenOrders(v)
}

// GetPositions proxies to C11.
func (e *Engine) GetPositions(v *venue.ID) []venue.Position {
	return e.deps.Orders.GetPositions(v)
}

// CancelOrder proxies to C11 (spec.md §6: "cancel order by id").
func (e *Engine) CancelOrder(ctx context.Context, v venue.ID, externalOrderID string) error {
	return e.deps.Orders.CancelOrder(ctx, v, externalOrderID)
}

// RiskStatus reports C12's current snapshot for the command/observation
// surface and the admin façade. The kill switch already holds the
// drawdown/exposure trackers it evaluates trip conditions against, so it
// is the single source for this snapshot.
func (e *Engine) RiskStatus() RiskSnapshot {
	trigger, reason, dailyPnl, drawdown, totalExposure := e.deps.KillSwitch.Snapshot()
	return RiskSnapshot{
		Active:        e.deps.KillSwitch.Active(),
		Trigger:       trigger,
		Reason:        reason,
		DailyPnl:      dailyPnl,
		Drawdown:      drawdown,
		TotalExposure: totalExposure,
	}
}

// Health reports a coarse health snapshot: every configured venue client is
// reported Healthy (its connection state is not checked), the overall
// status is Degraded if the kill switch is active (still observable, not
// accepting new orders), and Unhealthy if no venue client is configured.
func (e *Engine) Health() HealthSnapshot {
	components := make(map[string]ComponentHealth, len(e.deps.Venues)+1)
	anyConnected := false
	for id := range e.deps.Venues {
		components[string(id)] = HealthHealthy
		anyConnected = true
	}
	overall := HealthHealthy
	if e.deps.KillSwitch.Active() {
		overall = HealthDegraded
		components["risk"] = HealthDegraded
	} else {
		components["risk"] = HealthHealthy
	}
	if !anyConnected {
		overall = HealthUnhealthy
	}
	return HealthSnapshot{Status: overall, Components: components, Timestamp: time.Now()}
}
