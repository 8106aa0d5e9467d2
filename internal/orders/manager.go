package orders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"oddsarb.dev/core/internal/events"
	"oddsarb.dev/core/internal/ratelimit"
	"oddsarb.dev/core/internal/venue"

	"github.com/google/uuid"
)

const rateLimitAcquireTimeout = 2 * time.Second

// Manager is the central authority over orders, positions, and trades
// (C11, spec.md §4.11). It is the sole owner/mutator of Order/Position
// records; every other component (strategies, detectors, executors) holds
// only IDs, never pointers into this state.
type Manager struct {
	venues   map[venue.ID]venue.Client
	limiters map[venue.ID]*ratelimit.Limiter
	bus      *events.Bus

	killSwitch KillSwitch
	posLimit   PositionLimiter

	mu        sync.RWMutex
	orders    map[string]venue.Order    // id -> order
	positions map[string]venue.Position // "venue:marketId:outcomeId" -> position
}

// New builds a Manager. killSwitch/posLimit may be nil to run unrestricted
// (useful for standalone tests); venues/limiters map every venue.ID this
// engine trades to its client and its per-venue rate limiter.
func New(bus *events.Bus, venues map[venue.ID]venue.Client, limiters map[venue.ID]*ratelimit.Limiter, killSwitch KillSwitch, posLimit PositionLimiter) *Manager {
	if killSwitch == nil {
		killSwitch = noopKillSwitch{}
	}
	if posLimit == nil {
		posLimit = noopLimiter{}
	}
	return &Manager{
		venues: venues, limiters: limiters, bus: bus,
		killSwitch: killSwitch, posLimit: posLimit,
		orders: make(map[string]venue.Order), positions: make(map[string]venue.Position),
	}
}

// SetKillSwitch rewires the kill switch after construction. C12's
// KillSwitch takes the Manager itself as its OrderCanceller, so main.go
// must build the Manager first (with the switch still a noop) and wire
// the real one in once it exists, breaking the construction cycle.
func (m *Manager) SetKillSwitch(killSwitch KillSwitch) {
	if killSwitch == nil {
		killSwitch = noopKillSwitch{}
	}
	m.mu.Lock()
	m.killSwitch = killSwitch
	m.mu.Unlock()
}

// SetPositionLimiter rewires the position limiter after construction, for
// the same reason SetKillSwitch exists.
func (m *Manager) SetPositionLimiter(posLimit PositionLimiter) {
	if posLimit == nil {
		posLimit = noopLimiter{}
	}
	m.mu.Lock()
	m.posLimit = posLimit
	m.mu.Unlock()
}

func positionKey(v venue.ID, marketID, outcomeID string) string {
	return string(v) + ":" + marketID + ":" + outcomeID
}

// PlaceOrder runs the pre-write policy chain (spec.md §4.11 step 1-4) then
// dispatches to the venue client (or paper-trading venue) registered for v.
// It satisfies internal/execution.OrderPlacer.
func (m *Manager) PlaceOrder(ctx context.Context, v venue.ID, req venue.OrderRequest) (venue.Order, error) {
	if m.killSwitch.Active() {
		return venue.Order{}, ErrKillSwitchActive
	}
	if err := m.posLimit.CheckOrder(v, req); err != nil {
		return venue.Order{}, err
	}

	client, ok := m.venues[v]
	if !ok {
		return venue.Order{}, fmt.Errorf("orders: no client registered for venue %s", v)
	}
	if limiter, ok := m.limiters[v]; ok {
		if err := limiter.Acquire(ctx, 1, rateLimitAcquireTimeout); err != nil {
			return venue.Order{}, fmt.Errorf("orders: rate limit acquire: %w", err)
		}
	}

	if req.ClientID == "" {
		req.ClientID = uuid.NewString()
	}
	m.publish(events.EventOrderSubmitted, req)

	order, err := client.PlaceOrder(ctx, req)
	if err != nil {
		m.publish(events.EventOrderRejected, err.Error())
		return venue.Order{}, err
	}

	m.recordOrder(order)
	m.emitFillEvents(order)
	m.applyFill(v, order)
	return order, nil
}

// CancelOrder cancels a single order by its venue external ID.
func (m *Manager) CancelOrder(ctx context.Context, v venue.ID, externalOrderID string) error {
	client, ok := m.venues[v]
	if !ok {
		return fmt.Errorf("orders: no client registered for venue %s", v)
	}
	if err := client.CancelOrder(ctx, externalOrderID); err != nil {
		return err
	}
	m.mu.Lock()
	for id, o := range m.orders {
		if o.ExternalID == externalOrderID {
			o.Status = venue.StatusCancelled
			o.UpdatedAt = time.Now()
			m.orders[id] = o
		}
	}
	m.mu.Unlock()
	m.publish(events.EventOrderCancelled, externalOrderID)
	return nil
}

// CancelAllOrders cancels open orders, optionally filtered by venue and/or
// market (spec.md §4.11: `CancelAllOrders(venue?, marketId?)`).
func (m *Manager) CancelAllOrders(ctx context.Context, v *venue.ID, marketID *string) error {
	targets := m.openOrderVenues(v)
	var firstErr error
	for _, tv := range targets {
		client, ok := m.venues[tv]
		if !ok {
			continue
		}
		mid := ""
		if marketID != nil {
			mid = *marketID
		}
		if err := client.CancelAllOrders(ctx, mid); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	m.mu.Lock()
	for id, o := range m.orders {
		if o.Status.IsTerminal() {
			continue
		}
		if v != nil && o.Venue != *v {
			continue
		}
		if marketID != nil && o.MarketID != *marketID {
			continue
		}
		o.Status = venue.StatusCancelled
		o.UpdatedAt = time.Now()
		m.orders[id] = o
	}
	m.mu.Unlock()
	return firstErr
}

func (m *Manager) openOrderVenues(v *venue.ID) []venue.ID {
	if v != nil {
		return []venue.ID{*v}
	}
	out := make([]venue.ID, 0, len(m.venues))
	for id := range m.venues {
		out = append(out, id)
	}
	return out
}

// GetOpenOrders returns all non-terminal orders, optionally filtered by venue.
func (m *Manager) GetOpenOrders(v *venue.ID) []venue.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []venue.Order
	for _, o := range m.orders {
		if o.Status.IsTerminal() {
			continue
		}
		if v != nil && o.Venue != *v {
			continue
		}
		out = append(out, o)
	}
	return out
}

// GetPositions returns all tracked positions, optionally filtered by venue.
func (m *Manager) GetPositions(v *venue.ID) []venue.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []venue.Position
	for _, p := range m.positions {
		if v != nil && p.Venue != *v {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (m *Manager) recordOrder(o venue.Order) {
	m.mu.Lock()
	m.orders[o.ID] = o
	m.mu.Unlock()
}

func (m *Manager) emitFillEvents(o venue.Order) {
	m.publish(events.EventOrderAccepted, o)
	switch o.Status {
	case venue.StatusFilled:
		m.publish(events.EventOrderFilled, o)
	case venue.StatusPartial:
		m.publish(events.EventOrderPartiallyFilled, o)
	}
}

// applyFill folds a filled/partially-filled order into the tracked
// position for (v, marketID, outcomeID) (spec.md §4.11: fill events update
// the same structures and emit positionUpdate).
func (m *Manager) applyFill(v venue.ID, o venue.Order) {
	if o.FilledSizeUSD <= 0 {
		return
	}
	key := positionKey(v, o.MarketID, o.OutcomeID)

	m.mu.Lock()
	pos, exists := m.positions[key]
	if !exists {
		side := venue.PositionLong
		if o.Side == venue.SideSell {
			side = venue.PositionShort
		}
		pos = venue.Position{
			ID: key, Venue: v, MarketID: o.MarketID, OutcomeID: o.OutcomeID,
			Side: side, Size: o.FilledSizeUSD, AvgEntryPrice: o.AvgFillPrice,
			CurrentPrice: o.AvgFillPrice, IsOpen: true, StrategyID: o.StrategyID,
		}
	} else {
		sameDirection := (pos.Side == venue.PositionLong && o.Side == venue.SideBuy) ||
			(pos.Side == venue.PositionShort && o.Side == venue.SideSell)
		if sameDirection {
			totalCost := pos.Size*pos.AvgEntryPrice + o.FilledSizeUSD*o.AvgFillPrice
			pos.Size += o.FilledSizeUSD
			if pos.Size > 0 {
				pos.AvgEntryPrice = totalCost / pos.Size
			}
		} else {
			pos.Size -= o.FilledSizeUSD
			if pos.Size <= 0 {
				pos.IsOpen = false
				pos.Size = 0
			}
		}
	}
	m.positions[key] = pos
	m.mu.Unlock()

	m.publish(events.EventPositionChange, pos)
}

func (m *Manager) publish(e events.Event, payload any) {
	if m.bus != nil {
		m.bus.Publish(e, payload)
	}
}
