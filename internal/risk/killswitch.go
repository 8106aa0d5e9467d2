package risk

import (
	"context"
	"log"
	"sync"
	"time"

	"oddsarb.dev/core/internal/events"
)

// KillSwitch evaluates four trip conditions on a fixed interval, plus a
// manual Trip, and blocks all new order placement once any of them fires
// (satisfies
// orders.KillSwitch). The Inactive->Active transition is one-shot: once
// tripped, later trigger evaluations update the recorded trigger/reason but
// do not cancel open orders a second time. Only an explicit Reset clears it.
// Grounded on the teacher Manager's QuickCheck tiering (NORMAL/WARNING/
// CAUTION/LIMIT), collapsed from four soft tiers to a single hard stop:
// spec calls for orders simply refusing once any cap is breached, not a
// shrink-to-fit size adjustment.
type KillSwitch struct {
	cfg       Config
	canceller OrderCanceller
	drawdown  *DrawdownMonitor
	exposure  *ExposureTracker
	bus       *events.Bus

	mu      sync.Mutex
	active  bool
	trigger Trigger
	reason  string

	dailyPnl float64
	dayUTC   string

	errMu     sync.Mutex
	errEvents []apiErrEvent
}

type apiErrEvent struct {
	at     time.Time
	failed bool
}

// NewKillSwitch builds a kill switch. canceller is used once, on trip, to
// cancel all open orders across every venue. bus may be nil.
func NewKillSwitch(cfg Config, canceller OrderCanceller, drawdown *DrawdownMonitor, exposure *ExposureTracker, bus *events.Bus) *KillSwitch {
	return &KillSwitch{
		cfg: cfg, canceller: canceller, drawdown: drawdown, exposure: exposure, bus: bus,
		dayUTC: time.Now().UTC().Format("2006-01-02"),
	}
}

// Active reports whether the kill switch is currently tripped.
func (k *KillSwitch) Active() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.active
}

// State returns the tripped trigger and reason (zero values if inactive).
func (k *KillSwitch) State() (Trigger, string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.trigger, k.reason
}

// Snapshot reports the kill switch's current trip state alongside the
// live drawdown ratio and total exposure its own drawdown/exposure
// trackers already maintain, for the command/observation surface
// (spec.md §6's risk snapshot).
func (k *KillSwitch) Snapshot() (trigger Trigger, reason string, dailyPnl, drawdown, totalExposure float64) {
	k.mu.Lock()
	trigger, reason, dailyPnl = k.trigger, k.reason, k.dailyPnl
	k.mu.Unlock()
	if k.drawdown != nil {
		drawdown = k.drawdown.Check()
	}
	if k.exposure != nil {
		totalExposure = k.exposure.Total()
	}
	return trigger, reason, dailyPnl, drawdown, totalExposure
}

// Reset clears an active trip (Active->Inactive). It does not reset daily
// P&L or the drawdown high-water mark.
func (k *KillSwitch) Reset() {
	k.mu.Lock()
	k.active = false
	k.trigger = TriggerNone
	k.reason = ""
	k.mu.Unlock()
	k.publish(events.EventKillSwitchReset, nil)
}

// Trip manually trips the kill switch (the Manual trigger).
func (k *KillSwitch) Trip(reason string) {
	k.trip(TriggerManual, reason)
}

// UpdateDailyPnl folds a realized P&L delta into the running daily total,
// rolling over at UTC midnight first.
func (k *KillSwitch) UpdateDailyPnl(delta float64) {
	k.mu.Lock()
	k.rolloverIfNeeded()
	k.dailyPnl += delta
	k.mu.Unlock()
}

func (k *KillSwitch) rolloverIfNeeded() {
	today := time.Now().UTC().Format("2006-01-02")
	if today != k.dayUTC {
		k.dayUTC = today
		k.dailyPnl = 0
	}
}

// RecordAPIError/RecordAPISuccess feed the rolling error-rate window behind
// the ApiErrorRate trigger.
func (k *KillSwitch) RecordAPIError()   { k.recordAPIEvent(true) }
func (k *KillSwitch) RecordAPISuccess() { k.recordAPIEvent(false) }

func (k *KillSwitch) recordAPIEvent(failed bool) {
	k.errMu.Lock()
	defer k.errMu.Unlock()
	k.errEvents = append(k.errEvents, apiErrEvent{at: time.Now(), failed: failed})
	k.pruneErrEvents()
}

// pruneErrEvents drops events outside cfg.ApiErrorWindow. Caller holds errMu.
func (k *KillSwitch) pruneErrEvents() {
	cutoff := time.Now().Add(-k.cfg.ApiErrorWindow)
	i := 0
	for i < len(k.errEvents) && k.errEvents[i].at.Before(cutoff) {
		i++
	}
	k.errEvents = k.errEvents[i:]
}

func (k *KillSwitch) apiErrorRate() float64 {
	k.errMu.Lock()
	defer k.errMu.Unlock()
	k.pruneErrEvents()
	if len(k.errEvents) == 0 {
		return 0
	}
	var failed int
	for _, e := range k.errEvents {
		if e.failed {
			failed++
		}
	}
	return float64(failed) / float64(len(k.errEvents))
}

// Run evaluates trip conditions every cfg.CheckInterval until ctx is
// cancelled.
func (k *KillSwitch) Run(ctx context.Context) {
	interval := k.cfg.CheckInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.check(ctx)
		}
	}
}

// check evaluates the four automatic triggers (Manual is only set through
// Trip) in a fixed priority order and trips on the first match. If already active, a newly-matching trigger updates the
// recorded trigger/reason but the cancel-all side effect does not re-fire.
func (k *KillSwitch) check(ctx context.Context) {
	k.mu.Lock()
	k.rolloverIfNeeded()
	dailyPnl := k.dailyPnl
	k.mu.Unlock()

	drawdown := k.drawdown.Check()
	totalExposure := k.exposure.Total()
	errRate := k.apiErrorRate()

	switch {
	case dailyPnl <= -k.cfg.MaxDailyLoss && k.cfg.MaxDailyLoss > 0:
		k.trip(TriggerDailyLossLimit, "daily P&L breached max daily loss")
	case k.cfg.MaxDrawdownPct > 0 && drawdown >= k.cfg.MaxDrawdownPct:
		k.trip(TriggerDrawdownLimit, "drawdown breached max drawdown")
	case k.cfg.MaxTotalExposure > 0 && totalExposure >= k.cfg.MaxTotalExposure:
		k.trip(TriggerPositionLimit, "aggregate exposure breached max total exposure")
	case k.cfg.ApiErrorRateThresh > 0 && errRate >= k.cfg.ApiErrorRateThresh:
		k.trip(TriggerApiErrorRate, "api error rate breached threshold")
	}
}

func (k *KillSwitch) trip(trigger Trigger, reason string) {
	k.mu.Lock()
	wasActive := k.active
	k.active = true
	k.trigger = trigger
	k.reason = reason
	k.mu.Unlock()

	if wasActive {
		return
	}

	k.publish(events.EventKillSwitchTripped, map[string]string{"trigger": string(trigger), "reason": reason})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := k.canceller.CancelAllOrders(ctx, nil, nil); err != nil {
			log.Printf("risk: kill switch %s: cancel all orders failed: %v", trigger, err)
		}
	}()
}

func (k *KillSwitch) publish(e events.Event, payload any) {
	if k.bus != nil {
		k.bus.Publish(e, payload)
	}
}
