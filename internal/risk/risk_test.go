package risk

import (
	"context"
	"testing"
	"time"

	"oddsarb.dev/core/internal/events"
	"oddsarb.dev/core/internal/venue"
)

type fakeCanceller struct{ calls int }

func (f *fakeCanceller) CancelAllOrders(ctx context.Context, v *venue.ID, marketID *string) error {
	f.calls++
	return nil
}

type fakeBalance struct{ balance float64 }

func (f *fakeBalance) Balance() float64 { return f.balance }

type fakePositions struct{ positions []venue.Position }

func (f *fakePositions) GetPositions(v *venue.ID) []venue.Position { return f.positions }

func TestDrawdownMonitorRatchetsPeakAndReportsRatio(t *testing.T) {
	bal := &fakeBalance{balance: 1000}
	pos := &fakePositions{}
	d := NewDrawdownMonitor(bal, pos)

	if dd := d.Check(); dd != 0 {
		t.Fatalf("expected 0 drawdown at first observation, got %f", dd)
	}
	if d.Peak() != 1000 {
		t.Fatalf("expected peak 1000, got %f", d.Peak())
	}

	bal.balance = 1200
	if dd := d.Check(); dd != 0 {
		t.Fatalf("expected 0 drawdown on new high, got %f", dd)
	}
	if d.Peak() != 1200 {
		t.Fatalf("expected peak ratcheted to 1200, got %f", d.Peak())
	}

	bal.balance = 960
	dd := d.Check()
	want := (1200.0 - 960.0) / 1200.0
	if dd != want {
		t.Fatalf("expected drawdown %f, got %f", want, dd)
	}
	if d.Peak() != 1200 {
		t.Fatalf("expected peak to stay at 1200 after a pullback, got %f", d.Peak())
	}
}

func TestDrawdownMonitorIncludesOpenPositionValue(t *testing.T) {
	bal := &fakeBalance{balance: 500}
	pos := &fakePositions{positions: []venue.Position{
		{Size: 100, CurrentPrice: 0.6, IsOpen: true},
		{Size: 50, CurrentPrice: 0.5, IsOpen: false}, // closed, excluded
	}}
	d := NewDrawdownMonitor(bal, pos)
	if got, want := d.Equity(), 500+100*0.6; got != want {
		t.Fatalf("expected equity %f, got %f", want, got)
	}
}

func TestPositionLimitsRejectsWhenPerMarketCapBreached(t *testing.T) {
	tracker := NewExposureTracker()
	tracker.apply(venue.Position{Venue: venue.Polymarket, MarketID: "m1", OutcomeID: "yes", Size: 1900, CurrentPrice: 1, IsOpen: true})
	cfg := Config{PerMarketExposureCap: 2000, MaxTotalExposure: 10000}
	limits := NewPositionLimits(cfg, tracker)

	err := limits.CheckOrder(venue.Polymarket, venue.OrderRequest{MarketID: "m1", OutcomeID: "yes", SizeUSD: 200})
	if err == nil {
		t.Fatal("expected per-market cap rejection")
	}
}

func TestPositionLimitsAllowsWithinCaps(t *testing.T) {
	tracker := NewExposureTracker()
	cfg := Config{PerMarketExposureCap: 2000, MaxTotalExposure: 10000}
	limits := NewPositionLimits(cfg, tracker)

	err := limits.CheckOrder(venue.Polymarket, venue.OrderRequest{MarketID: "m1", OutcomeID: "yes", SizeUSD: 200})
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
}

func TestPositionLimitsRejectsWhenAggregateCapBreached(t *testing.T) {
	tracker := NewExposureTracker()
	tracker.apply(venue.Position{Venue: venue.Polymarket, MarketID: "m1", OutcomeID: "yes", Size: 9900, CurrentPrice: 1, IsOpen: true})
	cfg := Config{PerMarketExposureCap: 100000, MaxTotalExposure: 10000}
	limits := NewPositionLimits(cfg, tracker)

	err := limits.CheckOrder(venue.Polymarket, venue.OrderRequest{MarketID: "m2", OutcomeID: "no", SizeUSD: 200})
	if err == nil {
		t.Fatal("expected aggregate cap rejection")
	}
}

func TestExposureTrackerAppliesAndClosesPositions(t *testing.T) {
	tracker := NewExposureTracker()
	tracker.apply(venue.Position{Venue: venue.Polymarket, MarketID: "m1", OutcomeID: "yes", Size: 100, CurrentPrice: 0.5, IsOpen: true})
	if got := tracker.MarketExposure("m1", "yes"); got != 50 {
		t.Fatalf("expected market exposure 50, got %f", got)
	}
	if got := tracker.Total(); got != 50 {
		t.Fatalf("expected total exposure 50, got %f", got)
	}

	tracker.apply(venue.Position{Venue: venue.Polymarket, MarketID: "m1", OutcomeID: "yes", Size: 0, CurrentPrice: 0.5, IsOpen: false})
	if got := tracker.MarketExposure("m1", "yes"); got != 0 {
		t.Fatalf("expected market exposure reset to 0 after close, got %f", got)
	}
	if got := tracker.Total(); got != 0 {
		t.Fatalf("expected total exposure reset to 0 after close, got %f", got)
	}
}

func TestKillSwitchTripsOnDailyLossLimitAndIsOneShot(t *testing.T) {
	canceller := &fakeCanceller{}
	tracker := NewExposureTracker()
	d := NewDrawdownMonitor(&fakeBalance{balance: 1000}, &fakePositions{})
	cfg := Config{MaxDailyLoss: 100, CheckInterval: 10 * time.Millisecond}
	ks := NewKillSwitch(cfg, canceller, d, tracker, events.NewBus())

	ks.UpdateDailyPnl(-150)
	ks.check(context.Background())

	if !ks.Active() {
		t.Fatal("expected kill switch to trip on daily loss breach")
	}
	trigger, _ := ks.State()
	if trigger != TriggerDailyLossLimit {
		t.Fatalf("expected TriggerDailyLossLimit, got %s", trigger)
	}
	time.Sleep(20 * time.Millisecond) // let the async cancel-all goroutine run
	if canceller.calls != 1 {
		t.Fatalf("expected exactly 1 cancel-all call, got %d", canceller.calls)
	}

	// A second trigger condition becoming true updates the reason, not the
	// cancel-all side effect.
	tracker.apply(venue.Position{Venue: venue.Polymarket, MarketID: "m1", OutcomeID: "yes", Size: 20000, CurrentPrice: 1, IsOpen: true})
	cfg2 := cfg
	cfg2.MaxTotalExposure = 10
	ks.cfg = cfg2
	ks.check(context.Background())
	time.Sleep(20 * time.Millisecond)
	if canceller.calls != 1 {
		t.Fatalf("expected cancel-all to not re-fire on a second trigger, got %d calls", canceller.calls)
	}
}

func TestKillSwitchResetClearsActiveState(t *testing.T) {
	canceller := &fakeCanceller{}
	tracker := NewExposureTracker()
	d := NewDrawdownMonitor(&fakeBalance{balance: 1000}, &fakePositions{})
	ks := NewKillSwitch(Config{MaxDailyLoss: 100}, canceller, d, tracker, nil)

	ks.Trip("manual halt")
	if !ks.Active() {
		t.Fatal("expected active after manual trip")
	}
	ks.Reset()
	if ks.Active() {
		t.Fatal("expected inactive after reset")
	}
	trigger, reason := ks.State()
	if trigger != TriggerNone || reason != "" {
		t.Fatalf("expected cleared trigger/reason, got %s/%s", trigger, reason)
	}
}

func TestKillSwitchApiErrorRateTrigger(t *testing.T) {
	canceller := &fakeCanceller{}
	tracker := NewExposureTracker()
	d := NewDrawdownMonitor(&fakeBalance{balance: 1000}, &fakePositions{})
	cfg := Config{ApiErrorRateThresh: 0.5, ApiErrorWindow: time.Minute}
	ks := NewKillSwitch(cfg, canceller, d, tracker, nil)

	for i := 0; i < 3; i++ {
		ks.RecordAPIError()
	}
	ks.RecordAPISuccess()
	ks.check(context.Background())

	if !ks.Active() {
		t.Fatal("expected kill switch to trip on api error rate breach")
	}
	trigger, _ := ks.State()
	if trigger != TriggerApiErrorRate {
		t.Fatalf("expected TriggerApiErrorRate, got %s", trigger)
	}
}

func TestKillSwitchDailyPnlRollsOverAcrossDayBoundary(t *testing.T) {
	canceller := &fakeCanceller{}
	tracker := NewExposureTracker()
	d := NewDrawdownMonitor(&fakeBalance{balance: 1000}, &fakePositions{})
	ks := NewKillSwitch(Config{MaxDailyLoss: 100}, canceller, d, tracker, nil)

	ks.UpdateDailyPnl(-50)
	if ks.dailyPnl != -50 {
		t.Fatalf("expected dailyPnl -50, got %f", ks.dailyPnl)
	}

	ks.dayUTC = "2000-01-01" // force a stale day so the next update rolls over
	ks.UpdateDailyPnl(-10)
	if ks.dailyPnl != -10 {
		t.Fatalf("expected dailyPnl reset to -10 after rollover, got %f", ks.dailyPnl)
	}
}
