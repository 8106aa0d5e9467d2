package orders

import (
	"context"
	"errors"
	"testing"

	"oddsarb.dev/core/internal/events"
	"oddsarb.dev/core/internal/marketdata"
	"oddsarb.dev/core/internal/venue"
)

// fakeClient is a minimal venue.Client stub for Manager tests.
type fakeClient struct {
	id       venue.ID
	placeErr error
	result   venue.Order
	placed   []venue.OrderRequest
}

func (f *fakeClient) ID() venue.ID                                                      { return f.id }
func (f *fakeClient) Connect(ctx context.Context) error                                 { return nil }
func (f *fakeClient) GetMarkets(ctx context.Context, filter venue.MarketFilter) ([]venue.Market, error) {
	return nil, nil
}
func (f *fakeClient) GetMarket(ctx context.Context, externalID string) (venue.Market, error) {
	return venue.Market{}, nil
}
func (f *fakeClient) GetOrderBook(ctx context.Context, marketID, outcomeID string) (venue.OrderBook, error) {
	return venue.OrderBook{}, nil
}
func (f *fakeClient) PlaceOrder(ctx context.Context, req venue.OrderRequest) (venue.Order, error) {
	f.placed = append(f.placed, req)
	if f.placeErr != nil {
		return venue.Order{}, f.placeErr
	}
	o := f.result
	o.MarketID, o.OutcomeID, o.Side = req.MarketID, req.OutcomeID, req.Side
	return o, nil
}
func (f *fakeClient) CancelOrder(ctx context.Context, externalOrderID string) error { return nil }
func (f *fakeClient) CancelAllOrders(ctx context.Context, marketID string) error    { return nil }
func (f *fakeClient) GetBalance(ctx context.Context) (float64, error)               { return 1000, nil }
func (f *fakeClient) GetPositions(ctx context.Context) ([]venue.Position, error)    { return nil, nil }
func (f *fakeClient) GetTrades(ctx context.Context, limit int) ([]venue.Trade, error) {
	return nil, nil
}
func (f *fakeClient) TakerFee(outcomeID string) float64 { return 0 }

type activeKillSwitch struct{}

func (activeKillSwitch) Active() bool { return true }

func TestPlaceOrderRejectedWhenKillSwitchActive(t *testing.T) {
	client := &fakeClient{id: venue.Polymarket, result: venue.Order{ID: "o1", Status: venue.StatusFilled, FilledSizeUSD: 10, AvgFillPrice: 0.5}}
	m := New(events.NewBus(), map[venue.ID]venue.Client{venue.Polymarket: client}, nil, activeKillSwitch{}, nil)
	_, err := m.PlaceOrder(context.Background(), venue.Polymarket, venue.OrderRequest{MarketID: "m1", OutcomeID: "yes", Side: venue.SideBuy, Price: 0.5, SizeUSD: 10})
	if !errors.Is(err, ErrKillSwitchActive) {
		t.Fatalf("expected ErrKillSwitchActive, got %v", err)
	}
	if len(client.placed) != 0 {
		t.Fatal("expected no dispatch to venue client when kill switch active")
	}
}

func TestPlaceOrderSuccessUpdatesPositionAndOrders(t *testing.T) {
	client := &fakeClient{id: venue.Polymarket, result: venue.Order{ID: "o1", Status: venue.StatusFilled, FilledSizeUSD: 10, AvgFillPrice: 0.5}}
	m := New(events.NewBus(), map[venue.ID]venue.Client{venue.Polymarket: client}, nil, nil, nil)
	order, err := m.PlaceOrder(context.Background(), venue.Polymarket, venue.OrderRequest{MarketID: "m1", OutcomeID: "yes", Side: venue.SideBuy, Price: 0.5, SizeUSD: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != venue.StatusFilled {
		t.Fatalf("expected filled order, got %+v", order)
	}
	positions := m.GetPositions(nil)
	if len(positions) != 1 || positions[0].Size != 10 {
		t.Fatalf("expected 1 position of size 10, got %+v", positions)
	}
}

func TestPlaceOrderPropagatesLimitError(t *testing.T) {
	client := &fakeClient{id: venue.Polymarket}
	limiter := &rejectingLimiter{}
	m := New(events.NewBus(), map[venue.ID]venue.Client{venue.Polymarket: client}, nil, nil, limiter)
	_, err := m.PlaceOrder(context.Background(), venue.Polymarket, venue.OrderRequest{MarketID: "m1", OutcomeID: "yes", Side: venue.SideBuy, Price: 0.5, SizeUSD: 10})
	if err == nil {
		t.Fatal("expected limit-exceeded error")
	}
	if len(client.placed) != 0 {
		t.Fatal("expected no dispatch to venue client when limit check rejects")
	}
}

type rejectingLimiter struct{}

func (rejectingLimiter) CheckOrder(venue.ID, venue.OrderRequest) error {
	return &ErrLimitExceeded{Reason: "aggregate exposure cap"}
}

func TestGetOpenOrdersExcludesTerminal(t *testing.T) {
	client := &fakeClient{id: venue.Polymarket, result: venue.Order{ID: "o1", Status: venue.StatusPartial, FilledSizeUSD: 5, AvgFillPrice: 0.5}}
	m := New(events.NewBus(), map[venue.ID]venue.Client{venue.Polymarket: client}, nil, nil, nil)
	_, _ = m.PlaceOrder(context.Background(), venue.Polymarket, venue.OrderRequest{MarketID: "m1", OutcomeID: "yes", Side: venue.SideBuy, Price: 0.5, SizeUSD: 10})
	open := m.GetOpenOrders(nil)
	if len(open) != 1 {
		t.Fatalf("expected 1 open (partial) order, got %d", len(open))
	}
}

// fakePrices is a minimal PriceSource stub for PaperVenue tests.
type fakePrices struct {
	books map[marketdata.Key]venue.OrderBook
}

func (f *fakePrices) GetOrderBook(k marketdata.Key) (venue.OrderBook, bool, bool) {
	b, ok := f.books[k]
	return b, true, ok
}

func TestPaperVenueInstantFillWithinDepth(t *testing.T) {
	key := marketdata.Key{Venue: venue.Polymarket, MarketID: "m1", OutcomeID: "yes"}
	prices := &fakePrices{books: map[marketdata.Key]venue.OrderBook{
		key: {Asks: []venue.PriceLevel{{Price: 0.5, Size: 100}}},
	}}
	pv := NewPaperVenue(venue.Polymarket, prices, 1000, 0.01)
	order, err := pv.PlaceOrder(context.Background(), venue.OrderRequest{MarketID: "m1", OutcomeID: "yes", Side: venue.SideBuy, Price: 0.5, SizeUSD: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != venue.StatusFilled || order.FilledSizeUSD != 10 {
		t.Fatalf("expected instant fill of 10, got %+v", order)
	}
	if pv.Balance() >= 1000 {
		t.Fatalf("expected balance decremented on buy, got %f", pv.Balance())
	}
}

func TestPaperVenuePartialFillBeyondDepth(t *testing.T) {
	key := marketdata.Key{Venue: venue.Polymarket, MarketID: "m1", OutcomeID: "yes"}
	prices := &fakePrices{books: map[marketdata.Key]venue.OrderBook{
		key: {Asks: []venue.PriceLevel{{Price: 0.5, Size: 4}}},
	}}
	pv := NewPaperVenue(venue.Polymarket, prices, 1000, 0)
	order, err := pv.PlaceOrder(context.Background(), venue.OrderRequest{MarketID: "m1", OutcomeID: "yes", Side: venue.SideBuy, Price: 0.5, SizeUSD: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != venue.StatusPartial || order.FilledSizeUSD != 4 {
		t.Fatalf("expected partial fill of 4, got %+v", order)
	}
}

func TestPaperVenueSellIncrementsBalance(t *testing.T) {
	key := marketdata.Key{Venue: venue.Polymarket, MarketID: "m1", OutcomeID: "yes"}
	prices := &fakePrices{books: map[marketdata.Key]venue.OrderBook{
		key: {Bids: []venue.PriceLevel{{Price: 0.5, Size: 100}}},
	}}
	pv := NewPaperVenue(venue.Polymarket, prices, 1000, 0)
	_, err := pv.PlaceOrder(context.Background(), venue.OrderRequest{MarketID: "m1", OutcomeID: "yes", Side: venue.SideSell, Price: 0.5, SizeUSD: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pv.Balance() <= 1000 {
		t.Fatalf("expected balance incremented on sell, got %f", pv.Balance())
	}
}

func TestPaperVenueCancelOrder(t *testing.T) {
	prices := &fakePrices{books: map[marketdata.Key]venue.OrderBook{}}
	pv := NewPaperVenue(venue.Polymarket, prices, 1000, 0)
	order, _ := pv.PlaceOrder(context.Background(), venue.OrderRequest{MarketID: "m1", OutcomeID: "yes", Side: venue.SideBuy, Price: 0.5, SizeUSD: 10})
	if err := pv.CancelOrder(context.Background(), order.ExternalID); err != nil {
		t.Fatalf("unexpected cancel error: %v", err)
	}
	if err := pv.CancelOrder(context.Background(), order.ExternalID); err == nil {
		t.Fatal("expected error cancelling already-terminal order")
	}
}
