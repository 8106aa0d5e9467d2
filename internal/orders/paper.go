package orders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"oddsarb.dev/core/internal/marketdata"
	"oddsarb.dev/core/internal/venue"
)

// PaperVenue is the parallel in-memory venue for paper trading (spec.md
// §4.11): orders are marked instantly filled at the limit price when size
// fits within the cached top-of-book, partially filled otherwise, and
// positions/balance update synthetically. Grounded on the teacher's
// MockExecutor (internal/order/dry_run.go), generalized from one cash
// balance per symbol to a single account balance across (market, outcome)
// binary contracts, and from always-fills-at-order-price to a
// book-depth-aware instant/partial split.
type PaperVenue struct {
	id      venue.ID
	prices  PriceSource
	feeRate float64

	mu        sync.Mutex
	balance   float64
	positions map[string]*venue.Position // "marketId:outcomeId" -> position
	orders    map[string]venue.Order
	trades    []venue.Trade
}

// NewPaperVenue builds a paper-trading mirror for venue id v, backed by
// prices for top-of-book depth lookups.
func NewPaperVenue(v venue.ID, prices PriceSource, initialBalance, feeRate float64) *PaperVenue {
	return &PaperVenue{
		id: v, prices: prices, feeRate: feeRate, balance: initialBalance,
		positions: make(map[string]*venue.Position), orders: make(map[string]venue.Order),
	}
}

func (p *PaperVenue) ID() venue.ID { return p.id }

func (p *PaperVenue) Connect(ctx context.Context) error { return nil }

func (p *PaperVenue) GetMarkets(ctx context.Context, filter venue.MarketFilter) ([]venue.Market, error) {
	return nil, fmt.Errorf("orders: paper venue does not source markets")
}

func (p *PaperVenue) GetMarket(ctx context.Context, externalID string) (venue.Market, error) {
	return venue.Market{}, fmt.Errorf("orders: paper venue does not source markets")
}

func (p *PaperVenue) GetOrderBook(ctx context.Context, marketID, outcomeID string) (venue.OrderBook, error) {
	book, _, ok := p.prices.GetOrderBook(marketdata.Key{Venue: p.id, MarketID: marketID, OutcomeID: outcomeID})
	if !ok {
		return venue.OrderBook{}, fmt.Errorf("orders: no cached book for %s/%s", marketID, outcomeID)
	}
	return book, nil
}

// Balance returns the current synthetic cash balance.
func (p *PaperVenue) Balance() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance
}

func (p *PaperVenue) GetBalance(ctx context.Context) (float64, error) {
	return p.Balance(), nil
}

func (p *PaperVenue) GetPositions(ctx context.Context) ([]venue.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]venue.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	return out, nil
}

func (p *PaperVenue) GetTrades(ctx context.Context, limit int) ([]venue.Trade, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if limit <= 0 || limit > len(p.trades) {
		limit = len(p.trades)
	}
	start := len(p.trades) - limit
	out := make([]venue.Trade, limit)
	copy(out, p.trades[start:])
	return out, nil
}

func (p *PaperVenue) TakerFee(outcomeID string) float64 { return p.feeRate }

// PlaceOrder fills instantly at the limit price if size is covered by the
// cached top-of-book at that price or better, partially otherwise.
func (p *PaperVenue) PlaceOrder(ctx context.Context, req venue.OrderRequest) (venue.Order, error) {
	book, _, _ := p.prices.GetOrderBook(marketdata.Key{Venue: p.id, MarketID: req.MarketID, OutcomeID: req.OutcomeID})

	available := availableDepth(book, req.Side, req.Price)
	filled := req.SizeUSD
	status := venue.StatusFilled
	if available < req.SizeUSD {
		filled = available
		if filled <= 0 {
			filled = 0
			status = venue.StatusOpen // no depth at all: stays open, no synthetic fill
		} else {
			status = venue.StatusPartial
		}
	}

	now := time.Now()
	order := venue.Order{
		ID: uuid.NewString(), Venue: p.id, ExternalID: uuid.NewString(),
		MarketID: req.MarketID, OutcomeID: req.OutcomeID, Side: req.Side,
		Price: req.Price, SizeUSD: req.SizeUSD, FilledSizeUSD: filled, AvgFillPrice: req.Price,
		Type: req.Type, Status: status, StrategyID: req.StrategyID,
		CreatedAt: now, UpdatedAt: now,
	}

	p.mu.Lock()
	p.orders[order.ID] = order
	if filled > 0 {
		p.applyFill(req, filled)
		p.trades = append(p.trades, venue.Trade{
			ID: uuid.NewString(), Venue: p.id, OrderID: order.ID, MarketID: req.MarketID,
			OutcomeID: req.OutcomeID, Side: req.Side, Price: req.Price, Size: filled,
			Fee: filled * req.Price * p.feeRate, ExecutedAt: now,
		})
	}
	p.mu.Unlock()

	return order, nil
}

// availableDepth sums book size on the side the taker crosses, at prices at
// least as good as req.Price (ask<=price for BUY, bid>=price for SELL).
func availableDepth(book venue.OrderBook, side venue.Side, price float64) float64 {
	var total float64
	if side == venue.SideBuy {
		for _, lvl := range book.Asks {
			if lvl.Price <= price {
				total += lvl.Size
			}
		}
	} else {
		for _, lvl := range book.Bids {
			if lvl.Price >= price {
				total += lvl.Size
			}
		}
	}
	return total
}

// applyFill updates the synthetic balance (single decremented/incremented
// number, spec.md §4.11) and the per-(market,outcome) position. Caller
// holds p.mu.
func (p *PaperVenue) applyFill(req venue.OrderRequest, filled float64) {
	notional := filled * req.Price
	fee := notional * p.feeRate
	if req.Side == venue.SideBuy {
		p.balance -= notional + fee
	} else {
		p.balance += notional - fee
	}

	key := req.MarketID + ":" + req.OutcomeID
	pos, exists := p.positions[key]
	if !exists {
		side := venue.PositionLong
		if req.Side == venue.SideSell {
			side = venue.PositionShort
		}
		p.positions[key] = &venue.Position{
			ID: key, Venue: p.id, MarketID: req.MarketID, OutcomeID: req.OutcomeID,
			Side: side, Size: filled, AvgEntryPrice: req.Price, CurrentPrice: req.Price,
			IsOpen: true, StrategyID: req.StrategyID,
		}
		return
	}

	sameDirection := (pos.Side == venue.PositionLong && req.Side == venue.SideBuy) ||
		(pos.Side == venue.PositionShort && req.Side == venue.SideSell)
	if sameDirection {
		totalCost := pos.Size*pos.AvgEntryPrice + filled*req.Price
		pos.Size += filled
		if pos.Size > 0 {
			pos.AvgEntryPrice = totalCost / pos.Size
		}
	} else {
		pos.Size -= filled
		if pos.Size <= 0 {
			pos.IsOpen = false
			pos.Size = 0
			delete(p.positions, key)
		}
	}
}

func (p *PaperVenue) CancelOrder(ctx context.Context, externalOrderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, o := range p.orders {
		if o.ExternalID == externalOrderID && !o.Status.IsTerminal() {
			o.Status = venue.StatusCancelled
			o.UpdatedAt = time.Now()
			p.orders[id] = o
			return nil
		}
	}
	return fmt.Errorf("orders: paper order %s not found or already terminal", externalOrderID)
}

func (p *PaperVenue) CancelAllOrders(ctx context.Context, marketID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, o := range p.orders {
		if o.Status.IsTerminal() {
			continue
		}
		if marketID != "" && o.MarketID != marketID {
			continue
		}
		o.Status = venue.StatusCancelled
		o.UpdatedAt = time.Now()
		p.orders[id] = o
	}
	return nil
}
