package venue

import "context"

// Client is the contract implemented identically by the Polymarket-like and
// Kalshi-like venue clients (C2). Implementations normalize price/size at
// the boundary: callers only ever see USD-size and [0,1] prices.
type Client interface {
	ID() ID
	Connect(ctx context.Context) error

	GetMarkets(ctx context.Context, filter MarketFilter) ([]Market, error)
	GetMarket(ctx context.Context, externalID string) (Market, error)
	GetOrderBook(ctx context.Context, marketID, outcomeID string) (OrderBook, error)

	PlaceOrder(ctx context.Context, req OrderRequest) (Order, error)
	CancelOrder(ctx context.Context, externalOrderID string) error
	CancelAllOrders(ctx context.Context, marketID string) error

	GetBalance(ctx context.Context) (float64, error)
	GetPositions(ctx context.Context) ([]Position, error)
	GetTrades(ctx context.Context, limit int) ([]Trade, error)

	// TakerFee returns the per-notional taker fee rate applied to a BUY of
	// the given outcome; used by the arbitrage/strategy math in C7/C8.
	TakerFee(outcomeID string) float64
}
