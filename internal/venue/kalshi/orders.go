package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"oddsarb.dev/core/internal/venue"
)

type wireOrderRequest struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id"`
	Side          string `json:"side"` // yes|no
	Action        string `json:"action"` // buy|sell
	Count         int    `json:"count"`
	YesPrice      int    `json:"yes_price,omitempty"`
	NoPrice       int    `json:"no_price,omitempty"`
	TimeInForce   string `json:"time_in_force"`
}

type wireOrderResponse struct {
	Order struct {
		OrderID     string `json:"order_id"`
		Status      string `json:"status"`
		FilledCount int    `json:"filled_count"`
		YesPrice    int    `json:"yes_price"`
		NoPrice     int    `json:"no_price"`
	} `json:"order"`
}

func toTimeInForce(t venue.OrderType) string {
	switch t {
	case venue.OrderFOK:
		return "fok"
	case venue.OrderIOC:
		return "ioc"
	case venue.OrderGTD:
		return "day"
	default:
		return "gtc"
	}
}

func mapKalshiStatus(s string, filled, requested int) venue.OrderStatus {
	switch s {
	case "resting":
		return venue.StatusOpen
	case "executed":
		if filled >= requested {
			return venue.StatusFilled
		}
		return venue.StatusPartial
	case "canceled":
		return venue.StatusCancelled
	default:
		return venue.StatusPending
	}
}

// outcomeSide returns ("yes"|"no") from an outcomeID shaped
// "kalshi:TICKER:yes|no".
func outcomeSide(outcomeID string) string {
	if len(outcomeID) >= 2 && outcomeID[len(outcomeID)-2:] == "no" {
		return "no"
	}
	return "yes"
}

func (c *Client) PlaceOrder(ctx context.Context, req venue.OrderRequest) (venue.Order, error) {
	if req.Price <= 0 || req.Price >= 1 || req.SizeUSD <= 0 {
		return venue.Order{}, venue.ErrValidation
	}

	count := int(math.Round(req.SizeUSD / req.Price))
	if count <= 0 {
		return venue.Order{}, venue.ErrValidation
	}
	priceCents := int(math.Round(req.Price * 100))

	side := outcomeSide(req.OutcomeID)
	action := "buy"
	if req.Side == venue.SideSell {
		action = "sell"
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}

	wireReq := wireOrderRequest{
		Ticker:        req.MarketID,
		ClientOrderID: clientID,
		Side:          side,
		Action:        action,
		Count:         count,
		TimeInForce:   toTimeInForce(req.Type),
	}
	if side == "yes" {
		wireReq.YesPrice = priceCents
	} else {
		wireReq.NoPrice = priceCents
	}

	payload, err := json.Marshal(wireReq)
	if err != nil {
		return venue.Order{}, fmt.Errorf("%w: %v", venue.ErrValidation, err)
	}

	body, err := c.postJSON(ctx, basePath+"/portfolio/orders", payload, "/portfolio/orders")
	if err != nil {
		return venue.Order{}, err
	}

	var resp wireOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return venue.Order{}, fmt.Errorf("%w: decode order response: %v", venue.ErrTransport, err)
	}

	now := time.Now()
	status := mapKalshiStatus(resp.Order.Status, resp.Order.FilledCount, count)
	order := venue.Order{
		ID:         uuid.NewString(),
		Venue:      venue.Kalshi,
		ExternalID: resp.Order.OrderID,
		MarketID:   req.MarketID,
		OutcomeID:  req.OutcomeID,
		Side:       req.Side,
		Price:      req.Price,
		SizeUSD:    req.SizeUSD,
		Type:       req.Type,
		Status:     status,
		StrategyID: req.StrategyID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if resp.Order.FilledCount > 0 {
		order.FilledSizeUSD = float64(resp.Order.FilledCount) * req.Price
		order.AvgFillPrice = req.Price
	}
	return order, nil
}

func (c *Client) CancelOrder(ctx context.Context, externalOrderID string) error {
	if externalOrderID == "" {
		return venue.ErrValidation
	}
	_, err := c.deleteJSON(ctx, basePath+"/portfolio/orders/"+externalOrderID, "/portfolio/orders/{id}")
	return err
}

func (c *Client) CancelAllOrders(ctx context.Context, marketID string) error {
	path := basePath + "/portfolio/orders"
	if marketID != "" {
		path += "?ticker=" + marketID
	}
	_, err := c.deleteJSON(ctx, path, "/portfolio/orders")
	return err
}

func (c *Client) GetBalance(ctx context.Context) (float64, error) {
	body, err := c.get(ctx, basePath+"/portfolio/balance", "/portfolio/balance")
	if err != nil {
		return 0, err
	}
	var resp struct {
		BalanceCents int64 `json:"balance"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("%w: decode balance: %v", venue.ErrTransport, err)
	}
	return float64(resp.BalanceCents) / 100.0, nil
}

func (c *Client) GetPositions(ctx context.Context) ([]venue.Position, error) {
	body, err := c.get(ctx, basePath+"/portfolio/positions", "/portfolio/positions")
	if err != nil {
		return nil, err
	}
	var resp struct {
		MarketPositions []struct {
			Ticker           string `json:"ticker"`
			Position         int    `json:"position"` // signed contract count, +yes/-no
			MarketExposure   int64  `json:"market_exposure"` // cents
			RealizedPnl      int64  `json:"realized_pnl"`    // cents
		} `json:"market_positions"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode positions: %v", venue.ErrTransport, err)
	}
	out := make([]venue.Position, 0, len(resp.MarketPositions))
	for _, p := range resp.MarketPositions {
		side := venue.PositionLong
		outcomeID := fmt.Sprintf("%s:%s:yes", venue.Kalshi, p.Ticker)
		size := p.Position
		if size < 0 {
			side = venue.PositionShort
			outcomeID = fmt.Sprintf("%s:%s:no", venue.Kalshi, p.Ticker)
			size = -size
		}
		out = append(out, venue.Position{
			Venue:       venue.Kalshi,
			MarketID:    p.Ticker,
			OutcomeID:   outcomeID,
			Side:        side,
			Size:        float64(size),
			RealizedPnl: float64(p.RealizedPnl) / 100.0,
			IsOpen:      size > 0,
		})
	}
	return out, nil
}

func (c *Client) GetTrades(ctx context.Context, limit int) ([]venue.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	body, err := c.get(ctx, fmt.Sprintf("%s/portfolio/fills?limit=%d", basePath, limit), "/portfolio/fills")
	if err != nil {
		return nil, err
	}
	var resp struct {
		Fills []struct {
			TradeID   string `json:"trade_id"`
			OrderID   string `json:"order_id"`
			Ticker    string `json:"ticker"`
			Side      string `json:"side"`
			Action    string `json:"action"`
			Count     int    `json:"count"`
			YesPrice  int    `json:"yes_price"`
			NoPrice   int    `json:"no_price"`
			CreatedTs int64  `json:"created_time"`
		} `json:"fills"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode fills: %v", venue.ErrTransport, err)
	}
	out := make([]venue.Trade, 0, len(resp.Fills))
	for _, f := range resp.Fills {
		price := centsToProb(f.YesPrice)
		outcomeID := fmt.Sprintf("%s:%s:yes", venue.Kalshi, f.Ticker)
		if f.Side == "no" {
			price = centsToProb(f.NoPrice)
			outcomeID = fmt.Sprintf("%s:%s:no", venue.Kalshi, f.Ticker)
		}
		side := venue.SideBuy
		if f.Action == "sell" {
			side = venue.SideSell
		}
		out = append(out, venue.Trade{
			ID:         f.TradeID,
			Venue:      venue.Kalshi,
			OrderID:    f.OrderID,
			MarketID:   f.Ticker,
			OutcomeID:  outcomeID,
			Side:       side,
			Price:      price,
			Size:       float64(f.Count) * price,
			ExecutedAt: time.Unix(f.CreatedTs, 0),
		})
	}
	return out, nil
}
