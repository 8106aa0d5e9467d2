package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"oddsarb.dev/core/internal/venue"
)

type wireOrderRequest struct {
	TokenID     string `json:"token_id"`
	Side        string `json:"side"`
	Price       string `json:"price"`
	Size        string `json:"size"`
	OrderType   string `json:"order_type"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

type wireOrderResponse struct {
	OrderID       string `json:"orderID"`
	Status        string `json:"status"`
	MakingAmount  string `json:"making_amount"`
	TakingAmount  string `json:"taking_amount"`
}

func toOrderType(t venue.OrderType) string {
	switch t {
	case venue.OrderFOK:
		return "FOK"
	case venue.OrderIOC:
		return "IOC"
	case venue.OrderGTD:
		return "GTD"
	default:
		return "GTC"
	}
}

func mapPolymarketStatus(s string) venue.OrderStatus {
	switch s {
	case "live":
		return venue.StatusOpen
	case "matched":
		return venue.StatusFilled
	case "cancelled", "canceled":
		return venue.StatusCancelled
	case "rejected", "unmatched":
		return venue.StatusRejected
	default:
		return venue.StatusPending
	}
}

func (c *Client) PlaceOrder(ctx context.Context, req venue.OrderRequest) (venue.Order, error) {
	if req.Price <= 0 || req.Price >= 1 || req.SizeUSD <= 0 {
		return venue.Order{}, venue.ErrValidation
	}

	sizeShares := req.SizeUSD / req.Price
	clientID := req.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}

	wireReq := wireOrderRequest{
		TokenID:       req.OutcomeID,
		Side:          string(req.Side),
		Price:         decimal.NewFromFloat(req.Price).StringFixed(4),
		Size:          decimal.NewFromFloat(sizeShares).StringFixed(2),
		OrderType:     toOrderType(req.Type),
		ClientOrderID: clientID,
	}
	payload, err := json.Marshal(wireReq)
	if err != nil {
		return venue.Order{}, fmt.Errorf("%w: %v", venue.ErrValidation, err)
	}

	body, err := c.postJSON(ctx, "orders", "/orders", payload, "/orders")
	if err != nil {
		return venue.Order{}, err
	}

	var resp wireOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return venue.Order{}, fmt.Errorf("%w: decode order response: %v", venue.ErrTransport, err)
	}

	now := time.Now()
	order := venue.Order{
		ID:         uuid.NewString(),
		Venue:      venue.Polymarket,
		ExternalID: resp.OrderID,
		MarketID:   req.MarketID,
		OutcomeID:  req.OutcomeID,
		Side:       req.Side,
		Price:      req.Price,
		SizeUSD:    req.SizeUSD,
		Type:       req.Type,
		Status:     mapPolymarketStatus(resp.Status),
		StrategyID: req.StrategyID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if order.Status == venue.StatusFilled {
		order.FilledSizeUSD = req.SizeUSD
		order.AvgFillPrice = req.Price
	}
	return order, nil
}

func (c *Client) CancelOrder(ctx context.Context, externalOrderID string) error {
	if externalOrderID == "" {
		return venue.ErrValidation
	}
	payload, _ := json.Marshal(map[string]string{"orderID": externalOrderID})
	_, err := c.deleteJSON(ctx, "orders", "/orders", payload, "/orders")
	return err
}

func (c *Client) CancelAllOrders(ctx context.Context, marketID string) error {
	payload, _ := json.Marshal(map[string]string{"market": marketID})
	_, err := c.deleteJSON(ctx, "orders", "/orders/all", payload, "/orders/all")
	return err
}

func (c *Client) GetBalance(ctx context.Context) (float64, error) {
	body, err := c.get(ctx, "reads", "/balances/"+c.signer.FunderAddress(), "/balances/{addr}")
	if err != nil {
		return 0, err
	}
	var resp struct {
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("%w: decode balance: %v", venue.ErrTransport, err)
	}
	d, _ := decimal.NewFromString(resp.Balance)
	v, _ := d.Float64()
	return v, nil
}

func (c *Client) GetPositions(ctx context.Context) ([]venue.Position, error) {
	body, err := c.get(ctx, "reads", "/positions", "/positions")
	if err != nil {
		return nil, err
	}
	var wire []struct {
		Market        string `json:"market"`
		TokenID       string `json:"token_id"`
		Size          string `json:"size"`
		AvgPrice      string `json:"avg_price"`
		CurrentPrice  string `json:"current_price"`
		RealizedPnl   string `json:"realized_pnl"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: decode positions: %v", venue.ErrTransport, err)
	}
	out := make([]venue.Position, 0, len(wire))
	for _, w := range wire {
		size, _ := decimal.NewFromString(w.Size)
		avg, _ := decimal.NewFromString(w.AvgPrice)
		cur, _ := decimal.NewFromString(w.CurrentPrice)
		rpnl, _ := decimal.NewFromString(w.RealizedPnl)
		sizeF, _ := size.Float64()
		avgF, _ := avg.Float64()
		curF, _ := cur.Float64()
		rpnlF, _ := rpnl.Float64()
		out = append(out, venue.Position{
			Venue:         venue.Polymarket,
			MarketID:      w.Market,
			OutcomeID:     w.TokenID,
			Side:          venue.PositionLong,
			Size:          sizeF,
			AvgEntryPrice: avgF,
			CurrentPrice:  curF,
			UnrealizedPnl: (curF - avgF) * sizeF,
			RealizedPnl:   rpnlF,
			IsOpen:        sizeF > 0,
		})
	}
	return out, nil
}

func (c *Client) GetTrades(ctx context.Context, limit int) ([]venue.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	body, err := c.get(ctx, "reads", fmt.Sprintf("/trades?limit=%d", limit), "/trades")
	if err != nil {
		return nil, err
	}
	var wire []struct {
		ID       string `json:"id"`
		OrderID  string `json:"order_id"`
		Market   string `json:"market"`
		TokenID  string `json:"token_id"`
		Side     string `json:"side"`
		Price    string `json:"price"`
		Size     string `json:"size"`
		Fee      string `json:"fee"`
		Time     int64  `json:"match_time"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: decode trades: %v", venue.ErrTransport, err)
	}
	out := make([]venue.Trade, 0, len(wire))
	for _, w := range wire {
		price, _ := decimal.NewFromString(w.Price)
		size, _ := decimal.NewFromString(w.Size)
		fee, _ := decimal.NewFromString(w.Fee)
		priceF, _ := price.Float64()
		sizeF, _ := size.Float64()
		feeF, _ := fee.Float64()
		out = append(out, venue.Trade{
			ID:         w.ID,
			Venue:      venue.Polymarket,
			OrderID:    w.OrderID,
			MarketID:   w.Market,
			OutcomeID:  w.TokenID,
			Side:       venue.Side(w.Side),
			Price:      priceF,
			Size:       sizeF,
			Fee:        feeF,
			ExecutedAt: time.Unix(w.Time, 0),
		})
	}
	return out, nil
}
