package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"oddsarb.dev/core/internal/venue"
)

// wire types mirror the Polymarket CLOB JSON shapes (decimal prices already
// in [0,1], unlike Kalshi's integer cents).

type wireToken struct {
	TokenID string `json:"token_id"`
	Outcome string `json:"outcome"`
	Price   string `json:"price"`
}

type wireMarket struct {
	ConditionID string      `json:"condition_id"`
	Question    string      `json:"question"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	EndDateISO  string      `json:"end_date_iso"`
	Active      bool        `json:"active"`
	Closed      bool        `json:"closed"`
	Volume24hr  string      `json:"volume_24hr"`
	Liquidity   string      `json:"liquidity"`
	Tokens      []wireToken `json:"tokens"`
}

type wireMarketsPage struct {
	Data []wireMarket `json:"data"`
}

type wireLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type wireBook struct {
	Bids []wireLevel `json:"bids"`
	Asks []wireLevel `json:"asks"`
}

func toMarket(w wireMarket) venue.Market {
	endDate, _ := time.Parse(time.RFC3339, w.EndDateISO)
	m := venue.Market{
		ID:          fmt.Sprintf("%s:%s", venue.Polymarket, w.ConditionID),
		Venue:       venue.Polymarket,
		ExternalID:  w.ConditionID,
		Title:       w.Question,
		Description: w.Description,
		Category:    w.Category,
		EndDate:     endDate,
		IsActive:    w.Active && !w.Closed,
	}
	if m.IsActive {
		m.Status = venue.MarketActive
	} else if w.Closed {
		m.Status = venue.MarketResolved
	} else {
		m.Status = venue.MarketSuspended
	}
	if v, err := decimal.NewFromString(w.Volume24hr); err == nil {
		m.Volume24h, _ = v.Float64()
	}
	if v, err := decimal.NewFromString(w.Liquidity); err == nil {
		m.Liquidity, _ = v.Float64()
	}
	for _, t := range w.Tokens {
		outcomeType := venue.OutcomeNo
		if t.Outcome == "Yes" || t.Outcome == "YES" {
			outcomeType = venue.OutcomeYes
		}
		price, _ := decimal.NewFromString(t.Price)
		pf, _ := price.Float64()
		m.Outcomes = append(m.Outcomes, venue.Outcome{
			ID:          fmt.Sprintf("%s:%s:%s", venue.Polymarket, w.ConditionID, t.TokenID),
			ExternalID:  t.TokenID,
			Name:        t.Outcome,
			Type:        outcomeType,
			Probability: pf,
		})
	}
	return m
}

func (c *Client) GetMarkets(ctx context.Context, filter venue.MarketFilter) ([]venue.Market, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	body, err := c.get(ctx, "reads", fmt.Sprintf("/markets?limit=%d", limit), "/markets")
	if err != nil {
		return nil, err
	}
	var page wireMarketsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: decode markets: %v", venue.ErrTransport, err)
	}
	out := make([]venue.Market, 0, len(page.Data))
	for _, w := range page.Data {
		out = append(out, toMarket(w))
	}
	return out, nil
}

func (c *Client) GetMarket(ctx context.Context, externalID string) (venue.Market, error) {
	if externalID == "" {
		return venue.Market{}, venue.ErrValidation
	}
	body, err := c.get(ctx, "reads", "/markets/"+externalID, "/markets/{id}")
	if err != nil {
		return venue.Market{}, err
	}
	var w wireMarket
	if err := json.Unmarshal(body, &w); err != nil {
		return venue.Market{}, fmt.Errorf("%w: decode market: %v", venue.ErrTransport, err)
	}
	return toMarket(w), nil
}

func (c *Client) GetOrderBook(ctx context.Context, marketID, outcomeID string) (venue.OrderBook, error) {
	body, err := c.get(ctx, "reads", "/markets/"+marketID+"/book?token_id="+outcomeID, "/markets/{id}/book")
	if err != nil {
		return venue.OrderBook{}, err
	}
	var w wireBook
	if err := json.Unmarshal(body, &w); err != nil {
		return venue.OrderBook{}, fmt.Errorf("%w: decode book: %v", venue.ErrTransport, err)
	}
	ob := venue.OrderBook{MarketID: marketID, OutcomeID: outcomeID, Timestamp: time.Now()}
	for _, b := range w.Bids {
		ob.Bids = append(ob.Bids, toLevel(b))
	}
	for _, a := range w.Asks {
		ob.Asks = append(ob.Asks, toLevel(a))
	}
	return ob, nil
}

func toLevel(w wireLevel) venue.PriceLevel {
	p, _ := decimal.NewFromString(w.Price)
	s, _ := decimal.NewFromString(w.Size)
	pf, _ := p.Float64()
	sf, _ := s.Float64()
	return venue.PriceLevel{Price: pf, Size: sf}
}
