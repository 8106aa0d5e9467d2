package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"oddsarb.dev/core/internal/venue"
)

// wire types mirror the Kalshi trade-api/v2 JSON shapes: prices are
// integer cents in [0,100]; this package is the only place that encoding
// is visible, per spec.md §4.2.

type wireMarket struct {
	Ticker          string `json:"ticker"`
	Title           string `json:"title"`
	SubtitleText    string `json:"subtitle"`
	Category        string `json:"category"`
	CloseTime       string `json:"close_time"`
	Status          string `json:"status"`
	YesBid          int    `json:"yes_bid"`
	YesAsk          int    `json:"yes_ask"`
	NoBid           int    `json:"no_bid"`
	NoAsk           int    `json:"no_ask"`
	Volume24h       int64  `json:"volume_24h"`
	Liquidity       int64  `json:"liquidity"`
}

type wireMarketsPage struct {
	Markets []wireMarket `json:"markets"`
}

type wireOrderBook struct {
	Yes [][2]int `json:"yes"`
	No  [][2]int `json:"no"`
}

func centsToProb(cents int) float64 {
	return float64(cents) / 100.0
}

func toMarket(w wireMarket) venue.Market {
	endDate, _ := time.Parse(time.RFC3339, w.CloseTime)
	status := venue.MarketSuspended
	active := w.Status == "active"
	switch w.Status {
	case "active":
		status = venue.MarketActive
	case "finalized", "settled":
		status = venue.MarketResolved
	}

	m := venue.Market{
		ID:          fmt.Sprintf("%s:%s", venue.Kalshi, w.Ticker),
		Venue:       venue.Kalshi,
		ExternalID:  w.Ticker,
		Title:       w.Title,
		Description: w.SubtitleText,
		Category:    w.Category,
		EndDate:     endDate,
		Status:      status,
		IsActive:    active,
		Volume24h:   float64(w.Volume24h),
		Liquidity:   float64(w.Liquidity),
		Outcomes: []venue.Outcome{
			{
				ID:         fmt.Sprintf("%s:%s:yes", venue.Kalshi, w.Ticker),
				ExternalID: "yes",
				Name:       "Yes",
				Type:       venue.OutcomeYes,
				BestBid:    centsToProb(w.YesBid),
				BestAsk:    centsToProb(w.YesAsk),
			},
			{
				ID:         fmt.Sprintf("%s:%s:no", venue.Kalshi, w.Ticker),
				ExternalID: "no",
				Name:       "No",
				Type:       venue.OutcomeNo,
				BestBid:    centsToProb(w.NoBid),
				BestAsk:    centsToProb(w.NoAsk),
			},
		},
	}
	return m
}

func (c *Client) GetMarkets(ctx context.Context, filter venue.MarketFilter) ([]venue.Market, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	body, err := c.get(ctx, fmt.Sprintf("%s/markets?limit=%d", basePath, limit), "/markets")
	if err != nil {
		return nil, err
	}
	var page wireMarketsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: decode markets: %v", venue.ErrTransport, err)
	}
	out := make([]venue.Market, 0, len(page.Markets))
	for _, w := range page.Markets {
		out = append(out, toMarket(w))
	}
	return out, nil
}

func (c *Client) GetMarket(ctx context.Context, externalID string) (venue.Market, error) {
	if externalID == "" {
		return venue.Market{}, venue.ErrValidation
	}
	body, err := c.get(ctx, basePath+"/markets/"+externalID, "/markets/{ticker}")
	if err != nil {
		return venue.Market{}, err
	}
	var wrap struct {
		Market wireMarket `json:"market"`
	}
	if err := json.Unmarshal(body, &wrap); err != nil {
		return venue.Market{}, fmt.Errorf("%w: decode market: %v", venue.ErrTransport, err)
	}
	return toMarket(wrap.Market), nil
}

func (c *Client) GetOrderBook(ctx context.Context, marketID, outcomeID string) (venue.OrderBook, error) {
	body, err := c.get(ctx, basePath+"/markets/"+marketID+"/orderbook", "/markets/{ticker}/orderbook")
	if err != nil {
		return venue.OrderBook{}, err
	}
	var wrap struct {
		OrderBook wireOrderBook `json:"orderbook"`
	}
	if err := json.Unmarshal(body, &wrap); err != nil {
		return venue.OrderBook{}, fmt.Errorf("%w: decode orderbook: %v", venue.ErrTransport, err)
	}

	side := wrap.OrderBook.Yes
	if outcomeID == "no" {
		side = wrap.OrderBook.No
	}

	ob := venue.OrderBook{MarketID: marketID, OutcomeID: outcomeID, Timestamp: time.Now()}
	for _, level := range side {
		price := centsToProb(level[0])
		count := float64(level[1])
		sizeUSD := count * price
		// Kalshi returns bids only per side at this endpoint; no asks are
		// derived from the complementary side, so ob.Asks stays empty.
		ob.Bids = append(ob.Bids, venue.PriceLevel{Price: price, Size: sizeUSD})
	}
	return ob, nil
}
