// Package polymarket implements the Polymarket-like venue client (C2):
// REST calls, ECDSA-derived HMAC signing, and USD/price normalization.
// Grounded on pkg/exchanges/binance/spot/binance.go for the overall client
// shape (base URL selection, doSigned round-trip, status mapping) and on
// 0xtitan6-polymarket-mm/internal/exchange/auth.go for the signing scheme.
package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"oddsarb.dev/core/internal/ratelimit"
	"oddsarb.dev/core/internal/venue"
	"oddsarb.dev/core/pkg/cryptoutil"
	"oddsarb.dev/core/pkg/metrics"
)

// Config holds Polymarket credentials and connection settings.
type Config struct {
	PrivateKey    string
	APIKey        string
	APISecret     string
	APIPassphrase string
	FunderAddress string
	ChainID       int64
	SignatureType cryptoutil.SignatureType
	BaseURL       string // default https://clob.polymarket.com
	TakerFeeRate  float64
}

// Client is the Polymarket-like REST venue client.
type Client struct {
	cfg    Config
	signer *cryptoutil.PolymarketSigner
	http   *http.Client

	orders *ratelimit.Limiter
	reads  *ratelimit.Limiter
	metric *metrics.Registry
	cb     *gobreaker.CircuitBreaker[[]byte]
}

// New constructs a Polymarket client. reg supplies the two preconfigured
// rate limiters ("polymarket.orders", "polymarket.reads").
func New(cfg Config, reg *ratelimit.Registry, m *metrics.Registry) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://clob.polymarket.com"
	}
	signer, err := cryptoutil.NewPolymarketSigner(cfg.PrivateKey, cfg.FunderAddress, cfg.ChainID, cfg.SignatureType, cryptoutil.L2Credentials{
		APIKey:     cfg.APIKey,
		Secret:     cfg.APISecret,
		Passphrase: cfg.APIPassphrase,
	})
	if err != nil {
		return nil, fmt.Errorf("polymarket: %w", err)
	}

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "polymarket",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		cfg:    cfg,
		signer: signer,
		http:   &http.Client{Timeout: 10 * time.Second},
		orders: reg.Get("polymarket.orders"),
		reads:  reg.Get("polymarket.reads"),
		metric: m,
		cb:     cb,
	}, nil
}

func (c *Client) ID() venue.ID { return venue.Polymarket }

// TakerFee returns the configured taker fee rate; Polymarket fees are
// market-dependent in production but the core treats them as configuration
// per spec.md §9's open question on placeholder fees.
func (c *Client) TakerFee(string) float64 { return c.cfg.TakerFeeRate }

func (c *Client) Connect(ctx context.Context) error {
	_, err := c.get(ctx, "reads", "/markets?limit=1", "markets")
	if err != nil {
		return fmt.Errorf("polymarket connect: %w: %v", venue.ErrUnreachable, err)
	}
	return nil
}
