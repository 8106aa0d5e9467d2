// Package kalshi implements the Kalshi-like venue client (C2): REST calls,
// RSA-PSS signing, and cent-to-dollar normalization at the boundary.
// Grounded on the same pkg/exchanges/binance/spot/binance.go client shape
// as internal/venue/polymarket; the differently-authenticated second venue
// client mirrors how the teacher keeps a second Binance client
// (pkg/exchanges/binance/futures_usdt) alongside its spot client.
package kalshi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"oddsarb.dev/core/internal/ratelimit"
	"oddsarb.dev/core/internal/venue"
	"oddsarb.dev/core/pkg/cryptoutil"
	"oddsarb.dev/core/pkg/metrics"
)

// Config holds Kalshi credentials and connection settings.
type Config struct {
	KeyID         string
	PrivateKeyPEM []byte
	Environment   string // "demo" or "prod"
	Host          string // default https://trading-api.kalshi.com
	RateLimitTier string // "kalshi.basic" | "kalshi.advanced" | "kalshi.pro"
	TakerFeeRate  float64
}

const basePath = "/trade-api/v2"

// Client is the Kalshi-like REST venue client.
type Client struct {
	cfg    Config
	signer *cryptoutil.KalshiSigner
	http   *http.Client

	limiter *ratelimit.Limiter
	metric  *metrics.Registry
	cb      *gobreaker.CircuitBreaker[[]byte]
}

// New constructs a Kalshi client.
func New(cfg Config, reg *ratelimit.Registry, m *metrics.Registry) (*Client, error) {
	if cfg.Host == "" {
		cfg.Host = "https://trading-api.kalshi.com"
	}
	if cfg.RateLimitTier == "" {
		cfg.RateLimitTier = "kalshi.basic"
	}
	signer, err := cryptoutil.NewKalshiSigner(cfg.KeyID, cfg.PrivateKeyPEM)
	if err != nil {
		return nil, err
	}

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "kalshi",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		cfg:     cfg,
		signer:  signer,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: reg.Get(cfg.RateLimitTier),
		metric:  m,
		cb:      cb,
	}, nil
}

func (c *Client) ID() venue.ID { return venue.Kalshi }

func (c *Client) TakerFee(string) float64 { return c.cfg.TakerFeeRate }

func (c *Client) Connect(ctx context.Context) error {
	_, err := c.get(ctx, basePath+"/markets?limit=1", "/markets")
	if err != nil {
		return fmt.Errorf("kalshi connect: %w: %v", venue.ErrUnreachable, err)
	}
	return nil
}
