package polymarket

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"oddsarb.dev/core/internal/venue"
)

// get performs a signed GET, acquiring the named rate limiter first and
// retrying transient errors with exponential backoff (max 3 attempts),
// exactly as spec.md §4.2 specifies for every venue call.
func (c *Client) get(ctx context.Context, limiterName, path, endpointLabel string) ([]byte, error) {
	return c.do(ctx, limiterName, http.MethodGet, path, nil, endpointLabel)
}

func (c *Client) postJSON(ctx context.Context, limiterName, path string, body []byte, endpointLabel string) ([]byte, error) {
	return c.do(ctx, limiterName, http.MethodPost, path, body, endpointLabel)
}

func (c *Client) deleteJSON(ctx context.Context, limiterName, path string, body []byte, endpointLabel string) ([]byte, error) {
	return c.do(ctx, limiterName, http.MethodDelete, path, body, endpointLabel)
}

func (c *Client) do(ctx context.Context, limiterName, method, path string, body []byte, endpointLabel string) ([]byte, error) {
	limiter := c.reads
	if limiterName == "orders" {
		limiter = c.orders
	}
	if limiter != nil {
		if err := limiter.Acquire(ctx, 1, 30*time.Second); err != nil {
			if c.metric != nil {
				c.metric.RateLimitHits.WithLabelValues(limiter.Name()).Inc()
			}
			return nil, fmt.Errorf("polymarket %s: %w", endpointLabel, err)
		}
	}

	start := time.Now()
	result, err := backoff.Retry(ctx, func() ([]byte, error) {
		return c.cb.Execute(func() ([]byte, error) {
			return c.roundTrip(ctx, method, path, body)
		})
	}, backoff.WithMaxTries(3), backoff.WithBackOff(backoff.NewExponentialBackOff()))

	if c.metric != nil {
		c.metric.OrderLatencyMs.WithLabelValues(string(venue.Polymarket)).Observe(float64(time.Since(start).Milliseconds()))
		if err != nil {
			c.metric.APIErrors.WithLabelValues(string(venue.Polymarket), endpointLabel).Inc()
		}
	}
	return result, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	headers, err := c.signer.Headers(method, path, string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", venue.ErrAuthFailed, err)
	}

	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(string(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", venue.ErrTransport, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", venue.ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, backoff.Permanent(fmt.Errorf("%w: status %d", venue.ErrAuthFailed, resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status 429", venue.ErrRateLimited)
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(fmt.Errorf("%w: %s", venue.ErrNotFound, path))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, backoff.Permanent(fmt.Errorf("%w: status %d: %s", venue.ErrRejected, resp.StatusCode, string(respBody)))
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", venue.ErrTransport, resp.StatusCode)
	}
	return respBody, nil
}
