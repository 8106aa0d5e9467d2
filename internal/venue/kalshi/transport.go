package kalshi

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

func (c *Client) get(ctx context.Context, path, endpointLabel string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil, endpointLabel)
}

func (c *Client) postJSON(ctx context.Context, path string, body []byte, endpointLabel string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, body, endpointLabel)
}

func (c *Client) deleteJSON(ctx context.Context, path string, endpointLabel string) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, path, nil, endpointLabel)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, endpointLabel string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx, 1, 30*time.Second); err != nil {
			if c.metric != nil {
				c.metric.RateLimitHits.WithLabelValues(c.limiter.Name()).Inc()
			}
			return nil, fmt.Errorf("kalshi %s: %w", endpointLabel, err)
		}
	}

	start := time.Now()
	result, err := backoff.Retry(ctx, func() ([]byte, error) {
		return c.cb.Execute(func() ([]byte, error) {
			return c.roundTrip(ctx, method, path, body)
		})
	}, backoff.WithMaxTries(3), backoff.WithBackOff(backoff.NewExponentialBackOff()))

	if c.metric != nil {
		c.metric.OrderLatencyMs.WithLabelValues(string(venue.Kalshi)).Observe(float64(time.Since(start).Milliseconds()))
		if err != nil {
			c.metric.APIErrors.WithLabelValues(string(venue.Kalshi), endpointLabel).Inc()
		}
	}
	return result, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	pathNoQuery := path
	if i := strings.IndexByte(path, '?'); i >= 0 {
		pathNoQuery = path[:i]
	}
	headers, err := c.signer.Headers(method, pathNoQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", venue.ErrAuthFailed, err)
	}

	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(string(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.Host+path, reader)
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
