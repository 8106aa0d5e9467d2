// Package kalshi implements the Kalshi-like venue WebSocket client (C3).
// Unlike the Polymarket client this venue requires an Authenticating step
// (signed auth frame) before subscriptions are accepted, and deltas carry a
// sequence number that must be monitored for gaps per spec.md §8's
// orderbook reconciliation property.
package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"oddsarb.dev/core/internal/venuews"
	"oddsarb.dev/core/pkg/cryptoutil"
)

// authAckTimeout bounds how long Connecting waits for an auth ack before
// the attempt is treated as failed (spec.md §4.3).
const authAckTimeout = 5 * time.Second

// Client streams normalized orderbook_delta/trade/fill/order_update events.
type Client struct {
	url    string
	signer *cryptoutil.KalshiSigner
	dialer *websocket.Dialer
	rc     venuews.ReconnectConfig

	mu       sync.Mutex
	state    venuews.State
	subs     map[string]venuews.Subscription // channel -> subscription
	lastSeq  map[string]int64                // marketID:outcomeID -> last seen seq
}

// New builds a client authenticated with signer for the given WebSocket URL
// (e.g. wss://trading-api.kalshi.com/trade-api/ws/v2).
func New(wsURL string, signer *cryptoutil.KalshiSigner) *Client {
	return &Client{
		url:     wsURL,
		signer:  signer,
		dialer:  websocket.DefaultDialer,
		rc:      venuews.DefaultReconnectConfig(),
		state:   venuews.StateDisconnected,
		subs:    make(map[string]venuews.Subscription),
		lastSeq: make(map[string]int64),
	}
}

// State returns the current connection state.
func (c *Client) State() venuews.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s venuews.State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Subscribe adds tickers to the remembered subscription set for channel
// (one of "orderbook_delta", "trade", "fill", "order_update").
func (c *Client) Subscribe(channel string, tickers []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub := c.subs[channel]
	sub.Channel = channel
	sub.Identifiers = append(sub.Identifiers, tickers...)
	c.subs[channel] = sub
}

type authFrame struct {
	Cmd     string            `json:"cmd"`
	Headers map[string]string `json:"headers"`
}

type authAck struct {
	Type string `json:"type"`
}

type subscribeFrame struct {
	Cmd           string   `json:"cmd"`
	Channels      []string `json:"channels"`
	MarketTickers []string `json:"market_tickers"`
}

// Run connects, authenticates, subscribes, and streams normalized updates
// on the returned channel until ctx is cancelled.
func (c *Client) Run(ctx context.Context) (<-chan venuews.Update, error) {
	out := make(chan venuews.Update, 256)

	go func() {
		defer close(out)
		attempt := 0
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			c.setState(venuews.StateConnecting)
			conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
			if err != nil {
				attempt = c.backoffWait(ctx, attempt, "dial", err)
				if attempt < 0 {
					return
				}
				continue
			}

			c.setState(venuews.StateAuthenticating)
			if err := c.authenticate(conn); err != nil {
				log.Printf("kalshi ws: auth failed: %v", err)
				conn.Close()
				attempt = c.backoffWait(ctx, attempt, "auth", err)
				if attempt < 0 {
					return
				}
				continue
			}

			c.setState(venuews.StateConnected)
			if err := c.sendSubscriptions(conn); err != nil {
				log.Printf("kalshi ws: subscribe failed: %v", err)
				conn.Close()
				attempt = c.backoffWait(ctx, attempt, "subscribe", err)
				if attempt < 0 {
					return
				}
				continue
			}
			c.setState(venuews.StateSubscribed)
			attempt = 0

			if readErr := c.readLoop(ctx, conn, out); readErr == nil {
				return
			}
			c.setState(venuews.StateDisconnected)
			conn.Close()
		}
	}()

	return out, nil
}

// backoffWait sleeps the computed backoff for attempt and returns the next
// attempt counter, or -1 if retries are exhausted or ctx was cancelled.
func (c *Client) backoffWait(ctx context.Context, attempt int, stage string, cause error) int {
	attempt++
	if c.rc.MaxRetries > 0 && attempt > c.rc.MaxRetries {
		log.Printf("kalshi ws: giving up after %d attempts at %s: %v", attempt, stage, cause)
		return -1
	}
	delay := c.rc.Delay(attempt - 1)
	log.Printf("kalshi ws: %s failed, retrying in %v: %v", stage, delay, cause)
	select {
	case <-time.After(delay):
		return attempt
	case <-ctx.Done():
		return -1
	}
}

func (c *Client) authenticate(conn *websocket.Conn) error {
	headers, err := c.signer.Headers("GET", "/trade-api/ws/v2")
	if err != nil {
		return fmt.Errorf("sign auth frame: %w", err)
	}
	if err := conn.WriteJSON(authFrame{Cmd: "login", Headers: headers}); err != nil {
		return fmt.Errorf("write auth frame: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(authAckTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read auth ack: %w", err)
	}
	var ack authAck
	if err := json.Unmarshal(msg, &ack); err != nil {
		return fmt.Errorf("decode auth ack: %w", err)
	}
	if ack.Type != "login_ack" && ack.Type != "subscribed" {
		return fmt.Errorf("unexpected auth response type %q", ack.Type)
	}
	return nil
}

func (c *Client) sendSubscriptions(conn *websocket.Conn) error {
	c.mu.Lock()
	subs := make([]venuews.Subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		frame := subscribeFrame{Cmd: "subscribe", Channels: []string{s.Channel}, MarketTickers: s.Identifiers}
		if err := conn.WriteJSON(frame); err != nil {
			return fmt.Errorf("write subscribe: %w", err)
		}
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- venuews.Update) error {
	for {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		updates, gap, perr := c.parseMessage(msg)
		if perr != nil {
			log.Printf("kalshi ws: parse error: %v", perr)
			continue
		}
		if gap {
			// Sequence gap detected: the delta is still forwarded and no
			// fresh snapshot is requested; the key's book is only replaced
			// by the next orderbook_snapshot, sent after a (re)subscribe.
			log.Printf("kalshi ws: sequence gap detected, snapshot refetch required")
		}
		for _, u := range updates {
			select {
			case out <- u:
			default:
			}
		}
	}
}

type wireMessage struct {
	Type      string `json:"type"`
	MarketID  string `json:"market_ticker"`
	Seq       int64  `json:"seq"`
	YesBids   [][2]int `json:"yes,omitempty"`
	NoBids    [][2]int `json:"no,omitempty"`
	Side      string `json:"side"`
	Price     int    `json:"price"`
	Delta     int    `json:"delta"`
	Count     int    `json:"count"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
}

// parseMessage returns zero or more normalized updates plus whether a
// sequence gap was detected for this market/side.
func (c *Client) parseMessage(msg []byte) ([]venuews.Update, bool, error) {
	var w wireMessage
	if err := json.Unmarshal(msg, &w); err != nil {
		return nil, false, err
	}

	now := time.Now()
	switch w.Type {
	case "orderbook_snapshot":
		var out []venuews.Update
		for _, side := range []struct {
			name string
			rows [][2]int
		}{{"yes", w.YesBids}, {"no", w.NoBids}} {
			outcomeID := fmt.Sprintf("kalshi:%s:%s", w.MarketID, side.name)
			c.setSeq(w.MarketID, side.name, w.Seq)
			u := venuews.Update{Kind: venuews.EventOrderBookSnapshot, Venue: "kalshi", MarketID: w.MarketID, OutcomeID: outcomeID, Seq: w.Seq, Timestamp: now}
			for _, lvl := range side.rows {
				u.Bids = append(u.Bids, [2]float64{float64(lvl[0]) / 100.0, float64(lvl[1])})
			}
			out = append(out, u)
		}
		return out, false, nil

	case "orderbook_delta":
		outcomeID := fmt.Sprintf("kalshi:%s:%s", w.MarketID, w.Side)
		gap := c.checkAndAdvanceSeq(w.MarketID, w.Side, w.Seq)
		u := venuews.Update{Kind: venuews.EventOrderBookDelta, Venue: "kalshi", MarketID: w.MarketID, OutcomeID: outcomeID, Seq: w.Seq, Timestamp: now}
		u.Bids = append(u.Bids, [2]float64{float64(w.Price) / 100.0, float64(w.Delta)})
		return []venuews.Update{u}, gap, nil

	case "trade":
		outcomeID := fmt.Sprintf("kalshi:%s:%s", w.MarketID, w.Side)
		u := venuews.Update{
			Kind: venuews.EventTrade, Venue: "kalshi", MarketID: w.MarketID, OutcomeID: outcomeID,
			TradePrice: float64(w.Price) / 100.0, TradeSize: float64(w.Count), Timestamp: now,
		}
		return []venuews.Update{u}, false, nil

	case "fill", "order_update":
		u := venuews.Update{
			Kind: venuews.EventOrderUpdate, Venue: "kalshi", MarketID: w.MarketID,
			OrderExternalID: w.OrderID, OrderStatus: w.Status, Timestamp: now,
		}
		return []venuews.Update{u}, false, nil
	}
	return nil, false, nil
}

func (c *Client) setSeq(marketID, side string, seq int64) {
	c.mu.Lock()
	c.lastSeq[marketID+":"+side] = seq
	c.mu.Unlock()
}

// checkAndAdvanceSeq reports whether seq is not exactly last+1 (a gap),
// and always advances the stored sequence to seq.
func (c *Client) checkAndAdvanceSeq(marketID, side string, seq int64) bool {
	key := marketID + ":" + side
	c.mu.Lock()
	defer c.mu.Unlock()
	last, known := c.lastSeq[key]
	c.lastSeq[key] = seq
	if !known {
		return false
	}
	return seq != last+1
}
