// Package polymarket implements the Polymarket-like venue WebSocket client
// (C3). Grounded on pkg/market/binance/websocket.go's
// dial/read-loop/reconnect shape; there is no Authenticating state for this
// venue (public market channel), matching spec.md §4.3.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"oddsarb.dev/core/internal/venuews"
)

// Client streams normalized book/price_change/trade events for a tracked
// set of (channel, assetIDs) subscriptions.
type Client struct {
	url     string
	dialer  *websocket.Dialer
	rc      venuews.ReconnectConfig

	mu    sync.Mutex
	state venuews.State
	subs  map[string]venuews.Subscription // channel -> subscription (identifiers accumulate)
}

// New builds a client for the given WebSocket URL (e.g.
// wss://ws-subscriptions-clob.polymarket.com/ws/market).
func New(wsURL string) *Client {
	return &Client{
		url:    wsURL,
		dialer: websocket.DefaultDialer,
		rc:     venuews.DefaultReconnectConfig(),
		state:  venuews.StateDisconnected,
		subs:   make(map[string]venuews.Subscription),
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

// Subscribe adds assetIDs to the remembered subscription set for channel
// ("book" or "last_trade_price"); re-sent on every (re)connect.
func (c *Client) Subscribe(channel string, assetIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub := c.subs[channel]
	sub.Channel = channel
	sub.Identifiers = append(sub.Identifiers, assetIDs...)
	c.subs[channel] = sub
}

type subscribeMsg struct {
	Type     string   `json:"type"`
	AssetIDs []string `json:"assets_ids"`
	Channel  string   `json:"channel"`
}

// Run connects, subscribes, and streams normalized updates on the returned
// channel until ctx is cancelled. Transport drops trigger reconnect with
// exponential backoff and jitter; the subscription set is re-sent.
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
				attempt++
				if c.rc.MaxRetries > 0 && attempt > c.rc.MaxRetries {
					log.Printf("polymarket ws: giving up after %d attempts: %v", attempt, err)
					return
				}
				delay := c.rc.Delay(attempt - 1)
				log.Printf("polymarket ws: dial failed, retrying in %v: %v", delay, err)
				select {
				case <-time.After(delay):
					continue
				case <-ctx.Done():
					return
				}
			}

			c.setState(venuews.StateConnected)
			if err := c.sendSubscriptions(conn); err != nil {
				log.Printf("polymarket ws: subscribe failed: %v", err)
				conn.Close()
				attempt++
				continue
			}
			c.setState(venuews.StateSubscribed)
			attempt = 0

			if readErr := c.readLoop(ctx, conn, out); readErr == nil {
				return // ctx cancelled, clean shutdown
			}
			c.setState(venuews.StateDisconnected)
			conn.Close()
		}
	}()

	return out, nil
}

func (c *Client) sendSubscriptions(conn *websocket.Conn) error {
	c.mu.Lock()
	subs := make([]venuews.Subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		msg := subscribeMsg{Type: "Market", AssetIDs: s.Identifiers, Channel: s.Channel}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("write subscribe: %w", err)
		}
	}
	return nil
}

// readLoop returns nil on clean ctx-cancelled shutdown, non-nil on any
// transport error that should trigger reconnect.
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

		update, ok, perr := parseMessage(msg)
		if perr != nil {
			log.Printf("polymarket ws: parse error: %v", perr)
			continue
		}
		if !ok {
			continue
		}
		select {
		case out <- update:
		default: // slow consumer: drop rather than block the read loop
		}
	}
}

type wireEnvelope struct {
	EventType string `json:"event_type"`
	Type      string `json:"type"`
	Market    string `json:"market"`
	AssetID   string `json:"asset_id"`
	Bids      []struct {
		Price string `json:"price"`
		Size  string `json:"size"`
	} `json:"bids"`
	Asks []struct {
		Price string `json:"price"`
		Size  string `json:"size"`
	} `json:"asks"`
	Price string `json:"price"`
	Size  string `json:"size"`
}

func parseMessage(msg []byte) (venuews.Update, bool, error) {
	var env wireEnvelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return venuews.Update{}, false, err
	}
	kind := env.Type
	if kind == "" {
		kind = env.EventType
	}

	u := venuews.Update{Venue: "polymarket", MarketID: env.Market, OutcomeID: env.AssetID, Timestamp: time.Now()}
	switch kind {
	case "book":
		u.Kind = venuews.EventOrderBookSnapshot
		for _, b := range env.Bids {
			u.Bids = append(u.Bids, [2]float64{parseF(b.Price), parseF(b.Size)})
		}
		for _, a := range env.Asks {
			u.Asks = append(u.Asks, [2]float64{parseF(a.Price), parseF(a.Size)})
		}
	case "price_change":
		u.Kind = venuews.EventOrderBookDelta
		for _, b := range env.Bids {
			u.Bids = append(u.Bids, [2]float64{parseF(b.Price), parseF(b.Size)})
		}
		for _, a := range env.Asks {
			u.Asks = append(u.Asks, [2]float64{parseF(a.Price), parseF(a.Size)})
		}
	case "trade":
		u.Kind = venuews.EventTrade
		u.TradePrice = parseF(env.Price)
		u.TradeSize = parseF(env.Size)
	default:
		return venuews.Update{}, false, nil
	}
	return u, true, nil
}

func parseF(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
