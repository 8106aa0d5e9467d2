// Package venuews defines the shared WebSocket state machine vocabulary
// (C3) used by both venue-specific clients: connection states, normalized
// event types, and the exponential-backoff-with-jitter reconnect helper.
// Grounded on pkg/market/binance/websocket.go's StreamClient/ReconnectConfig
// shape, generalized to the Disconnected/Connecting/Authenticating/
// Connected/Subscribed state machine spec.md §4.3 requires.
package venuews

import (
	"math/rand"
	"time"
)

// State is one node of the C3 connection state machine.
type State string

const (
	StateDisconnected  State = "Disconnected"
	StateConnecting    State = "Connecting"
	StateAuthenticating State = "Authenticating"
	StateConnected     State = "Connected"
	StateSubscribed    State = "Subscribed"
)

// EventKind normalizes venue-specific push messages.
type EventKind string

const (
	EventOrderBookSnapshot EventKind = "OrderBookSnapshot"
	EventOrderBookDelta    EventKind = "OrderBookDelta"
	EventTrade             EventKind = "Trade"
	EventOrderUpdate       EventKind = "OrderUpdate"
)

// Subscription keys one (channel, identifiers) tuple in the remembered
// subscription set, re-sent on every reconnect.
type Subscription struct {
	Channel     string
	Identifiers []string
}

// Update is the normalized payload pushed to Market Data Service (C4)
// consumers, regardless of venue.
type Update struct {
	Kind      EventKind
	Venue     string
	MarketID  string
	OutcomeID string
	Bids      [][2]float64 // [price, size]
	Asks      [][2]float64
	Seq       int64
	TradePrice float64
	TradeSize  float64
	OrderExternalID string
	OrderStatus     string
	Timestamp time.Time
}

// ReconnectConfig controls exponential backoff with jitter between
// reconnect attempts.
type ReconnectConfig struct {
	MaxRetries   int // 0 = unlimited (bounded internally)
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFrac   float64 // fraction of the computed delay randomized, e.g. 0.2
}

// DefaultReconnectConfig mirrors the teacher's defaults.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:   0,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFrac:   0.2,
	}
}

// Delay returns the backoff duration for the given zero-based attempt,
// including jitter.
func (c ReconnectConfig) Delay(attempt int) time.Duration {
	delay := float64(c.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= c.Multiplier
	}
	if time.Duration(delay) > c.MaxDelay {
		delay = float64(c.MaxDelay)
	}
	if c.JitterFrac > 0 {
		jitter := delay * c.JitterFrac
		delay += (rand.Float64()*2 - 1) * jitter
		if delay < 0 {
			delay = 0
		}
	}
	return time.Duration(delay)
}
