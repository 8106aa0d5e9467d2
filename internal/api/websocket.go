package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"oddsarb.dev/core/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsTopics is the fixed set of bus events forwarded to a connected admin
// client: the ones an operator watching the engine live actually wants to
// see, not the full internal event set (order lifecycle events are
// recoverable from GET /orders on demand).
var wsTopics = []events.Event{
	events.EventPriceUpdate,
	events.EventArbitrageOpportunity,
	events.EventStrategySignal,
	events.EventExecutionCompleted,
	events.EventRiskAlert,
	events.EventKillSwitchTripped,
}

type wsMessage struct {
	Topic   events.Event `json:"topic"`
	Payload any          `json:"payload"`
}

// websocket streams a fixed multiplex of engine events to one connected
// admin client for as long as the connection stays open.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	out := make(chan wsMessage, 256)
	var unsubs []func()
	for _, topic := range wsTopics {
		topic := topic
		stream, unsub := s.Bus.Subscribe(topic, 64)
		unsubs = append(unsubs, unsub)
		go func() {
			for payload := range stream {
				select {
				case out <- wsMessage{Topic: topic, Payload: payload}:
				default:
				}
			}
		}()
	}
	defer func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}()

	for msg := range out {
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}
