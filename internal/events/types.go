package events

// Event enumerates high-level topics inside the arbitrage engine.
type Event string

const (
	// Market data plane (C3/C4/C5).
	EventPriceUpdate     Event = "price.update"
	EventOrderBookUpdate Event = "orderbook.update"
	EventFeedDegraded    Event = "feed.degraded"
	EventFeedRestored    Event = "feed.restored"

	// Matching and detection (C6/C7/C8).
	EventMarketMatched        Event = "market.matched"
	EventArbitrageOpportunity Event = "arbitrage.opportunity"
	EventStrategySignal       Event = "strategy.signal"

	// Execution (C9/C10).
	EventExecutionStarted   Event = "execution.started"
	EventExecutionCompleted Event = "execution.completed"
	EventExecutionUnwound   Event = "execution.unwound"

	// Orders (C11).
	EventOrderSubmitted       Event = "order.submitted"
	EventOrderAccepted        Event = "order.accepted"
	EventOrderRejected        Event = "order.rejected"
	EventOrderFilled          Event = "order.filled"
	EventOrderPartiallyFilled Event = "order.partially_filled"
	EventOrderCancelled       Event = "order.cancelled"
	EventPositionChange       Event = "position.change"

	// Risk (C12).
	EventRiskAlert          Event = "risk.alert"
	EventKillSwitchTripped  Event = "risk.kill_switch.tripped"
	EventKillSwitchReset    Event = "risk.kill_switch.reset"
)
