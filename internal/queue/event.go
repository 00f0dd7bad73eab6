// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

// Queue names. Each event kind goes to its own durable queue.
const (
	SettlementQueue  = "settlement.changed"
	ConsumptionQueue = "consumption.changed"
)

// SettlementEvent is published after a settlement command has been saved.
// It carries the amounts a bookkeeping consumer needs without querying the
// primary stores.
type SettlementEvent struct {
	EventID        uint64 `json:"event_id"`
	GuestID        uint64 `json:"guest_id"`
	GuestName      string `json:"guest_name"`
	Action         string `json:"action"`
	Status         string `json:"status"`
	Version        int64  `json:"version"`
	VariableSymbol string `json:"variable_symbol,omitempty"`
	FinalTotal     string `json:"final_total"`
	OccurredAt     string `json:"occurred_at"`
}

// ConsumptionEvent is published when a consumption record is created or
// deleted through the API.
type ConsumptionEvent struct {
	Op         string `json:"op"` // created | deleted
	RecordID   uint64 `json:"record_id"`
	EventID    uint64 `json:"event_id"`
	GuestID    uint64 `json:"guest_id"`
	ProductID  uint64 `json:"product_id"`
	Quantity   int    `json:"quantity"`
	OccurredAt string `json:"occurred_at"`
}
