// Package sink delivers outbound ORDER_PROCESSED events to listeners such as
// a backend sync job.
package sink

import (
	"context"

	"github.com/hazyhaar/autobuy/order"
)

// OrderProcessed is the type of the event emitted once per history write.
const OrderProcessed = "ORDER_PROCESSED"

// Event is the outbound message envelope.
type Event struct {
	Type   string             `json:"type"`
	Result order.HistoryEntry `json:"result"`
}

// NewOrderProcessed wraps a history entry.
func NewOrderProcessed(e order.HistoryEntry) Event {
	return Event{Type: OrderProcessed, Result: e}
}

// Sink is the output interface. Implementations deliver events to
// different backends (stdout, webhook, in-process callback).
type Sink interface {
	Send(ctx context.Context, ev Event) error
	Close() error
}
