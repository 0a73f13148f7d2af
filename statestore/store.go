// Package statestore is the cross-navigation state store: the single
// in-flight order slot, the bounded history log and the retry counters.
//
// Two backends implement Store. SQLite is the default and keeps everything in
// one local file next to the browser profile. Redis serves setups where
// several agent processes share one operator account. Both consume the
// in-flight slot with a single atomic compare-and-clear so two page loads
// can never resume the same order.
package statestore

import (
	"context"
	"errors"

	"github.com/hazyhaar/autobuy/order"
)

// DefaultHistoryLimit is the number of history entries retained.
const DefaultHistoryLimit = 100

// ErrRetryLimit is returned by ConsumeRetry when the counter has reached max.
var ErrRetryLimit = errors.New("statestore: retry limit reached")

// Store is the persistence contract used by the orchestrator.
type Store interface {
	// PutInFlight overwrites the single in-flight slot.
	PutInFlight(ctx context.Context, f order.InFlight) error
	// PeekInFlight returns the slot without consuming it, or nil.
	PeekInFlight(ctx context.Context) (*order.InFlight, error)
	// TakeInFlight atomically returns and clears the slot when its origin
	// equals origin. It returns nil and leaves the slot untouched otherwise.
	TakeInFlight(ctx context.Context, origin string) (*order.InFlight, error)
	// ClearInFlight empties the slot unconditionally.
	ClearInFlight(ctx context.Context) error

	// AppendHistory writes e and evicts the oldest entries beyond the
	// retention limit in the same atomic operation.
	AppendHistory(ctx context.Context, e order.HistoryEntry) error
	// History returns all retained entries, most recent first.
	History(ctx context.Context) ([]order.HistoryEntry, error)
	// LatestForOrder returns the most recent entry for orderID, or nil.
	LatestForOrder(ctx context.Context, orderID string) (*order.HistoryEntry, error)

	// RetryCount returns the number of retries consumed for orderID.
	RetryCount(ctx context.Context, orderID string) (int, error)
	// ConsumeRetry increments the counter for orderID unless it already
	// reached max, in which case it returns ErrRetryLimit.
	ConsumeRetry(ctx context.Context, orderID string, max int) (int, error)

	Close() error
}
