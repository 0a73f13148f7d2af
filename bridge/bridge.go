// Package bridge is the message-passing surface between the host runtime
// and the checkout engine.
//
// Every message type maps to one Handler, bytes in and bytes out, so the
// same handlers serve in-process calls, the HTTP API and MCP tools:
//
//	r := bridge.New()
//	checkout.NewAdapter(engine, page).RegisterBridge(r)
//	out, err := r.Call(ctx, bridge.ProcessOrder, payload)
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Inbound message types.
const (
	ProcessOrder     = "PROCESS_ORDER"
	CheckOrderStatus = "CHECK_ORDER_STATUS"
	GetOrderHistory  = "GET_ORDER_HISTORY"
	RetryOrder       = "RETRY_ORDER"
	GetInFlight      = "GET_IN_FLIGHT"
	DetectPlatform   = "DETECT_PLATFORM"
)

// Handler is a transport-agnostic message handler: bytes in, bytes out.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// Envelope carries a typed message over a transport that has a single
// entry point.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Router dispatches messages to their handler. Thread-safe.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets a custom logger for the router.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New creates a Router with no handlers.
func New(opts ...Option) *Router {
	r := &Router{
		handlers: make(map[string]Handler),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Handle registers h for msgType, replacing any previous handler.
func (r *Router) Handle(msgType string, h Handler) {
	r.mu.Lock()
	r.handlers[msgType] = h
	r.mu.Unlock()
}

// Types lists the registered message types, sorted.
func (r *Router) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Call dispatches payload to the handler registered for msgType.
func (r *Router) Call(ctx context.Context, msgType string, payload []byte) ([]byte, error) {
	r.mu.RLock()
	h, ok := r.handlers[msgType]
	r.mu.RUnlock()
	if !ok {
		return nil, &ErrUnknownMessage{Type: msgType}
	}
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	start := time.Now()
	out, err := h(ctx, payload)
	if err != nil {
		r.logger.Warn("bridge: handler failed", "type", msgType, "error", err, "duration", time.Since(start))
		return nil, err
	}
	r.logger.Debug("bridge: handled", "type", msgType, "duration", time.Since(start))
	return out, nil
}

// Dispatch decodes an Envelope and calls its handler.
func (r *Router) Dispatch(ctx context.Context, raw []byte) ([]byte, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("bridge: decode envelope: %w", err)
	}
	return r.Call(ctx, env.Type, env.Payload)
}

// ErrUnknownMessage is returned by Call for a type with no handler.
type ErrUnknownMessage struct {
	Type string
}

func (e *ErrUnknownMessage) Error() string {
	return fmt.Sprintf("bridge: unknown message type: %q", e.Type)
}
