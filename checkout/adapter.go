package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/autobuy/bridge"
	"github.com/hazyhaar/autobuy/dom"
	"github.com/hazyhaar/autobuy/order"
	"github.com/hazyhaar/autobuy/platform"
)

// PageSource returns the working page orders run on.
type PageSource func(ctx context.Context) (dom.Page, error)

// Adapter exposes an Engine on a bridge.Router. Order operations never
// return an error to the caller: every failure becomes a failed Outcome.
type Adapter struct {
	engine         *Engine
	page           PageSource
	retryOnFailure bool
	logger         *slog.Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithRetryOnFailure makes PROCESS_ORDER retry a failed order until it
// succeeds or its retry budget is spent.
func WithRetryOnFailure(on bool) AdapterOption {
	return func(a *Adapter) { a.retryOnFailure = on }
}

// WithAdapterLogger sets a custom logger.
func WithAdapterLogger(l *slog.Logger) AdapterOption {
	return func(a *Adapter) { a.logger = l }
}

// NewAdapter creates an Adapter running orders on the page returned by page.
func NewAdapter(e *Engine, page PageSource, opts ...AdapterOption) *Adapter {
	a := &Adapter{engine: e, page: page, logger: slog.Default()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// RegisterBridge registers the checkout message handlers on r.
//
// Registered messages:
//
//	PROCESS_ORDER       {order, degraded?} → Outcome
//	CHECK_ORDER_STATUS  {orderId}          → SupplierStatus | null
//	GET_ORDER_HISTORY   {}                 → HistoryEntry[]
//	RETRY_ORDER         {orderId}          → Outcome
//	GET_IN_FLIGHT       {}                 → InFlight | null
//	DETECT_PLATFORM     {url}              → Detection
func (a *Adapter) RegisterBridge(r *bridge.Router) {
	r.Handle(bridge.ProcessOrder, a.handleProcessOrder)
	r.Handle(bridge.CheckOrderStatus, a.handleCheckStatus)
	r.Handle(bridge.GetOrderHistory, a.handleHistory)
	r.Handle(bridge.RetryOrder, a.handleRetry)
	r.Handle(bridge.GetInFlight, a.handleInFlight)
	r.Handle(bridge.DetectPlatform, handleDetect)
}

// ProcessOrderRequest is the PROCESS_ORDER payload.
type ProcessOrderRequest struct {
	Order    order.Request `json:"order"`
	Degraded bool          `json:"degraded,omitempty"`
}

// OrderIDRequest is the payload of messages addressing one order.
type OrderIDRequest struct {
	OrderID string `json:"orderId"`
}

// Detection is the DETECT_PLATFORM response.
type Detection struct {
	URL        string              `json:"url"`
	Platform   platform.ID         `json:"platform,omitempty"`
	Supported  bool                `json:"supported"`
	Capability platform.Capability `json:"capability"`
	Tier       platform.Tier       `json:"tier"`
}

func (a *Adapter) handleProcessOrder(ctx context.Context, payload []byte) ([]byte, error) {
	var req ProcessOrderRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return json.Marshal(order.Failed("", nil, fmt.Errorf("%w: %v", order.ErrInvalidRequest, err)))
	}
	page, err := a.page(ctx)
	if err != nil {
		return json.Marshal(order.Failed("", nil, fmt.Errorf("no working page: %w", err)))
	}

	var opts []ProcessOption
	if req.Degraded {
		opts = append(opts, Degraded())
	}
	out, err := a.engine.Process(ctx, page, req.Order, opts...)
	out = a.settle(req.Order.ID, out, err)

	if a.retryOnFailure && out.Status == order.StatusFailed && out.Platform != "" {
		out = a.retryUntilSettled(ctx, page, req.Order.ID, out)
	}
	return json.Marshal(out)
}

// retryUntilSettled re-submits a failed order until it leaves the failed
// state or the retry budget is spent. It returns the last real attempt.
func (a *Adapter) retryUntilSettled(ctx context.Context, page dom.Page, orderID string, last *order.Outcome) *order.Outcome {
	for range MaxRetries {
		next, err := a.engine.Retry(ctx, page, orderID)
		next = a.settle(orderID, next, err)
		if next.Error == ErrRetriesExhausted.Error() || next.Error == ErrOrderNotFound.Error() {
			return last
		}
		last = next
		if next.Status != order.StatusFailed {
			return last
		}
	}
	return last
}

func (a *Adapter) handleRetry(ctx context.Context, payload []byte) ([]byte, error) {
	var req OrderIDRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return json.Marshal(order.Failed("", nil, fmt.Errorf("decode: %w", err)))
	}
	page, err := a.page(ctx)
	if err != nil {
		return json.Marshal(order.Failed("", nil, fmt.Errorf("no working page: %w", err)))
	}
	out, err := a.engine.Retry(ctx, page, req.OrderID)
	return json.Marshal(a.settle(req.OrderID, out, err))
}

func (a *Adapter) handleCheckStatus(ctx context.Context, payload []byte) ([]byte, error) {
	var req OrderIDRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	st, err := a.engine.CheckStatus(ctx, req.OrderID)
	if err != nil {
		a.logger.Warn("checkout: status check failed", "order_id", req.OrderID, "error", err)
		return []byte("null"), nil
	}
	return json.Marshal(st)
}

func (a *Adapter) handleHistory(ctx context.Context, _ []byte) ([]byte, error) {
	h, err := a.engine.History(ctx)
	if err != nil {
		return nil, err
	}
	if h == nil {
		h = []order.HistoryEntry{}
	}
	return json.Marshal(h)
}

func (a *Adapter) handleInFlight(ctx context.Context, _ []byte) ([]byte, error) {
	f, err := a.engine.InFlight(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(f)
}

func handleDetect(_ context.Context, payload []byte) ([]byte, error) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return json.Marshal(Detect(req.URL))
}

// Detect describes how url would be dispatched.
func Detect(url string) Detection {
	d := Detection{URL: url, Tier: platform.TierNone}
	id, ok := platform.Detect(url)
	if !ok {
		return d
	}
	c := platform.CapabilitiesOf(id)
	d.Platform = id
	d.Capability = c
	d.Tier = c.Tier(false)
	d.Supported = c.Automatable()
	return d
}

// settle turns an engine error into a failed Outcome.
func (a *Adapter) settle(orderID string, out *order.Outcome, err error) *order.Outcome {
	if err == nil {
		return out
	}
	a.logger.Error("checkout: engine failure", "order_id", orderID, "error", err)
	var p platform.ID
	if out != nil {
		p = out.Platform
		return order.Failed(p, out.Steps, err)
	}
	return order.Failed(p, nil, err)
}
