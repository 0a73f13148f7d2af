// Package checkout is the order orchestrator: it decides whether an order
// runs on the current page or needs a navigation first, resumes in-flight
// orders after each page load, dispatches to the driver tier the platform
// supports and records every orchestration-terminal outcome.
//
// The engine keeps no order state in memory between calls. Everything that
// must survive a navigation or a restart lives in the statestore, so a fresh
// Engine on a freshly loaded page behaves exactly like the one that started
// the order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/autobuy/dom"
	"github.com/hazyhaar/autobuy/driver"
	"github.com/hazyhaar/autobuy/internal/idgen"
	"github.com/hazyhaar/autobuy/internal/sink"
	"github.com/hazyhaar/autobuy/order"
	"github.com/hazyhaar/autobuy/platform"
	"github.com/hazyhaar/autobuy/statestore"
)

// MaxRetries bounds the re-submissions of one order id.
const MaxRetries = 3

var (
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrNotAutomatable      = errors.New("platform not supported for automation")
	ErrOrderNotFound       = errors.New("order not found in history")
	ErrRetriesExhausted    = errors.New("maximum retry attempts reached")
	ErrInFlightExpired     = errors.New("in-flight order expired before resume")
	ErrAlreadyPlaced       = errors.New("order already placed with the supplier")
)

// Config holds the orchestration settings.
type Config struct {
	// AutoConfirm lets full-auto drivers click the final place-order
	// control. Off, a full-auto run ends in pending_confirmation.
	AutoConfirm bool
	// InFlightMaxAge discards an in-flight order older than this on the
	// next page load. Zero keeps it until a matching page loads.
	InFlightMaxAge time.Duration

	StepDelay time.Duration
	PageLoad  time.Duration
	Poll      time.Duration
}

// PageOpener opens a dedicated page for read-only work such as status
// checks. close releases it.
type PageOpener func(ctx context.Context) (page dom.Page, close func(), err error)

// Engine runs orders one at a time.
type Engine struct {
	mu      sync.Mutex
	store   statestore.Store
	drivers *driver.Registry
	cfg     Config
	events  sink.Sink
	opener  PageOpener
	newID   idgen.Generator
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithSink sets the destination of ORDER_PROCESSED events.
func WithSink(s sink.Sink) Option { return func(e *Engine) { e.events = s } }

// WithPageOpener enables supplier status checks.
func WithPageOpener(o PageOpener) Option { return func(e *Engine) { e.opener = o } }

// WithIDGenerator replaces the history id generator.
func WithIDGenerator(g idgen.Generator) Option { return func(e *Engine) { e.newID = g } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// New creates an Engine over store and drivers.
func New(store statestore.Store, drivers *driver.Registry, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		drivers: drivers,
		cfg:     cfg,
		newID:   idgen.Prefixed("h_", idgen.UUIDv7()),
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Config returns the engine settings.
func (e *Engine) Config() Config { return e.cfg }

// ProcessOption tunes a single Process call.
type ProcessOption func(*processOptions)

type processOptions struct {
	degraded bool
}

// Degraded asks for the semi-auto path even when full-auto is available.
func Degraded() ProcessOption { return func(o *processOptions) { o.degraded = true } }

// Process runs req from the Requested state on page. The returned error is
// reserved for state store failures; every other failure is reported in the
// Outcome.
func (e *Engine) Process(ctx context.Context, page dom.Page, req order.Request, opts ...ProcessOption) (*order.Outcome, error) {
	var po processOptions
	for _, o := range opts {
		o(&po)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evaluate(ctx, page, req, po.degraded)
}

// ResumeCheck reports the in-flight order a page at currentOrigin should
// resume, or nil when there is none or it targets another origin.
func ResumeCheck(currentOrigin string, f *order.InFlight) *order.InFlight {
	if f == nil || currentOrigin == "" {
		return nil
	}
	want := f.Origin
	if want == "" {
		want = platform.Origin(f.Order.SupplierURL)
	}
	if !strings.EqualFold(want, currentOrigin) {
		return nil
	}
	return f
}

// Resume is called on every page load. When the in-flight order targets the
// page's origin it consumes the slot and runs the order; otherwise it leaves
// the slot untouched and returns nil.
func (e *Engine) Resume(ctx context.Context, page dom.Page) (*order.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := page.URL(ctx)
	if err != nil {
		return nil, fmt.Errorf("checkout: read page url: %w", err)
	}
	origin := platform.Origin(current)

	f, err := e.store.PeekInFlight(ctx)
	if err != nil {
		return nil, fmt.Errorf("checkout: peek in-flight: %w", err)
	}
	if f == nil {
		return nil, nil
	}

	if e.cfg.InFlightMaxAge > 0 && e.now().Sub(f.StartedAt) > e.cfg.InFlightMaxAge {
		return e.expire(ctx, f)
	}

	if ResumeCheck(origin, f) == nil {
		e.logger.Debug("checkout: in-flight order waits for another origin",
			"order_id", f.Order.ID, "want", f.Origin, "current", origin)
		return nil, nil
	}

	taken, err := e.store.TakeInFlight(ctx, origin)
	if err != nil {
		return nil, fmt.Errorf("checkout: take in-flight: %w", err)
	}
	if taken == nil {
		// Another page load consumed it first.
		return nil, nil
	}

	e.logger.Info("checkout: resuming in-flight order",
		"order_id", taken.Order.ID, "origin", origin, "age", e.now().Sub(taken.StartedAt))
	return e.evaluate(ctx, page, taken.Order, taken.Degraded)
}

func (e *Engine) expire(ctx context.Context, f *order.InFlight) (*order.Outcome, error) {
	taken, err := e.store.TakeInFlight(ctx, f.Origin)
	if err != nil {
		return nil, fmt.Errorf("checkout: take in-flight: %w", err)
	}
	if taken == nil {
		return nil, nil
	}
	id, _ := platform.Detect(taken.Order.SupplierURL)
	e.logger.Warn("checkout: in-flight order expired",
		"order_id", taken.Order.ID, "started_at", taken.StartedAt, "max_age", e.cfg.InFlightMaxAge)
	out := order.Failed(id, nil, fmt.Errorf("%s: %w", id, ErrInFlightExpired))
	return out, e.record(ctx, taken.Order, out)
}

// Retry re-submits the order recorded under orderID through Process.
// Orders recorded as completed are never re-submitted.
func (e *Engine) Retry(ctx context.Context, page dom.Page, orderID string) (*order.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, err := e.store.LatestForOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("checkout: history lookup: %w", err)
	}
	if entry == nil {
		return order.Failed("", nil, ErrOrderNotFound), nil
	}
	// Place-order was already clicked for a completed entry.
	if entry.Status == order.StatusCompleted {
		e.logger.Warn("checkout: retry refused, order already placed",
			"order_id", orderID, "supplier_order", entry.SupplierOrderNumber)
		return order.Failed(entry.Platform, nil, ErrAlreadyPlaced), nil
	}

	n, err := e.store.ConsumeRetry(ctx, orderID, MaxRetries)
	if errors.Is(err, statestore.ErrRetryLimit) {
		e.logger.Info("checkout: retry refused", "order_id", orderID, "max", MaxRetries)
		return order.Failed(entry.Platform, nil, ErrRetriesExhausted), nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkout: consume retry: %w", err)
	}

	e.logger.Info("checkout: retrying order", "order_id", orderID, "attempt", n, "max", MaxRetries)
	return e.evaluate(ctx, page, entry.Order, false)
}

// RetriesUsed returns the retry counter of orderID.
func (e *Engine) RetriesUsed(ctx context.Context, orderID string) (int, error) {
	return e.store.RetryCount(ctx, orderID)
}

// History returns the retained history, most recent first.
func (e *Engine) History(ctx context.Context) ([]order.HistoryEntry, error) {
	return e.store.History(ctx)
}

// InFlight returns the pending in-flight order without consuming it.
func (e *Engine) InFlight(ctx context.Context) (*order.InFlight, error) {
	return e.store.PeekInFlight(ctx)
}

// CheckStatus reads the supplier-side status of the latest placed order
// for orderID on a dedicated page. It returns nil when the order is unknown,
// was never placed or its platform exposes no status page.
func (e *Engine) CheckStatus(ctx context.Context, orderID string) (*order.SupplierStatus, error) {
	entry, err := e.store.LatestForOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("checkout: history lookup: %w", err)
	}
	if entry == nil || entry.SupplierOrderNumber == "" {
		return nil, nil
	}
	checker, ok := e.drivers.StatusChecker(entry.Platform)
	if !ok || e.opener == nil {
		return nil, nil
	}

	page, closePage, err := e.opener(ctx)
	if err != nil {
		return nil, fmt.Errorf("checkout: open status page: %w", err)
	}
	defer closePage()

	st, err := checker.CheckStatus(ctx, page, *entry)
	if errors.Is(err, driver.ErrNoStatusPage) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkout: %s status: %w", entry.Platform, err)
	}
	return st, nil
}

// evaluate is the Requested → Evaluating → {Navigating, Dispatching} part of
// the state machine. The caller holds e.mu.
func (e *Engine) evaluate(ctx context.Context, page dom.Page, req order.Request, degraded bool) (*order.Outcome, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		e.logger.Warn("checkout: rejected request", "order_id", req.ID, "error", err)
		return order.Failed("", nil, err), nil
	}
	id, ok := platform.Detect(req.SupplierURL)
	if !ok {
		e.logger.Warn("checkout: rejected request", "order_id", req.ID, "url", req.SupplierURL, "error", ErrUnsupportedPlatform)
		return order.Failed("", nil, ErrUnsupportedPlatform), nil
	}

	current, err := page.URL(ctx)
	if err != nil {
		return order.Failed(id, nil, fmt.Errorf("%s: read current page: %w", id, err)), nil
	}
	target := platform.Origin(req.SupplierURL)

	if !strings.EqualFold(platform.Origin(current), target) {
		return e.navigate(ctx, page, req, id, target, degraded)
	}
	return e.dispatch(ctx, page, req, id, degraded)
}

// navigate persists the order then leaves the page. The write completes
// before the navigation starts so the next page load always finds it.
func (e *Engine) navigate(ctx context.Context, page dom.Page, req order.Request, id platform.ID, target string, degraded bool) (*order.Outcome, error) {
	f := order.InFlight{Order: req, StartedAt: e.now().UTC(), Origin: target, Degraded: degraded}
	if err := e.store.PutInFlight(ctx, f); err != nil {
		return nil, fmt.Errorf("checkout: persist in-flight: %w", err)
	}
	e.logger.Info("checkout: navigating to supplier", "order_id", req.ID, "platform", id, "url", req.SupplierURL)

	if err := page.Navigate(ctx, req.SupplierURL); err != nil {
		if _, cerr := e.store.TakeInFlight(ctx, target); cerr != nil {
			return nil, fmt.Errorf("checkout: clear in-flight after failed navigation: %w", cerr)
		}
		return order.Failed(id, nil, fmt.Errorf("%s: navigate to supplier: %w", id, err)), nil
	}

	return &order.Outcome{
		Success:  true,
		Status:   order.StatusNavigating,
		Platform: id,
		Steps:    []order.Step{},
		Message:  "navigating to " + target,
	}, nil
}

// dispatch runs the driver for the platform's tier and records the result.
func (e *Engine) dispatch(ctx context.Context, page dom.Page, req order.Request, id platform.ID, degraded bool) (*order.Outcome, error) {
	tier := platform.CapabilitiesOf(id).Tier(degraded)
	runLog := e.logger.With("order_id", req.ID, "tier", tier)
	log := runLog.With("platform", id)

	if tier == platform.TierNone {
		log.Warn("checkout: platform not automatable")
		out := order.Failed(id, nil, fmt.Errorf("%s: %w", id, ErrNotAutomatable))
		return out, e.record(ctx, req, out)
	}
	d, err := e.drivers.Lookup(id, tier)
	if err != nil {
		out := order.Failed(id, nil, fmt.Errorf("%s: %w", id, err))
		return out, e.record(ctx, req, out)
	}

	log.Info("checkout: dispatching")
	run := &driver.Run{
		Page:    page,
		Request: req,
		Options: driver.Options{
			AutoConfirm: e.cfg.AutoConfirm,
			StepDelay:   e.cfg.StepDelay,
			PageLoad:    e.cfg.PageLoad,
			Poll:        e.cfg.Poll,
		},
	}
	steps, err := driver.Execute(ctx, d, run, runLog)

	out := outcomeOf(id, tier, run, steps, err)
	log.Info("checkout: run finished", "status", out.Status, "success", out.Success, "steps", len(out.Steps))
	return out, e.record(ctx, req, out)
}

func outcomeOf(id platform.ID, tier platform.Tier, run *driver.Run, steps []order.Step, err error) *order.Outcome {
	if err != nil {
		var se *driver.StepError
		if !errors.As(err, &se) {
			last := "none"
			if len(steps) > 0 {
				last = steps[len(steps)-1].Step
			}
			err = fmt.Errorf("%s: interrupted after step %s: %w", id, last, err)
		}
		return order.Failed(id, steps, err)
	}

	out := &order.Outcome{Success: true, Platform: id, Steps: steps}
	switch tier {
	case platform.TierFull:
		switch {
		case run.Confirmed:
			out.Status = order.StatusCompleted
			out.SupplierOrderNumber = run.OrderNumber
			out.TrackingNumber = run.TrackingNumber
			out.Receipt = run.Receipt
			out.Message = "order placed"
			if run.OrderNumber == "" {
				out.Message = "order placed, supplier order number not found"
			}
		case run.ReadyToConfirm:
			out.Status = order.StatusPendingConfirmation
			out.Message = "checkout ready: review and place the order manually"
		default:
			return order.Failed(id, steps, fmt.Errorf("%s: checkout ended before confirmation", id))
		}
	case platform.TierSemi:
		out.Status = order.StatusCartFilled
		out.Instructions = run.Instructions
		out.Message = "item added to cart: finish checkout manually"
	case platform.TierAgent:
		out.Status = order.StatusAgentRequired
		out.Agents = run.Agents
		out.Instructions = run.Instructions
		out.Message = "order through a purchasing agent"
	}
	return out
}

// record writes the history entry for an orchestration-terminal outcome
// and emits ORDER_PROCESSED. Event delivery failures are logged only.
func (e *Engine) record(ctx context.Context, req order.Request, out *order.Outcome) error {
	entry := order.HistoryEntry{
		ID:                  e.newID(),
		OrderID:             req.ID,
		OrderNumber:         req.OrderNumber,
		SupplierOrderNumber: out.SupplierOrderNumber,
		TrackingNumber:      out.TrackingNumber,
		Platform:            out.Platform,
		Status:              out.Status,
		Error:               out.Error,
		Steps:               out.Steps,
		Receipt:             out.Receipt,
		ProcessedAt:         e.now().UTC(),
		Order:               req,
	}
	if err := e.store.AppendHistory(ctx, entry); err != nil {
		return fmt.Errorf("checkout: append history: %w", err)
	}
	if e.events != nil {
		if err := e.events.Send(ctx, sink.NewOrderProcessed(entry)); err != nil {
			e.logger.Warn("checkout: emit event", "order_id", req.ID, "error", err)
		}
	}
	return nil
}
