// Package driver implements the per-platform checkout protocol.
//
// A driver describes a checkout as an ordered list of Step descriptors. It
// never sequences them itself: Execute runs every driver, records the step
// log, applies post-step delays and aborts on the first required failure.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/autobuy/dom"
	"github.com/hazyhaar/autobuy/order"
	"github.com/hazyhaar/autobuy/platform"
)

var (
	// ErrOutOfStock is returned by the availability step.
	ErrOutOfStock = errors.New("product is out of stock")
	// ErrNoMatch is returned when a free-text matcher selects nothing.
	ErrNoMatch = errors.New("no matching option")
	// ErrAlreadySubmitted guards the place-order click.
	ErrAlreadySubmitted = errors.New("order already submitted")
	// ErrNoOrderNumber is returned when the confirmation page carries no
	// recognisable order number.
	ErrNoOrderNumber = errors.New("order number not found")
)

// StepError reports the required step that aborted a run.
type StepError struct {
	Platform platform.ID
	Step     string
	Cause    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: step %s failed: %v", e.Platform, e.Step, e.Cause)
}

func (e *StepError) Unwrap() error { return e.Cause }

// Options are the run-time settings a driver reads.
type Options struct {
	// AutoConfirm allows the single place-order click.
	AutoConfirm bool
	// StepDelay is the default pause after each step.
	StepDelay time.Duration
	// PageLoad bounds waits for elements that appear after a navigation.
	PageLoad time.Duration
	// Poll bounds waits for elements rendered client-side.
	Poll time.Duration
}

// Run is the mutable state of one driver execution. Steps read the page and
// the request and write their hand-off outputs here.
type Run struct {
	Page     dom.Page
	Request  order.Request
	Options  Options
	Platform platform.ID

	// ReadyToConfirm is set when the place-order control was reached but
	// AutoConfirm is off.
	ReadyToConfirm bool
	// Confirmed is set once the place-order control was clicked.
	Confirmed bool

	OrderNumber    string
	TrackingNumber string
	Receipt        string
	Instructions   []string
	Agents         []order.Agent

	submitted bool
}

// Action performs one step. details is recorded in the step log whether or
// not the step failed.
type Action func(ctx context.Context, r *Run) (details any, err error)

// Step describes one checkout step.
type Step struct {
	Name     string
	Required bool
	Action   Action
	// Delay overrides Options.StepDelay when non-zero. A negative Delay
	// skips the pause.
	Delay time.Duration
}

// Driver is the capability surface shared by every platform driver.
type Driver interface {
	Platform() platform.ID
	Tier() platform.Tier
	// Steps returns the ordered step list for req. Steps that have nothing
	// to do for req (no variant, no coupon) are left out.
	Steps(req order.Request, opts Options) []Step
}

// Execute runs the steps of d against r.Page. It returns the complete step
// log; the error is a *StepError when a required step failed, or the
// context error when ctx ended between steps.
func Execute(ctx context.Context, d Driver, r *Run, logger *slog.Logger) ([]order.Step, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("platform", d.Platform())
	r.Platform = d.Platform()

	log := []order.Step{}
	for _, s := range d.Steps(r.Request, r.Options) {
		if err := ctx.Err(); err != nil {
			return log, err
		}

		details, err := s.Action(ctx, r)
		entry := order.Step{Step: s.Name, Success: err == nil, Details: details}
		if err != nil && details == nil {
			entry.Details = dom.Truncate(dom.CleanText(err.Error()), 300)
		}
		log = append(log, entry)

		if err != nil {
			if s.Required {
				logger.Warn("driver: required step failed", "step", s.Name, "error", err)
				return log, &StepError{Platform: d.Platform(), Step: s.Name, Cause: err}
			}
			logger.Info("driver: optional step failed", "step", s.Name, "error", err)
		} else {
			logger.Debug("driver: step done", "step", s.Name)
		}

		delay := s.Delay
		if delay == 0 {
			delay = r.Options.StepDelay
		}
		if err := dom.Sleep(ctx, delay); err != nil {
			return log, err
		}
	}
	return log, nil
}
