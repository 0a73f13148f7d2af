// Package order holds the data model shared by the orchestrator, the drivers
// and the state store: order requests, outcomes, the step log and history
// entries.
package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/autobuy/platform"
)

// Status is the orchestration status reported in an Outcome.
type Status string

const (
	StatusNavigating          Status = "navigating"
	StatusPendingConfirmation Status = "pending_confirmation"
	StatusCartFilled          Status = "cart_filled"
	StatusAgentRequired       Status = "agent_required"
	StatusCompleted           Status = "completed"
	StatusFailed              Status = "failed"
)

// Terminal reports whether s ends orchestration for the current attempt.
// Every status except navigating is terminal in that sense: hand-offs end
// the orchestrator's responsibility even though the order is not fulfilled.
func (s Status) Terminal() bool {
	return s != StatusNavigating && s != ""
}

// Variant holds free-text matchers for product options.
type Variant struct {
	Color string `json:"color,omitempty"`
	Size  string `json:"size,omitempty"`
}

// Empty reports whether no matcher is set.
func (v *Variant) Empty() bool {
	return v == nil || (strings.TrimSpace(v.Color) == "" && strings.TrimSpace(v.Size) == "")
}

// Address is a structured shipping address.
type Address struct {
	Name    string `json:"name"`
	Line1   string `json:"address1"`
	Line2   string `json:"address2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
}

// Request is the unit of work.
type Request struct {
	ID              string   `json:"id"`
	OrderNumber     string   `json:"orderNumber,omitempty"`
	SupplierURL     string   `json:"supplierUrl"`
	Variant         *Variant `json:"variant,omitempty"`
	Quantity        int      `json:"quantity"`
	ShippingAddress *Address `json:"shippingAddress,omitempty"`
	ShippingMethod  string   `json:"shippingMethod,omitempty"`
	CouponCode      string   `json:"couponCode,omitempty"`
	PromoCode       string   `json:"promoCode,omitempty"`
}

// ErrInvalidRequest wraps every validation failure.
var ErrInvalidRequest = errors.New("invalid order request")

// Normalize trims fields and defaults a zero quantity to 1.
func (r *Request) Normalize() {
	r.ID = strings.TrimSpace(r.ID)
	r.SupplierURL = strings.TrimSpace(r.SupplierURL)
	if r.Quantity == 0 {
		r.Quantity = 1
	}
}

// Validate checks the structural invariants of a request. Platform
// resolution is checked separately by the orchestrator.
func (r *Request) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRequest)
	}
	if platform.Origin(r.SupplierURL) == "" {
		return fmt.Errorf("%w: supplierUrl must be an absolute URL", ErrInvalidRequest)
	}
	if !strings.HasPrefix(strings.ToLower(r.SupplierURL), "http") {
		return fmt.Errorf("%w: supplierUrl must use http or https", ErrInvalidRequest)
	}
	if r.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidRequest)
	}
	return nil
}

// Step is one entry of the append-only step log.
type Step struct {
	Step    string `json:"step"`
	Success bool   `json:"success"`
	Details any    `json:"details,omitempty"`
}

// Agent is a third-party purchasing service suggested for platforms that
// cannot be ordered from directly.
type Agent struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Outcome is the result of one orchestration run.
type Outcome struct {
	Success             bool        `json:"success"`
	Status              Status      `json:"status"`
	Platform            platform.ID `json:"platform,omitempty"`
	Steps               []Step      `json:"steps"`
	Error               string      `json:"error,omitempty"`
	SupplierOrderNumber string      `json:"supplierOrderNumber,omitempty"`
	TrackingNumber      string      `json:"trackingNumber,omitempty"`
	Message             string      `json:"message,omitempty"`
	Instructions        []string    `json:"instructions,omitempty"`
	Agents              []Agent     `json:"agents,omitempty"`
	// Receipt is the confirmation page rendered as markdown.
	Receipt string `json:"receipt,omitempty"`
}

// Failed builds a failed outcome.
func Failed(p platform.ID, steps []Step, err error) *Outcome {
	if steps == nil {
		steps = []Step{}
	}
	return &Outcome{
		Success:  false,
		Status:   StatusFailed,
		Platform: p,
		Steps:    steps,
		Error:    err.Error(),
	}
}

// InFlight is the single persisted order awaiting resumption after a
// navigation.
type InFlight struct {
	Order     Request   `json:"order"`
	StartedAt time.Time `json:"startedAt"`
	Origin    string    `json:"origin"`
	Degraded  bool      `json:"degraded,omitempty"`
}

// HistoryEntry records one orchestration-terminal outcome.
type HistoryEntry struct {
	ID                  string      `json:"id"`
	OrderID             string      `json:"orderId"`
	OrderNumber         string      `json:"orderNumber,omitempty"`
	SupplierOrderNumber string      `json:"supplierOrderNumber,omitempty"`
	TrackingNumber      string      `json:"trackingNumber,omitempty"`
	Platform            platform.ID `json:"platform"`
	Status              Status      `json:"status"`
	Error               string      `json:"error,omitempty"`
	Steps               []Step      `json:"steps"`
	Receipt             string      `json:"receipt,omitempty"`
	ProcessedAt         time.Time   `json:"processedAt"`
	Order               Request     `json:"order"`
}

// SupplierStatus is the supplier-side view of a placed order.
type SupplierStatus struct {
	OrderID             string      `json:"orderId"`
	Platform            platform.ID `json:"platform"`
	SupplierOrderNumber string      `json:"supplierOrderNumber"`
	Status              string      `json:"status"`
	TrackingNumber      string      `json:"trackingNumber,omitempty"`
	CheckedAt           time.Time   `json:"checkedAt"`
}
