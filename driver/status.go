package driver

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hazyhaar/autobuy/dom"
	"github.com/hazyhaar/autobuy/order"
)

// StatusChecker reads the supplier-side status of a placed order. page is a
// dedicated tab, never the one an order is running in.
type StatusChecker interface {
	CheckStatus(ctx context.Context, page dom.Page, entry order.HistoryEntry) (*order.SupplierStatus, error)
}

// ErrNoStatusPage is returned when a platform has no order detail page.
var ErrNoStatusPage = errors.New("platform has no order status page")

// CheckStatus opens the order detail page and reads status and tracking.
func (d *FullAuto) CheckStatus(ctx context.Context, page dom.Page, entry order.HistoryEntry) (*order.SupplierStatus, error) {
	if d.Sel.OrderDetailURL == "" || entry.SupplierOrderNumber == "" {
		return nil, ErrNoStatusPage
	}
	u := strings.ReplaceAll(d.Sel.OrderDetailURL, "{order}", entry.SupplierOrderNumber)
	if err := page.Navigate(ctx, u); err != nil {
		return nil, err
	}

	st := &order.SupplierStatus{
		OrderID:             entry.OrderID,
		Platform:            d.ID,
		SupplierOrderNumber: entry.SupplierOrderNumber,
		Status:              "unknown",
		CheckedAt:           time.Now().UTC(),
	}
	if d.Sel.StatusText != "" {
		if txt, err := page.Text(ctx, d.Sel.StatusText); err == nil && txt != "" {
			st.Status = dom.Truncate(dom.CleanText(txt), 120)
		}
	}
	if d.Sel.TrackingText != "" {
		if txt, err := page.Text(ctx, d.Sel.TrackingText); err == nil {
			st.TrackingNumber = trackingNumber(dom.CleanText(txt))
		}
	}
	return st, nil
}

// trackingNumber keeps the last whitespace-separated token, which drops
// labels such as "Tracking number:".
func trackingNumber(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return strings.Trim(f[len(f)-1], ":#")
}
