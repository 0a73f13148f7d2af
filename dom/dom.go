// Package dom is the boundary between checkout drivers and a live page.
//
// Drivers only see the Page interface. Rod implements it over a Chrome tab
// driven through the DevTools protocol; Static implements it over an
// in-memory HTML document and is what tests and dry runs use.
package dom

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no element matches a selector.
var ErrNotFound = errors.New("dom: element not found")

// Page is the set of DOM interactions a checkout driver may perform.
// Methods that mutate the page (Navigate, Click, ClickText, Fill, Select)
// are the only ones allowed to change state on the supplier site.
type Page interface {
	// URL returns the current document URL.
	URL(ctx context.Context) (string, error)
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// WaitLoad blocks until the current document finished loading.
	WaitLoad(ctx context.Context) error

	// Exists reports whether selector matches at least one element now.
	Exists(ctx context.Context, selector string) (bool, error)
	// WaitFor polls until selector matches or timeout elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	// Text returns the visible text of the first match.
	Text(ctx context.Context, selector string) (string, error)
	// HTML returns the outer HTML of the first match, or of the whole
	// document when selector is empty.
	HTML(ctx context.Context, selector string) (string, error)

	// Click clicks the first match.
	Click(ctx context.Context, selector string) error
	// ClickText clicks the first match whose text, title or alt contains
	// text (case-insensitive). It returns false when nothing matched.
	ClickText(ctx context.Context, selector, text string) (bool, error)
	// Fill replaces the value of the first matching input.
	Fill(ctx context.Context, selector, value string) error
	// Select chooses the option whose text or value contains value.
	Select(ctx context.Context, selector, value string) error
}

// Sleep waits d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
