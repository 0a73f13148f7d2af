package dom

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Rod adapts a go-rod page to Page.
type Rod struct {
	page *rod.Page
}

// NewRod wraps page.
func NewRod(page *rod.Page) *Rod {
	return &Rod{page: page}
}

// Page returns the underlying rod page.
func (r *Rod) Page() *rod.Page { return r.page }

func (r *Rod) URL(ctx context.Context) (string, error) {
	info, err := r.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("dom: page info: %w", err)
	}
	return info.URL, nil
}

func (r *Rod) Navigate(ctx context.Context, url string) error {
	p := r.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("dom: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("dom: wait load %s: %w", url, err)
	}
	return nil
}

func (r *Rod) WaitLoad(ctx context.Context) error {
	return r.page.Context(ctx).WaitLoad()
}

func (r *Rod) Exists(ctx context.Context, selector string) (bool, error) {
	has, _, err := r.page.Context(ctx).Has(selector)
	if err != nil {
		return false, fmt.Errorf("dom: query %s: %w", selector, err)
	}
	return has, nil
}

func (r *Rod) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if _, err := r.page.Context(ctx).Timeout(timeout).Element(selector); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, selector)
		}
		return fmt.Errorf("dom: wait %s: %w", selector, err)
	}
	return nil
}

func (r *Rod) Text(ctx context.Context, selector string) (string, error) {
	el, err := r.first(ctx, selector)
	if err != nil {
		return "", err
	}
	return el.Text()
}

func (r *Rod) HTML(ctx context.Context, selector string) (string, error) {
	if selector == "" {
		return r.page.Context(ctx).HTML()
	}
	el, err := r.first(ctx, selector)
	if err != nil {
		return "", err
	}
	return el.HTML()
}

func (r *Rod) Click(ctx context.Context, selector string) error {
	el, err := r.first(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("dom: click %s: %w", selector, err)
	}
	return nil
}

func (r *Rod) ClickText(ctx context.Context, selector, text string) (bool, error) {
	els, err := r.page.Context(ctx).Elements(selector)
	if err != nil {
		return false, fmt.Errorf("dom: query %s: %w", selector, err)
	}
	want := strings.ToLower(strings.TrimSpace(text))
	for _, el := range els {
		if !elementMatches(el, want) {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return false, fmt.Errorf("dom: click %s %q: %w", selector, text, err)
		}
		return true, nil
	}
	return false, nil
}

func (r *Rod) Fill(ctx context.Context, selector, value string) error {
	el, err := r.first(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("dom: select text %s: %w", selector, err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("dom: input %s: %w", selector, err)
	}
	return nil
}

func (r *Rod) Select(ctx context.Context, selector, value string) error {
	el, err := r.first(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Select([]string{value}, true, rod.SelectorTypeText); err != nil {
		return fmt.Errorf("dom: select %s %q: %w", selector, value, err)
	}
	return nil
}

func (r *Rod) first(ctx context.Context, selector string) (*rod.Element, error) {
	has, el, err := r.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, fmt.Errorf("dom: query %s: %w", selector, err)
	}
	if !has {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return el, nil
}

func elementMatches(el *rod.Element, want string) bool {
	if want == "" {
		return false
	}
	if txt, err := el.Text(); err == nil && strings.Contains(strings.ToLower(txt), want) {
		return true
	}
	for _, attr := range []string{"title", "alt", "aria-label", "data-value"} {
		v, err := el.Attribute(attr)
		if err == nil && v != nil && strings.Contains(strings.ToLower(*v), want) {
			return true
		}
	}
	return false
}
