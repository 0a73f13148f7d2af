package dom

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Action is one mutating interaction recorded by Static.
type Action struct {
	Kind     string // navigate | click | fill | select
	Selector string
	Value    string
}

// Static is a Page over in-memory HTML documents. Navigate loads the
// fixture registered for the URL; Click runs the hook registered for the
// selector, which is how a test simulates the supplier site reacting.
type Static struct {
	mu       sync.Mutex
	url      string
	doc      *goquery.Document
	fixtures map[string]string
	hooks    map[string]func(ctx context.Context, p *Static) error
	actions  []Action
}

// NewStatic returns a Static page positioned on url with the given HTML.
func NewStatic(url, body string) *Static {
	s := &Static{
		fixtures: make(map[string]string),
		hooks:    make(map[string]func(context.Context, *Static) error),
	}
	s.fixtures[url] = body
	s.load(url)
	return s
}

// Fixture registers the HTML served when Navigate targets url.
func (s *Static) Fixture(url, body string) *Static {
	s.mu.Lock()
	s.fixtures[url] = body
	s.mu.Unlock()
	return s
}

// OnClick registers fn to run after a click on selector.
func (s *Static) OnClick(selector string, fn func(ctx context.Context, p *Static) error) *Static {
	s.mu.Lock()
	s.hooks[selector] = fn
	s.mu.Unlock()
	return s
}

// Actions returns every recorded interaction, oldest first.
func (s *Static) Actions() []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Action(nil), s.actions...)
}

// Mutations returns the recorded clicks, fills and selects.
func (s *Static) Mutations() []Action {
	var out []Action
	for _, a := range s.Actions() {
		if a.Kind != "navigate" {
			out = append(out, a)
		}
	}
	return out
}

// Count returns how many times kind was performed on selector.
func (s *Static) Count(kind, selector string) int {
	n := 0
	for _, a := range s.Actions() {
		if a.Kind == kind && a.Selector == selector {
			n++
		}
	}
	return n
}

// Value returns the value attribute of the first match, as set by Fill.
func (s *Static) Value(selector string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _ := s.doc.Find(selector).First().Attr("value")
	return v
}

// load replaces the current document. The caller must not hold mu.
func (s *Static) load(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body := s.fixtures[url]
	node, err := html.Parse(strings.NewReader(body))
	if err != nil {
		node, _ = html.Parse(strings.NewReader(""))
	}
	s.url = url
	s.doc = goquery.NewDocumentFromNode(node)
}

func (s *Static) record(a Action) {
	s.mu.Lock()
	s.actions = append(s.actions, a)
	s.mu.Unlock()
}

func (s *Static) URL(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url, ctx.Err()
}

func (s *Static) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.record(Action{Kind: "navigate", Value: url})
	s.load(url)
	return nil
}

func (s *Static) WaitLoad(ctx context.Context) error { return ctx.Err() }

func (s *Static) Exists(ctx context.Context, selector string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Find(selector).Length() > 0, ctx.Err()
}

// WaitFor does not wait: a static document never changes on its own.
func (s *Static) WaitFor(ctx context.Context, selector string, _ time.Duration) error {
	ok, err := s.Exists(ctx, selector)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return nil
}

func (s *Static) Text(ctx context.Context, selector string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel := s.doc.Find(selector)
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return strings.TrimSpace(sel.First().Text()), ctx.Err()
}

func (s *Static) HTML(ctx context.Context, selector string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if selector == "" {
		return s.doc.Html()
	}
	sel := s.doc.Find(selector)
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return goquery.OuterHtml(sel.First())
}

func (s *Static) Click(ctx context.Context, selector string) error {
	ok, err := s.Exists(ctx, selector)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	s.record(Action{Kind: "click", Selector: selector})
	return s.runHook(ctx, selector)
}

func (s *Static) ClickText(ctx context.Context, selector, text string) (bool, error) {
	want := strings.ToLower(strings.TrimSpace(text))
	if want == "" {
		return false, nil
	}
	s.mu.Lock()
	matched := false
	s.doc.Find(selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if staticMatches(el, want) {
			el.SetAttr("data-clicked", "true")
			matched = true
			return false
		}
		return true
	})
	s.mu.Unlock()
	if !matched {
		return false, ctx.Err()
	}
	s.record(Action{Kind: "click", Selector: selector, Value: text})
	return true, s.runHook(ctx, selector)
}

func (s *Static) Fill(ctx context.Context, selector, value string) error {
	s.mu.Lock()
	sel := s.doc.Find(selector)
	if sel.Length() == 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	sel.First().SetAttr("value", value)
	s.mu.Unlock()
	s.record(Action{Kind: "fill", Selector: selector, Value: value})
	return ctx.Err()
}

func (s *Static) Select(ctx context.Context, selector, value string) error {
	want := strings.ToLower(strings.TrimSpace(value))
	s.mu.Lock()
	sel := s.doc.Find(selector)
	if sel.Length() == 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	found := false
	sel.First().Find("option").Each(func(_ int, opt *goquery.Selection) {
		v, _ := opt.Attr("value")
		if !found && (strings.Contains(strings.ToLower(opt.Text()), want) || strings.EqualFold(v, value)) {
			opt.SetAttr("selected", "selected")
			found = true
			return
		}
		opt.RemoveAttr("selected")
	})
	s.mu.Unlock()
	if !found {
		return fmt.Errorf("%w: option %q in %s", ErrNotFound, value, selector)
	}
	s.record(Action{Kind: "select", Selector: selector, Value: value})
	return ctx.Err()
}

func (s *Static) runHook(ctx context.Context, selector string) error {
	s.mu.Lock()
	fn := s.hooks[selector]
	s.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, s)
}

func staticMatches(el *goquery.Selection, want string) bool {
	if strings.Contains(strings.ToLower(el.Text()), want) {
		return true
	}
	for _, attr := range []string{"title", "alt", "aria-label", "data-value"} {
		if v, ok := el.Attr(attr); ok && strings.Contains(strings.ToLower(v), want) {
			return true
		}
	}
	return false
}
