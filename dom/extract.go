package dom

import (
	"html"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var (
	strict = bluemonday.StrictPolicy()
	md     = htmltomarkdown.NewConverter(
		htmltomarkdown.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
)

// CleanText strips every tag from a supplier page fragment and collapses
// whitespace. Supplier markup ends up in logs, history and webhooks, so it
// never leaves this package as HTML.
func CleanText(fragment string) string {
	text := html.UnescapeString(strict.Sanitize(fragment))
	return strings.Join(strings.Fields(text), " ")
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// Find applies re to the text of selector inside doc (or to the whole
// document text when selector is empty or does not match) and returns the
// first capture group, or the whole match when re has no group.
func Find(doc, selector string, re *regexp.Regexp) string {
	if re == nil {
		return ""
	}
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return ""
	}
	var text string
	if selector != "" {
		if sel := d.Find(selector); sel.Length() > 0 {
			text = sel.First().Text()
		}
	}
	if text == "" {
		text = d.Text()
	}
	m := re.FindStringSubmatch(text)
	switch {
	case m == nil:
		return ""
	case len(m) > 1:
		return strings.TrimSpace(m[1])
	default:
		return strings.TrimSpace(m[0])
	}
}

// Markdown renders a page fragment as markdown for receipts. domain resolves
// relative links.
func Markdown(fragment, domain string) (string, error) {
	out, err := md.ConvertString(fragment, htmltomarkdown.WithDomain(domain))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
