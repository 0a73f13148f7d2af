// Package platform identifies supplier sites and describes how much of their
// checkout can be automated.
//
// Detection is a pure lookup over the URL host: no network, no side effects.
// The capability table is static and immutable; an id the detector knows but
// the table does not carries the zero Capability, meaning "recognised but not
// automatable".
package platform

import (
	"net/url"
	"strings"
)

// ID identifies a supplier platform.
type ID string

const (
	AliExpress     ID = "aliexpress"
	Amazon         ID = "amazon"
	EBay           ID = "ebay"
	Temu           ID = "temu"
	Banggood       ID = "banggood"
	Shein          ID = "shein"
	DHgate         ID = "dhgate"
	CJDropshipping ID = "cjdropshipping"
	Alibaba        ID = "alibaba"
	Ali1688        ID = "1688"
	Taobao         ID = "taobao"
	Wish           ID = "wish"
)

type matcher struct {
	substr string
	id     ID
}

// matchers is walked in order, first match wins. No substr may contain
// another one, so the order never changes the result.
var matchers = []matcher{
	{"aliexpress.", AliExpress},
	{"amazon.", Amazon},
	{"ebay.", EBay},
	{"temu.com", Temu},
	{"banggood.com", Banggood},
	{"shein.com", Shein},
	{"dhgate.com", DHgate},
	{"cjdropshipping.com", CJDropshipping},
	{"alibaba.com", Alibaba},
	{"1688.com", Ali1688},
	{"taobao.com", Taobao},
	{"wish.com", Wish},
}

// Detect maps a URL to its platform. It returns false for unparseable URLs,
// URLs without a host and hosts matching no known platform.
func Detect(rawURL string) (ID, bool) {
	host := Host(rawURL)
	if host == "" {
		return "", false
	}
	for _, m := range matchers {
		if strings.Contains(host, m.substr) {
			return m.id, true
		}
	}
	return "", false
}

// Host returns the lowercased host of rawURL without port, or "".
func Host(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Origin returns scheme://host[:port] of rawURL, lowercased, or "" when the
// URL is not absolute.
func Origin(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

// All returns every platform the detector recognises, in matcher order.
func All() []ID {
	ids := make([]ID, len(matchers))
	for i, m := range matchers {
		ids[i] = m.id
	}
	return ids
}
