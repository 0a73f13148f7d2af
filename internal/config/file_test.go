package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/autobuy/platform"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Store.Backend != "sqlite" || cfg.Store.HistoryLimit != 100 {
		t.Fatalf("store = %+v", cfg.Store)
	}
	if cfg.Checkout.AutoConfirmOrders || cfg.Checkout.RetryOnFailure || cfg.Checkout.InFlightMaxAge != 0 {
		t.Fatalf("checkout = %+v", cfg.Checkout)
	}
	if cfg.Browser.Headless {
		t.Fatal("browser must be visible by default")
	}
	if cfg.Browser.NavigateTimeout != 30*time.Second {
		t.Fatalf("navigate_timeout = %v", cfg.Browser.NavigateTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autobuy.yaml")
	data := `
log_level: debug
store:
  backend: redis
  redis:
    addr: redis:6379
    prefix: shop1
checkout:
  auto_confirm_orders: true
  retry_on_failure: true
  inflight_max_age: 30m
delays:
  step: 250ms
http:
  addr: ":9000"
events:
  stdout: true
  webhooks:
    - url: https://hooks.example.com/orders
selectors:
  aliexpress:
    place_order: "button.place-order-v2"
    address:
      zip: "#zip-v2"
agents:
  - name: Pandabuy
    template: "https://www.pandabuy.com/product?url=%s"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Backend != "redis" || cfg.Store.Redis.Addr != "redis:6379" || cfg.Store.Redis.Prefix != "shop1" {
		t.Fatalf("store = %+v", cfg.Store)
	}
	if !cfg.Checkout.AutoConfirmOrders || !cfg.Checkout.RetryOnFailure || cfg.Checkout.InFlightMaxAge != 30*time.Minute {
		t.Fatalf("checkout = %+v", cfg.Checkout)
	}
	if cfg.Delays.Step != 250*time.Millisecond || cfg.Delays.PageLoad != 15*time.Second {
		t.Fatalf("delays = %+v", cfg.Delays)
	}
	if len(cfg.Events.Webhooks) != 1 || cfg.Events.Webhooks[0].Retries != 3 || cfg.Events.Webhooks[0].Backoff != time.Second {
		t.Fatalf("webhooks = %+v", cfg.Events.Webhooks)
	}
	sel := cfg.Selectors[platform.AliExpress]
	if sel.PlaceOrder != "button.place-order-v2" || sel.Address.Zip != "#zip-v2" {
		t.Fatalf("selectors = %+v", sel)
	}
	if len(cfg.Agents) != 1 || cfg.Agents[0].Name != "Pandabuy" {
		t.Fatalf("agents = %+v", cfg.Agents)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"backend":  "store: {backend: postgres}",
		"level":    "log_level: loud",
		"auth":     "http: {username: ops}",
		"webhook":  "events: {webhooks: [{retries: 2}]}",
		"platform": "selectors: {etsy: {buy_now: '#buy'}}",
		"pattern":  "selectors: {amazon: {order_number_pattern: '(['}}",
		"agent":    "agents: [{name: X, template: 'https://x.test/'}]",
		"yaml":     "store: [",
	}
	for name, data := range cases {
		if _, err := Parse([]byte(data)); err == nil || !strings.HasPrefix(err.Error(), "config:") {
			t.Errorf("%s: err = %v", name, err)
		}
	}
}
