package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/autobuy/bridge"
	"github.com/hazyhaar/autobuy/dom"
	"github.com/hazyhaar/autobuy/order"
	"github.com/hazyhaar/autobuy/platform"
)

func adapterRouter(t *testing.T, h *harness, page dom.Page, opts ...AdapterOption) *bridge.Router {
	t.Helper()
	r := bridge.New()
	NewAdapter(h.engine, func(context.Context) (dom.Page, error) { return page, nil }, opts...).RegisterBridge(r)
	return r
}

func call(t *testing.T, r *bridge.Router, typ string, payload any) []byte {
	t.Helper()
	var b []byte
	if payload != nil {
		var err error
		if b, err = json.Marshal(payload); err != nil {
			t.Fatal(err)
		}
	}
	out, err := r.Call(context.Background(), typ, b)
	if err != nil {
		t.Fatalf("%s: %v", typ, err)
	}
	return out
}

func decodeOutcome(t *testing.T, b []byte) order.Outcome {
	t.Helper()
	var out order.Outcome
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
	return out
}

func TestAdapter_Registered(t *testing.T) {
	r := adapterRouter(t, newHarness(t, Config{}), browser(aliProduct))
	want := "CHECK_ORDER_STATUS,DETECT_PLATFORM,GET_IN_FLIGHT,GET_ORDER_HISTORY,PROCESS_ORDER,RETRY_ORDER"
	if got := strings.Join(r.Types(), ","); got != want {
		t.Fatalf("Types = %s", got)
	}
}

func TestAdapter_ProcessAndHistory(t *testing.T) {
	h := newHarness(t, Config{})
	r := adapterRouter(t, h, browser(dhgateProduct))

	if got := string(call(t, r, bridge.GetOrderHistory, nil)); got != "[]" {
		t.Fatalf("empty history = %s", got)
	}

	out := decodeOutcome(t, call(t, r, bridge.ProcessOrder, ProcessOrderRequest{
		Order: order.Request{ID: "o-1", SupplierURL: dhgateProduct, Quantity: 2},
	}))
	if !out.Success || out.Status != order.StatusCartFilled {
		t.Fatalf("outcome = %+v", out)
	}

	var hist []order.HistoryEntry
	if err := json.Unmarshal(call(t, r, bridge.GetOrderHistory, nil), &hist); err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0].OrderID != "o-1" {
		t.Fatalf("history = %+v", hist)
	}
}

func TestAdapter_InFlight(t *testing.T) {
	h := newHarness(t, Config{})
	r := adapterRouter(t, h, browser(storefrontURL))

	if got := string(call(t, r, bridge.GetInFlight, nil)); got != "null" {
		t.Fatalf("idle in-flight = %s", got)
	}
	out := decodeOutcome(t, call(t, r, bridge.ProcessOrder, ProcessOrderRequest{Order: aliRequest("o-nav"), Degraded: true}))
	if out.Status != order.StatusNavigating {
		t.Fatalf("outcome = %+v", out)
	}
	var f order.InFlight
	if err := json.Unmarshal(call(t, r, bridge.GetInFlight, nil), &f); err != nil {
		t.Fatal(err)
	}
	if f.Order.ID != "o-nav" || !f.Degraded || f.Origin != aliOrigin {
		t.Fatalf("in-flight = %+v", f)
	}
}

func TestAdapter_BadPayloadIsFailedOutcome(t *testing.T) {
	r := adapterRouter(t, newHarness(t, Config{}), browser(aliProduct))

	b, err := r.Call(context.Background(), bridge.ProcessOrder, []byte(`{"order":"nope"}`))
	if err != nil {
		t.Fatal(err)
	}
	out := decodeOutcome(t, b)
	if out.Success || !strings.Contains(out.Error, "invalid order request") {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestAdapter_NoWorkingPage(t *testing.T) {
	h := newHarness(t, Config{})
	r := bridge.New()
	NewAdapter(h.engine, func(context.Context) (dom.Page, error) {
		return nil, errors.New("browser not started")
	}).RegisterBridge(r)

	out := decodeOutcome(t, call(t, r, bridge.ProcessOrder, ProcessOrderRequest{Order: aliRequest("o-np")}))
	if out.Success || !strings.Contains(out.Error, "browser not started") {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestAdapter_StoreFailureIsFailedOutcome(t *testing.T) {
	h := newHarness(t, Config{})
	h.store.failAppend = errors.New("disk full")
	r := adapterRouter(t, h, browser(dhgateProduct))

	out := decodeOutcome(t, call(t, r, bridge.ProcessOrder, ProcessOrderRequest{
		Order: order.Request{ID: "o-sf", SupplierURL: dhgateProduct},
	}))
	if out.Success || out.Platform != platform.DHgate || !strings.Contains(out.Error, "disk full") {
		t.Fatalf("outcome = %+v", out)
	}
	if len(out.Steps) == 0 {
		t.Fatal("steps of the finished run were dropped")
	}
}

func TestAdapter_Retry(t *testing.T) {
	h := newHarness(t, Config{})
	r := adapterRouter(t, h, browser(aliSoldOut))

	out := decodeOutcome(t, call(t, r, bridge.RetryOrder, OrderIDRequest{OrderID: "ghost"}))
	if out.Error != "order not found in history" {
		t.Fatalf("unknown order retry = %+v", out)
	}

	call(t, r, bridge.ProcessOrder, ProcessOrderRequest{Order: order.Request{ID: "o-r", SupplierURL: aliSoldOut}})
	out = decodeOutcome(t, call(t, r, bridge.RetryOrder, OrderIDRequest{OrderID: "o-r"}))
	if out.Success || out.Platform != platform.AliExpress || len(out.Steps) != 1 {
		t.Fatalf("retry = %+v", out)
	}
	if n, _ := h.engine.RetriesUsed(context.Background(), "o-r"); n != 1 {
		t.Fatalf("retries used = %d", n)
	}
}

func TestAdapter_RetryOnFailure(t *testing.T) {
	h := newHarness(t, Config{})
	page := browser(aliSoldOut)
	r := adapterRouter(t, h, page, WithRetryOnFailure(true))

	out := decodeOutcome(t, call(t, r, bridge.ProcessOrder, ProcessOrderRequest{
		Order: order.Request{ID: "o-rf", SupplierURL: aliSoldOut},
	}))

	if out.Success || out.Error != "aliexpress: step check_availability failed: product is out of stock" {
		t.Fatalf("outcome = %+v", out)
	}
	if n, _ := h.engine.RetriesUsed(context.Background(), "o-rf"); n != MaxRetries {
		t.Fatalf("retries used = %d, want %d", n, MaxRetries)
	}
	if hist := h.history(t); len(hist) != 1+MaxRetries {
		t.Fatalf("history = %d entries", len(hist))
	}
	// The budget is spent: a manual retry is refused.
	out = decodeOutcome(t, call(t, r, bridge.RetryOrder, OrderIDRequest{OrderID: "o-rf"}))
	if out.Error != "maximum retry attempts reached" {
		t.Fatalf("manual retry = %+v", out)
	}
}

func TestAdapter_RetryOnFailureSkipsRejections(t *testing.T) {
	h := newHarness(t, Config{})
	r := adapterRouter(t, h, browser(aliProduct), WithRetryOnFailure(true))

	out := decodeOutcome(t, call(t, r, bridge.ProcessOrder, ProcessOrderRequest{
		Order: order.Request{ID: "o-etsy", SupplierURL: "https://www.etsy.com/listing/1"},
	}))
	if out.Error != "unsupported platform" {
		t.Fatalf("outcome = %+v", out)
	}
	if n, _ := h.engine.RetriesUsed(context.Background(), "o-etsy"); n != 0 {
		t.Fatalf("retries used = %d", n)
	}
}

func TestAdapter_CheckStatusNull(t *testing.T) {
	r := adapterRouter(t, newHarness(t, Config{}), browser(aliProduct))
	if got := string(call(t, r, bridge.CheckOrderStatus, OrderIDRequest{OrderID: "ghost"})); got != "null" {
		t.Fatalf("status = %s", got)
	}
}

func TestDetect(t *testing.T) {
	cases := []struct {
		url       string
		id        platform.ID
		supported bool
		tier      platform.Tier
	}{
		{aliProduct, platform.AliExpress, true, platform.TierFull},
		{dhgateProduct, platform.DHgate, true, platform.TierSemi},
		{alibabaProduct, platform.Alibaba, true, platform.TierAgent},
		{wishProduct, platform.Wish, false, platform.TierNone},
		{"https://www.etsy.com/listing/1", "", false, platform.TierNone},
		{"not a url", "", false, platform.TierNone},
	}
	for _, c := range cases {
		d := Detect(c.url)
		if d.Platform != c.id || d.Supported != c.supported || d.Tier != c.tier {
			t.Errorf("Detect(%q) = %+v", c.url, d)
		}
	}
}

func TestAdapter_DetectMessage(t *testing.T) {
	r := adapterRouter(t, newHarness(t, Config{}), browser(aliProduct))
	var d Detection
	if err := json.Unmarshal(call(t, r, bridge.DetectPlatform, map[string]string{"url": alibabaProduct}), &d); err != nil {
		t.Fatal(err)
	}
	if d.Platform != platform.Alibaba || !d.Capability.NeedsAgent {
		t.Fatalf("detection = %+v", d)
	}
}
