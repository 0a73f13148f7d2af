package bridge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

type recorder struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (r *recorder) get(typ string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.m[typ]
	return b, ok
}

func testServer(t *testing.T, cfg HTTPConfig) (*httptest.Server, *recorder) {
	t.Helper()
	seen := &recorder{m: map[string][]byte{}}
	r := New()
	for _, typ := range []string{ProcessOrder, CheckOrderStatus, GetOrderHistory, RetryOrder, GetInFlight, DetectPlatform} {
		r.Handle(typ, func(_ context.Context, payload []byte) ([]byte, error) {
			seen.mu.Lock()
			seen.m[typ] = payload
			seen.mu.Unlock()
			return []byte(`{"ok":true}`), nil
		})
	}
	srv := httptest.NewServer(NewHTTPHandler(r, cfg))
	t.Cleanup(srv.Close)
	return srv, seen
}

func payloadOf(r *recorder, typ string) []byte {
	b, _ := r.get(typ)
	return b
}

func do(t *testing.T, method, url, body string, auth ...string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if len(auth) == 2 {
		req.SetBasicAuth(auth[0], auth[1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestHTTP_Routes(t *testing.T) {
	srv, seen := testServer(t, HTTPConfig{})

	if code, _ := do(t, "GET", srv.URL+"/health", ""); code != 200 {
		t.Fatalf("health = %d", code)
	}
	if code, body := do(t, "POST", srv.URL+"/api/orders", `{"order":{"id":"o-1"}}`); code != 200 || body != `{"ok":true}` {
		t.Fatalf("POST /api/orders = %d %s", code, body)
	}
	if !strings.Contains(string(payloadOf(seen, ProcessOrder)), `"o-1"`) {
		t.Fatalf("PROCESS_ORDER payload = %s", payloadOf(seen, ProcessOrder))
	}

	do(t, "POST", srv.URL+"/api/orders/o-7/retry", "")
	var p map[string]string
	if err := json.Unmarshal(payloadOf(seen, RetryOrder), &p); err != nil || p["orderId"] != "o-7" {
		t.Fatalf("RETRY_ORDER payload = %s", payloadOf(seen, RetryOrder))
	}

	do(t, "GET", srv.URL+"/api/orders/o-8/status", "")
	if !strings.Contains(string(payloadOf(seen, CheckOrderStatus)), `"o-8"`) {
		t.Fatalf("CHECK_ORDER_STATUS payload = %s", payloadOf(seen, CheckOrderStatus))
	}

	do(t, "GET", srv.URL+"/api/detect?url=https%3A%2F%2Fwww.temu.com%2Fx", "")
	if !strings.Contains(string(payloadOf(seen, DetectPlatform)), "temu.com") {
		t.Fatalf("DETECT_PLATFORM payload = %s", payloadOf(seen, DetectPlatform))
	}

	for _, path := range []string{"/api/orders/history", "/api/inflight"} {
		if code, _ := do(t, "GET", srv.URL+path, ""); code != 200 {
			t.Errorf("GET %s = %d", path, code)
		}
	}
}

func TestHTTP_Messages(t *testing.T) {
	srv, seen := testServer(t, HTTPConfig{})

	if code, _ := do(t, "POST", srv.URL+"/api/messages/GET_IN_FLIGHT", ""); code != 200 {
		t.Fatalf("code = %d", code)
	}
	if _, ok := seen.get(GetInFlight); !ok {
		t.Fatal("GET_IN_FLIGHT not dispatched")
	}
	if code, _ := do(t, "POST", srv.URL+"/api/messages/NOPE", "{}"); code != http.StatusNotFound {
		t.Fatalf("unknown type code = %d", code)
	}
	if code, _ := do(t, "POST", srv.URL+"/api/messages/PROCESS_ORDER", "{broken"); code != http.StatusBadRequest {
		t.Fatalf("bad body code = %d", code)
	}
}

func TestHTTP_BasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	srv, _ := testServer(t, HTTPConfig{Username: "ops", PasswordHash: string(hash)})

	if code, _ := do(t, "GET", srv.URL+"/health", ""); code != 200 {
		t.Fatalf("health must stay public, got %d", code)
	}
	if code, _ := do(t, "GET", srv.URL+"/api/inflight", ""); code != http.StatusUnauthorized {
		t.Fatalf("no credentials = %d", code)
	}
	if code, _ := do(t, "GET", srv.URL+"/api/inflight", "", "ops", "wrong"); code != http.StatusUnauthorized {
		t.Fatalf("wrong password = %d", code)
	}
	if code, _ := do(t, "GET", srv.URL+"/api/inflight", "", "ops", "s3cret"); code != 200 {
		t.Fatalf("valid credentials = %d", code)
	}
}

func TestHTTP_Middleware(t *testing.T) {
	srv, _ := testServer(t, HTTPConfig{})

	resp, err := http.Head(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("HEAD /health = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := resp.Header.Get("X-Trace-ID"); len(got) != 8 {
		t.Errorf("X-Trace-ID = %q", got)
	}
}

func TestRequestLoggerDefault(t *testing.T) {
	if RequestLogger(context.Background()) == nil {
		t.Fatal("nil logger")
	}
}
