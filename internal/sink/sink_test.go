package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/autobuy/order"
)

func testEvent() Event {
	return NewOrderProcessed(order.HistoryEntry{
		ID: "h-1", OrderID: "o-1", Platform: "aliexpress", Status: order.StatusCompleted,
		ProcessedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
}

func TestStdout_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)
	if err := s.Send(context.Background(), testEvent()); err != nil {
		t.Fatal(err)
	}
	var got Event
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if got.Type != OrderProcessed || got.Result.OrderID != "o-1" {
		t.Fatalf("event = %+v", got)
	}
}

func TestWebhook_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Autobuy-Event") != OrderProcessed {
			t.Errorf("event header = %q", r.Header.Get("X-Autobuy-Event"))
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond))
	if err := w.Send(context.Background(), testEvent()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("calls = %d, want 3", n)
	}
}

func TestWebhook_Exhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithWebhookRetries(2), WithWebhookBackoff(time.Millisecond))
	if err := w.Send(context.Background(), testEvent()); err == nil {
		t.Fatal("expected error")
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("calls = %d, want 3", n)
	}
}

func TestRouter_FanOutFirstError(t *testing.T) {
	boom := errors.New("boom")
	var got []string
	r := NewRouter(nil,
		NewCallback(func(_ context.Context, ev Event) error { got = append(got, "a"); return boom }),
		NewCallback(func(_ context.Context, ev Event) error { got = append(got, "b"); return nil }),
		NewCallback(nil),
	)
	if err := r.Send(context.Background(), testEvent()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(got) != 2 {
		t.Fatalf("delivered to %v, want both callbacks", got)
	}
	if r.Len() != 3 {
		t.Fatalf("Len = %d", r.Len())
	}
}
