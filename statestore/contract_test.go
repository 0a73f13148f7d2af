package statestore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hazyhaar/autobuy/order"
)

func inflight(id, supplierURL, origin string) order.InFlight {
	return order.InFlight{
		Order:     order.Request{ID: id, SupplierURL: supplierURL, Quantity: 1},
		StartedAt: time.Now().UTC().Truncate(time.Millisecond),
		Origin:    origin,
	}
}

func entry(i int, base time.Time) order.HistoryEntry {
	return order.HistoryEntry{
		ID:          fmt.Sprintf("h-%03d", i),
		OrderID:     fmt.Sprintf("o-%03d", i),
		Platform:    "aliexpress",
		Status:      order.StatusFailed,
		Steps:       []order.Step{{Step: "buy_now", Success: false}},
		ProcessedAt: base.Add(time.Duration(i) * time.Second),
		Order:       order.Request{ID: fmt.Sprintf("o-%03d", i), SupplierURL: "https://www.aliexpress.com/item/1.html", Quantity: 1},
	}
}

// runContract exercises the behaviour every backend must share.
func runContract(t *testing.T, s Store, historyLimit int) {
	ctx := context.Background()

	t.Run("single in-flight slot", func(t *testing.T) {
		if err := s.ClearInFlight(ctx); err != nil {
			t.Fatal(err)
		}
		if err := s.PutInFlight(ctx, inflight("a", "https://www.aliexpress.com/item/1.html", "https://www.aliexpress.com")); err != nil {
			t.Fatal(err)
		}
		if err := s.PutInFlight(ctx, inflight("b", "https://www.dhgate.com/p/2.html", "https://www.dhgate.com")); err != nil {
			t.Fatal(err)
		}
		got, err := s.PeekInFlight(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.Order.ID != "b" {
			t.Fatalf("PeekInFlight = %+v, want order b", got)
		}
	})

	t.Run("take requires matching origin", func(t *testing.T) {
		got, err := s.TakeInFlight(ctx, "https://www.aliexpress.com")
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			t.Fatalf("take with wrong origin returned %+v", got)
		}
		if still, _ := s.PeekInFlight(ctx); still == nil {
			t.Fatal("slot must be untouched after origin mismatch")
		}

		got, err = s.TakeInFlight(ctx, "https://www.dhgate.com")
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.Order.ID != "b" {
			t.Fatalf("take = %+v, want order b", got)
		}
		again, err := s.TakeInFlight(ctx, "https://www.dhgate.com")
		if err != nil {
			t.Fatal(err)
		}
		if again != nil {
			t.Fatal("slot consumed twice")
		}
	})

	t.Run("history bounded newest first", func(t *testing.T) {
		base := time.Now().UTC()
		for i := 0; i <= historyLimit; i++ {
			if err := s.AppendHistory(ctx, entry(i, base)); err != nil {
				t.Fatalf("append %d: %v", i, err)
			}
		}
		entries, err := s.History(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != historyLimit {
			t.Fatalf("len(history) = %d, want %d", len(entries), historyLimit)
		}
		if entries[0].ID != fmt.Sprintf("h-%03d", historyLimit) {
			t.Errorf("newest = %s", entries[0].ID)
		}
		for _, e := range entries {
			if e.ID == "h-000" {
				t.Fatal("oldest entry was not evicted")
			}
		}

		latest, err := s.LatestForOrder(ctx, "o-005")
		if err != nil {
			t.Fatal(err)
		}
		if latest == nil || latest.Order.ID != "o-005" {
			t.Fatalf("LatestForOrder = %+v", latest)
		}
		missing, err := s.LatestForOrder(ctx, "o-000")
		if err != nil {
			t.Fatal(err)
		}
		if missing != nil {
			t.Fatal("evicted order still found")
		}
	})

	t.Run("retry counter bounded", func(t *testing.T) {
		for want := 1; want <= 3; want++ {
			n, err := s.ConsumeRetry(ctx, "r-1", 3)
			if err != nil {
				t.Fatalf("consume %d: %v", want, err)
			}
			if n != want {
				t.Fatalf("consume = %d, want %d", n, want)
			}
		}
		if _, err := s.ConsumeRetry(ctx, "r-1", 3); !errors.Is(err, ErrRetryLimit) {
			t.Fatalf("fourth consume err = %v, want ErrRetryLimit", err)
		}
		n, err := s.RetryCount(ctx, "r-1")
		if err != nil {
			t.Fatal(err)
		}
		if n != 3 {
			t.Fatalf("RetryCount = %d, want 3", n)
		}
		if n, _ := s.RetryCount(ctx, "unknown"); n != 0 {
			t.Fatalf("RetryCount(unknown) = %d", n)
		}
	})
}
