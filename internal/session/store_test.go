package session

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMemoryStoreCartRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	cart := Cart{"SKU00010": {SKU: "SKU00010", Quantity: 3, UnitPrice: decimal.NewFromFloat(12.5)}}
	if err := store.SetCart(ctx, "chat1", cart); err != nil {
		t.Fatalf("SetCart: %v", err)
	}

	got, err := store.GetCart(ctx, "chat1")
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if len(got) != 1 || got["SKU00010"].Quantity != 3 {
		t.Fatalf("expected round-tripped cart, got %+v", got)
	}

	if err := store.ClearCart(ctx, "chat1"); err != nil {
		t.Fatalf("ClearCart: %v", err)
	}
	got, err = store.GetCart(ctx, "chat1")
	if err != nil {
		t.Fatalf("GetCart after clear: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty cart after clear, got %+v", got)
	}
}

func TestMemoryStoreCheckoutStateSurvivesInterruption(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	draft := CustomerDraft{Email: "buyer@example.com", Name: "Jane"}
	if err := store.SetCheckoutState(ctx, "chat1", CheckoutAskCompany, draft); err != nil {
		t.Fatalf("SetCheckoutState: %v", err)
	}
	if err := store.SetPendingPrompt(ctx, "chat1", "What company do you order for?"); err != nil {
		t.Fatalf("SetPendingPrompt: %v", err)
	}

	// An unrelated product listing must not disturb checkout state.
	if err := store.SetRecentProducts(ctx, "chat1", []string{"SKU00010"}); err != nil {
		t.Fatalf("SetRecentProducts: %v", err)
	}

	got, err := store.GetContext(ctx, "chat1")
	if err != nil {
		t.Fatalf("GetContext: %v", err)
	}
	if got.CheckoutState != CheckoutAskCompany {
		t.Fatalf("checkout state = %v, want %v", got.CheckoutState, CheckoutAskCompany)
	}
	if got.Draft.Email != "buyer@example.com" {
		t.Fatalf("draft lost across an unrelated write: %+v", got.Draft)
	}
	if got.PendingPrompt == "" {
		t.Fatalf("expected pending prompt to survive the interruption")
	}
	if len(got.RecentProducts) != 1 {
		t.Fatalf("expected recent products to be recorded alongside checkout state")
	}

	if err := store.ClearCheckoutState(ctx, "chat1"); err != nil {
		t.Fatalf("ClearCheckoutState: %v", err)
	}
	got, _ = store.GetContext(ctx, "chat1")
	if got.CheckoutState != CheckoutNone || got.Draft.Email != "" || got.PendingPrompt != "" {
		t.Fatalf("expected checkout state cleared, got %+v", got)
	}
}

func TestMemoryStoreMarkUpdateSeenIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.MarkUpdateSeen(ctx, "update-1")
	if err != nil {
		t.Fatalf("MarkUpdateSeen: %v", err)
	}
	if !first {
		t.Fatalf("expected first observation of update-1 to be unseen")
	}

	second, err := store.MarkUpdateSeen(ctx, "update-1")
	if err != nil {
		t.Fatalf("MarkUpdateSeen: %v", err)
	}
	if second {
		t.Fatalf("expected repeat delivery of update-1 to be reported as already seen")
	}
}

func TestMemoryStoreMarkUpdateSeenConcurrentSingleWinner(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	results := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := store.MarkUpdateSeen(ctx, "dup-update")
			if err != nil {
				t.Errorf("MarkUpdateSeen: %v", err)
				return
			}
			results[i] = ok
		}(i)
	}
	wg.Wait()

	unseenCount := 0
	for _, ok := range results {
		if ok {
			unseenCount++
		}
	}
	if unseenCount != 1 {
		t.Fatalf("expected exactly one goroutine to observe unseen, got %d", unseenCount)
	}
}
