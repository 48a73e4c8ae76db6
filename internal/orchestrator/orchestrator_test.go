package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"core/internal/analyzer"
	"core/internal/cart"
	"core/internal/catalog"
	"core/internal/checkout"
	"core/internal/llm"
	"core/internal/product"
	"core/internal/session"
	"core/internal/transport/chat"
	"core/internal/vectorindex"
)

type neverCalledLLM struct{}

func (neverCalledLLM) Classify(context.Context, []llm.Message, string) (*llm.Classification, error) {
	panic("LLM should not be invoked for slash commands")
}
func (neverCalledLLM) Embed(context.Context, string) ([]float32, error)       { return []float32{0.1}, nil }
func (neverCalledLLM) Answer(context.Context, string, string) (string, error) { return "", nil }

// checkoutAnswerLLM classifies every free-text message as a checkout
// answer, so the checkout flow test's replies reach the checkout handler.
type checkoutAnswerLLM struct{ neverCalledLLM }

func (checkoutAnswerLLM) Classify(context.Context, []llm.Message, string) (*llm.Classification, error) {
	return &llm.Classification{Intent: "checkout_answer", Confidence: 1}, nil
}

type alwaysHitIndex struct{}

func (alwaysHitIndex) Search(ctx context.Context, vector []float32, limit int, threshold float64) ([]vectorindex.Result, error) {
	return []vectorindex.Result{{SKU: "HWR001", Score: 0.9}}, nil
}
func (alwaysHitIndex) Upsert(ctx context.Context, sku string, vector []float32) error { return nil }
func (alwaysHitIndex) EnsureCollection(ctx context.Context) error                     { return nil }

type fakeDispatcher struct {
	enqueued []string
}

func (f *fakeDispatcher) Enqueue(orderID string) { f.enqueued = append(f.enqueued, orderID) }

func newTestOrchestrator(t *testing.T) (*Orchestrator, *catalog.MemoryStore, *fakeDispatcher) {
	t.Helper()
	store := catalog.NewMemoryStore()
	store.SeedProduct(catalog.Product{SKU: "HWR001", Name: "Drill", Brand: "Acme", Price: decimal.NewFromInt(45), Description: "A drill"})

	sessions := session.NewMemoryStore()
	az := analyzer.New(neverCalledLLM{})
	products := product.NewHandler(store, alwaysHitIndex{}, neverCalledLLM{}, neverCalledLLM{})
	carts := cart.NewHandler(sessions, store)
	checkouts := checkout.NewHandler(sessions, store, store)
	dispatcher := &fakeDispatcher{}

	o := New(sessions, az, products, carts, checkouts, dispatcher, nil)
	return o, store, dispatcher
}

func TestHandleAddToCartThenViewCart(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	reply := o.Handle(ctx, chat.Update{UpdateID: "u1", ChatID: "chat-1", Text: "/agregar HWR001 2"})
	if !strings.Contains(reply, "Drill") {
		t.Fatalf("expected cart view mentioning Drill, got %q", reply)
	}

	reply = o.Handle(ctx, chat.Update{UpdateID: "u2", ChatID: "chat-1", Text: "/ver_carrito"})
	if !strings.Contains(reply, "Drill") || !strings.Contains(reply, "Total") {
		t.Fatalf("expected cart view with total, got %q", reply)
	}
}

func TestHandleDuplicateUpdateIDIsDroppedSilently(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	first := o.Handle(ctx, chat.Update{UpdateID: "dup-1", ChatID: "chat-1", Text: "/agregar HWR001 1"})
	second := o.Handle(ctx, chat.Update{UpdateID: "dup-1", ChatID: "chat-1", Text: "/agregar HWR001 1"})

	if first == "" {
		t.Fatalf("expected a non-empty reply for the first delivery")
	}
	if second != "" {
		t.Fatalf("expected an empty reply for the duplicate update_id, got %q", second)
	}
}

func TestCheckoutFlowEnqueuesInvoiceOnCommit(t *testing.T) {
	o, _, dispatcher := newTestOrchestrator(t)
	o.analyzer = analyzer.New(checkoutAnswerLLM{})
	ctx := context.Background()
	chatID := "chat-checkout"

	o.Handle(ctx, chat.Update{UpdateID: "a1", ChatID: chatID, Text: "/agregar HWR001 1"})
	o.Handle(ctx, chat.Update{UpdateID: "a2", ChatID: chatID, Text: "/finalizar_compra"})
	o.Handle(ctx, chat.Update{UpdateID: "a3", ChatID: chatID, Text: "no"}) // not returning
	o.Handle(ctx, chat.Update{UpdateID: "a4", ChatID: chatID, Text: "buyer@example.com"})
	o.Handle(ctx, chat.Update{UpdateID: "a5", ChatID: chatID, Text: "Jane Buyer"})
	o.Handle(ctx, chat.Update{UpdateID: "a6", ChatID: chatID, Text: "none"})
	o.Handle(ctx, chat.Update{UpdateID: "a7", ChatID: chatID, Text: "123 Market St"})
	o.Handle(ctx, chat.Update{UpdateID: "a8", ChatID: chatID, Text: "555-1234"})
	o.Handle(ctx, chat.Update{UpdateID: "a9", ChatID: chatID, Text: "yes"})

	if len(dispatcher.enqueued) != 1 {
		t.Fatalf("expected exactly one invoice enqueue, got %d: %v", len(dispatcher.enqueued), dispatcher.enqueued)
	}
}

func TestCheckoutInterruptionPreservesStateAndAddsReminder(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()
	chatID := "chat-interrupt"

	o.Handle(ctx, chat.Update{UpdateID: "b1", ChatID: chatID, Text: "/agregar HWR001 1"})
	o.Handle(ctx, chat.Update{UpdateID: "b2", ChatID: chatID, Text: "/finalizar_compra"})

	reply := o.Handle(ctx, chat.Update{UpdateID: "b3", ChatID: chatID, Text: "/ver_carrito"})
	if !strings.Contains(reply, "continue with checkout") {
		t.Fatalf("expected an interruption reminder, got %q", reply)
	}
}

func TestTranslateCallbackAddToCart(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	reply := o.Handle(ctx, chat.Update{UpdateID: "c1", ChatID: "chat-callback", CallbackData: "add:HWR001:3"})
	if !strings.Contains(reply, "Drill") {
		t.Fatalf("expected the callback to resolve to an add-to-cart reply, got %q", reply)
	}
}
