package invoice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"core/internal/catalog"
	"core/internal/email"
)

type fakeSender struct {
	mu        sync.Mutex
	failUntil int
	calls     int
	lastTo    string
	lastAttch []email.Attachment
}

func (f *fakeSender) Send(to, subject, htmlBody string, attachments []email.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastTo = to
	f.lastAttch = attachments
	if f.calls <= f.failUntil {
		return errSendFailed
	}
	return nil
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type stubErr string

func (e stubErr) Error() string { return string(e) }

const errSendFailed = stubErr("smtp: connection refused")

func seededOrderStore(t *testing.T) (*catalog.MemoryStore, string) {
	t.Helper()
	store := catalog.NewMemoryStore()
	store.SeedProduct(catalog.Product{SKU: "HWR001", Name: "Drill", Price: decimal.NewFromInt(45)})
	orderID, err := store.CommitOrder(context.Background(), catalog.Order{
		ChatID:        "chat-1",
		CustomerName:  "Alice",
		CustomerEmail: "alice@example.com",
		Address:       "123 Main St",
		TotalAmount:   decimal.NewFromInt(90),
		Items: []catalog.OrderItem{
			{SKU: "HWR001", Quantity: 2, UnitPrice: decimal.NewFromInt(45)},
		},
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return store, orderID
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}
}

func TestDispatchSendsInvoiceOnFirstAttempt(t *testing.T) {
	store, orderID := seededOrderStore(t)
	sender := &fakeSender{}
	svc := &Service{orders: store, sender: sender, policy: fastPolicy(), queue: make(chan string, 1), done: make(chan struct{})}

	svc.dispatch(orderID)

	if sender.callCount() != 1 {
		t.Fatalf("expected exactly one send attempt, got %d", sender.callCount())
	}
	if sender.lastTo != "alice@example.com" {
		t.Fatalf("unexpected recipient: %s", sender.lastTo)
	}
	if len(sender.lastAttch) != 1 || sender.lastAttch[0].ContentType != "application/pdf" {
		t.Fatalf("expected a single pdf attachment, got %+v", sender.lastAttch)
	}
}

func TestDispatchRetriesThenSucceeds(t *testing.T) {
	store, orderID := seededOrderStore(t)
	sender := &fakeSender{failUntil: 2}
	svc := &Service{orders: store, sender: sender, policy: fastPolicy(), queue: make(chan string, 1), done: make(chan struct{})}

	svc.dispatch(orderID)

	if sender.callCount() != 3 {
		t.Fatalf("expected 3 attempts (2 failures + success), got %d", sender.callCount())
	}
}

func TestDispatchGivesUpAfterMaxAttempts(t *testing.T) {
	store, orderID := seededOrderStore(t)
	sender := &fakeSender{failUntil: 99}
	svc := &Service{orders: store, sender: sender, policy: fastPolicy(), queue: make(chan string, 1), done: make(chan struct{})}

	svc.dispatch(orderID)

	if sender.callCount() != 3 {
		t.Fatalf("expected exactly MaxAttempts=3 calls, got %d", sender.callCount())
	}
}

func TestDispatchMissingOrderDoesNotPanic(t *testing.T) {
	store := catalog.NewMemoryStore()
	sender := &fakeSender{}
	svc := &Service{orders: store, sender: sender, policy: fastPolicy(), queue: make(chan string, 1), done: make(chan struct{})}

	svc.dispatch("ORD99999")

	if sender.callCount() != 0 {
		t.Fatalf("expected no send attempt for a missing order, got %d", sender.callCount())
	}
}

func TestEnqueueDoesNotBlockWhenQueueFull(t *testing.T) {
	svc := &Service{queue: make(chan string), done: make(chan struct{})}
	done := make(chan struct{})
	go func() {
		svc.Enqueue("ORD00001")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full/unconsumed queue")
	}
}
