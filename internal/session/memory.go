package session

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used by tests and by components
// that don't need Redis persistence across restarts.
type MemoryStore struct {
	mu       sync.Mutex
	carts    map[string]Cart
	contexts map[string]Context
	seen     map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		carts:    make(map[string]Cart),
		contexts: make(map[string]Context),
		seen:     make(map[string]struct{}),
	}
}

func (s *MemoryStore) GetCart(ctx context.Context, chatID string) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[chatID]
	if !ok {
		return Cart{}, nil
	}
	clone := make(Cart, len(cart))
	for k, v := range cart {
		clone[k] = v
	}
	return clone, nil
}

func (s *MemoryStore) SetCart(ctx context.Context, chatID string, cart Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := make(Cart, len(cart))
	for k, v := range cart {
		clone[k] = v
	}
	s.carts[chatID] = clone
	return nil
}

func (s *MemoryStore) ClearCart(ctx context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, chatID)
	return nil
}

func (s *MemoryStore) GetContext(ctx context.Context, chatID string) (Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contexts[chatID]
	if !ok {
		return Context{CheckoutState: CheckoutNone}, nil
	}
	return c, nil
}

func (s *MemoryStore) SetRecentProducts(ctx context.Context, chatID string, skus []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.contexts[chatID]
	if c.CheckoutState == "" {
		c.CheckoutState = CheckoutNone
	}
	c.RecentProducts = skus
	s.contexts[chatID] = c
	return nil
}

func (s *MemoryStore) SetCheckoutState(ctx context.Context, chatID string, state CheckoutState, draft CustomerDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.contexts[chatID]
	c.CheckoutState = state
	c.Draft = draft
	s.contexts[chatID] = c
	return nil
}

func (s *MemoryStore) SetPendingPrompt(ctx context.Context, chatID, prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.contexts[chatID]
	if c.CheckoutState == "" {
		c.CheckoutState = CheckoutNone
	}
	c.PendingPrompt = prompt
	s.contexts[chatID] = c
	return nil
}

func (s *MemoryStore) ClearCheckoutState(ctx context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.contexts[chatID]
	c.CheckoutState = CheckoutNone
	c.Draft = CustomerDraft{}
	c.PendingPrompt = ""
	s.contexts[chatID] = c
	return nil
}

func (s *MemoryStore) MarkUpdateSeen(ctx context.Context, updateID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[updateID]; ok {
		return false, nil
	}
	s.seen[updateID] = struct{}{}
	return true, nil
}
