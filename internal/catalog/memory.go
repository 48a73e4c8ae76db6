package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"core/internal/apperr"
)

// MemoryStore is an in-memory ProductRepository/ClientRepository/
// OrderRepository used by tests, grounded on pim/memory_repo.go's
// sync.RWMutex-guarded map shape.
type MemoryStore struct {
	mu         sync.RWMutex
	products   map[string]Product
	categories map[string]Category
	clients    map[string]Client // by email
	orders     map[string]Order
	clientSeq  int
	orderSeq   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:   make(map[string]Product),
		categories: make(map[string]Category),
		clients:    make(map[string]Client),
		orders:     make(map[string]Order),
	}
}

func (m *MemoryStore) SeedProduct(p Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.SKU] = p
}

func (m *MemoryStore) SeedClient(c Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.Email] = c
}

func (m *MemoryStore) GetBySKU(_ context.Context, sku string) (*Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[sku]
	if !ok {
		return nil, apperr.NotFound(fmt.Sprintf("I can't find product %s.", sku), fmt.Errorf("sku %s not found", sku))
	}
	return &p, nil
}

func (m *MemoryStore) GetBySKUs(_ context.Context, skus []string) ([]Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Product
	for _, sku := range skus {
		if p, ok := m.products[sku]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryStore) List(_ context.Context, filter ProductFilter) ([]Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Product
	for _, p := range m.products {
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.CategoryID != "" && p.CategoryID != filter.CategoryID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (m *MemoryStore) GetCategoryByID(_ context.Context, id string) (*Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.categories[id]
	if !ok {
		return nil, apperr.NotFound("category not found", fmt.Errorf("category %s not found", id))
	}
	return &c, nil
}

func (m *MemoryStore) ListCategories(_ context.Context) ([]Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Category
	for _, c := range m.categories {
		out = append(out, c)
	}
	return out, nil
}

func (m *MemoryStore) GetByEmail(_ context.Context, email string) (*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[email]
	if !ok {
		return nil, apperr.NotFound("no client found for that email", fmt.Errorf("email %s not found", email))
	}
	return &c, nil
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.clients {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, apperr.NotFound("client not found", fmt.Errorf("client %s not found", id))
}

// UpsertByEmail mirrors the Postgres ON CONFLICT(email) behavior
// under this process's single mutex: concurrent callers racing on the
// same new email still resolve to one Client row.
func (m *MemoryStore) UpsertByEmail(_ context.Context, c Client) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.clients[c.Email]; ok {
		return &existing, nil
	}
	m.clientSeq++
	c.ID = fmt.Sprintf("CUST%04d", m.clientSeq)
	m.clients[c.Email] = c
	return &c, nil
}

func (m *MemoryStore) CommitOrder(_ context.Context, order Order) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(order.Items) == 0 {
		return "", apperr.InvariantViolation("order must have at least one item", fmt.Errorf("empty items"))
	}
	m.orderSeq++
	order.ID = fmt.Sprintf("ORD%05d", m.orderSeq)
	order.Status = OrderStatusPending
	m.orders[order.ID] = order
	return order.ID, nil
}

func (m *MemoryStore) GetOrderByID(_ context.Context, id string) (*Order, error) {
	return m.orderByID(id)
}

func (m *MemoryStore) GetOrderWithProducts(_ context.Context, id string) (*Order, error) {
	return m.orderByID(id)
}

func (m *MemoryStore) orderByID(id string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, apperr.NotFound("order not found", fmt.Errorf("order %s not found", id))
	}
	cp := o
	items := make([]OrderItem, len(o.Items))
	for i, it := range o.Items {
		if p, ok := m.products[it.SKU]; ok {
			it.Product = &p
		}
		items[i] = it
	}
	cp.Items = items
	return &cp, nil
}

func (m *MemoryStore) GetRecentOrdersByClient(_ context.Context, clientID string, limit int) ([]Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Order
	for _, o := range m.orders {
		if o.ClientID == clientID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) SetOrderInvoiceURL(_ context.Context, orderID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return apperr.NotFound("order not found", fmt.Errorf("order %s not found", orderID))
	}
	o.InvoiceURL = url
	m.orders[orderID] = o
	return nil
}
