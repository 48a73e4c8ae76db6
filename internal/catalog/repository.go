package catalog

import "context"

// ProductFilter narrows ProductRepository.List. Zero values mean
// "no filter" for that field.
type ProductFilter struct {
	Search     string
	CategoryID string
}

// ProductRepository reads the product table. Writes belong to the
// out-of-scope indexing/admin-CRUD job.
type ProductRepository interface {
	GetBySKU(ctx context.Context, sku string) (*Product, error)
	GetBySKUs(ctx context.Context, skus []string) ([]Product, error)
	List(ctx context.Context, filter ProductFilter) ([]Product, error)
}

// CategoryRepository reads the category forest.
type CategoryRepository interface {
	GetCategoryByID(ctx context.Context, id string) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// ClientRepository resolves or creates clients, idempotently by
// email (see the Client upsert invariant in spec.md §3).
type ClientRepository interface {
	GetByEmail(ctx context.Context, email string) (*Client, error)
	GetByID(ctx context.Context, id string) (*Client, error)
	// UpsertByEmail creates a Client if none exists for Email, or
	// returns the existing one. Must be safe under concurrent callers
	// racing on the same new email.
	UpsertByEmail(ctx context.Context, c Client) (*Client, error)
}

// OrderRepository persists orders and their line items. Commit is the
// only multi-statement write path; everything else is a point read.
type OrderRepository interface {
	// CommitOrder inserts the order and its items atomically,
	// assigning a sequential order id. Returns the assigned id.
	CommitOrder(ctx context.Context, order Order) (string, error)
	GetOrderByID(ctx context.Context, id string) (*Order, error)
	// GetOrderWithProducts loads the order with items and their
	// product records eagerly resolved, for invoice rendering.
	GetOrderWithProducts(ctx context.Context, id string) (*Order, error)
	GetRecentOrdersByClient(ctx context.Context, clientID string, limit int) ([]Order, error)
	SetOrderInvoiceURL(ctx context.Context, orderID, url string) error
}
