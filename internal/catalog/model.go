// Package catalog is the relational persistence layer: products,
// categories, clients, orders, order items.
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is immutable from the core's perspective; administrative
// writes happen out of scope.
type Product struct {
	SKU            string
	Name           string
	Description    string
	Brand          string
	Price          decimal.Decimal
	CategoryID     string
	Specifications map[string]string
	ImageURLs      []string
}

// Category forms a forest; Parent is empty for a root category.
type Category struct {
	ID     string
	Name   string
	Parent string
}

// Client is materialized lazily on first successful checkout for an
// unknown email; Email is the lookup identity.
type Client struct {
	ID      string // CUSTnnnn
	Name    string
	Email   string
	Phone   string
	Address string
}

// OrderStatus is closed at "pending" per this spec's scope.
type OrderStatus string

const OrderStatusPending OrderStatus = "pending"

// Order is append-only at the core level once committed; InvoiceURL
// is the only field ever mutated after commit.
type Order struct {
	ID            string // ORDnnnnn
	ClientID      string // may be empty if identity wasn't materialized at commit time
	ChatID        string
	CustomerName  string
	CustomerEmail string
	Address       string
	TotalAmount   decimal.Decimal
	Status        OrderStatus
	InvoiceURL    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Items         []OrderItem
}

// OrderItem captures the unit price at checkout time, not the
// product's current price.
type OrderItem struct {
	OrderID   string
	SKU       string
	Quantity  int
	UnitPrice decimal.Decimal

	// Product is populated on reads that eagerly join the catalog
	// (e.g. invoice rendering); empty on writes.
	Product *Product
}

// Total returns Σ quantity × unit_price over items.
func Total(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}
