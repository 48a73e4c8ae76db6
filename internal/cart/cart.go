// Package cart implements CartHandler (spec.md §4.6): add/update/
// remove/view/clear over the per-chat Cart kept in session.Store.
package cart

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"core/internal/apperr"
	"core/internal/catalog"
	"core/internal/metrics"
	"core/internal/product"
	"core/internal/session"
)

const (
	maxPresentedLines = 20
)

// Line is one formatted cart row for View.
type Line struct {
	SKU      string
	Name     string
	Quantity int
	Subtotal string
}

// View is the formatted result of view().
type View struct {
	Lines     []Line
	Total     string
	MoreCount int
	Empty     bool
}

type Handler struct {
	sessions session.Store
	products catalog.ProductRepository
}

func NewHandler(sessions session.Store, products catalog.ProductRepository) *Handler {
	return &Handler{sessions: sessions, products: products}
}

// reportCartSize keeps the cart_items_total gauge in step with the
// session store after any mutation.
func reportCartSize(chatID string, cart session.Cart) {
	var qty int
	for _, line := range cart {
		qty += line.Quantity
	}
	metrics.CartItemsTotal.WithLabelValues(chatID).Set(float64(qty))
}

// Add implements spec.md §4.6's add operation.
func (h *Handler) Add(ctx context.Context, chatID, sku string, position, qty int, recent []string) (session.Cart, error) {
	resolved, err := product.ResolveSKU(sku, position, recent)
	if err != nil {
		return nil, err
	}
	if qty < 1 {
		qty = 1
	}

	p, err := h.products.GetBySKU(ctx, resolved)
	if err != nil {
		return nil, err
	}

	cart, err := h.sessions.GetCart(ctx, chatID)
	if err != nil {
		return nil, err
	}

	if line, ok := cart[resolved]; ok {
		line.Quantity += qty
		cart[resolved] = line
	} else {
		cart[resolved] = session.CartLine{SKU: resolved, Quantity: qty, UnitPrice: p.Price}
	}

	if err := h.sessions.SetCart(ctx, chatID, cart); err != nil {
		return nil, err
	}
	reportCartSize(chatID, cart)
	return cart, nil
}

// Update implements spec.md §4.6's update operation; qty == 0 behaves
// like remove.
func (h *Handler) Update(ctx context.Context, chatID, sku string, position, qty int, recent []string) (session.Cart, error) {
	resolved, err := product.ResolveSKU(sku, position, recent)
	if err != nil {
		return nil, err
	}
	if qty == 0 {
		return h.Remove(ctx, chatID, sku, position, recent)
	}
	if qty < 0 {
		return nil, apperr.InvariantViolation("quantity must be a positive integer", nil)
	}

	cart, err := h.sessions.GetCart(ctx, chatID)
	if err != nil {
		return nil, err
	}
	line, ok := cart[resolved]
	if !ok {
		return nil, apperr.NotFound(fmt.Sprintf("%s isn't in your cart yet", resolved), nil)
	}
	line.Quantity = qty
	cart[resolved] = line

	if err := h.sessions.SetCart(ctx, chatID, cart); err != nil {
		return nil, err
	}
	reportCartSize(chatID, cart)
	return cart, nil
}

// Remove implements spec.md §4.6's remove operation; no-op if absent.
func (h *Handler) Remove(ctx context.Context, chatID, sku string, position int, recent []string) (session.Cart, error) {
	resolved, err := product.ResolveSKU(sku, position, recent)
	if err != nil {
		return nil, err
	}

	cart, err := h.sessions.GetCart(ctx, chatID)
	if err != nil {
		return nil, err
	}
	delete(cart, resolved)

	if err := h.sessions.SetCart(ctx, chatID, cart); err != nil {
		return nil, err
	}
	reportCartSize(chatID, cart)
	return cart, nil
}

// View implements spec.md §4.6's view operation, truncated to 20
// presented lines with a "…and N more" tail.
func (h *Handler) View(ctx context.Context, chatID string) (*View, error) {
	cart, err := h.sessions.GetCart(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if len(cart) == 0 {
		return &View{Empty: true, Total: "0.00"}, nil
	}

	skus := make([]string, 0, len(cart))
	for sku := range cart {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	products, err := h.products.GetBySKUs(ctx, skus)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(products))
	for _, p := range products {
		names[p.SKU] = p.Name
	}

	view := &View{}
	total := decimal.Zero
	for i, sku := range skus {
		line := cart[sku]
		subtotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		total = total.Add(subtotal)
		if i < maxPresentedLines {
			view.Lines = append(view.Lines, Line{
				SKU: sku, Name: names[sku], Quantity: line.Quantity, Subtotal: subtotal.StringFixed(2),
			})
		}
	}
	if len(skus) > maxPresentedLines {
		view.MoreCount = len(skus) - maxPresentedLines
	}
	view.Total = total.StringFixed(2)
	return view, nil
}

// Clear implements spec.md §4.6's clear operation.
func (h *Handler) Clear(ctx context.Context, chatID string) error {
	if err := h.sessions.ClearCart(ctx, chatID); err != nil {
		return err
	}
	metrics.CartItemsTotal.WithLabelValues(chatID).Set(0)
	return nil
}
