// Package session is the fast per-chat store: cart contents,
// conversation context, and webhook idempotency markers, generalized
// from cache/redis.go's product/category cache into the three
// chat-scoped namespaces spec.md §4.1 names.
package session

import "github.com/shopspring/decimal"

// CartLine is one product line in a chat's cart.
type CartLine struct {
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Cart is keyed by SKU; order is not significant, View formats it.
type Cart map[string]CartLine

// CheckoutState is the tagged variant of spec.md §4.7 / §9 — a sum
// type, not a bare string, even though it is JSON-encoded as one.
type CheckoutState string

const (
	CheckoutNone           CheckoutState = "none"
	CheckoutAskReturning   CheckoutState = "ask_returning"
	CheckoutAskEmailLookup CheckoutState = "ask_email_lookup"
	CheckoutAskEmail       CheckoutState = "ask_email"
	CheckoutAskName        CheckoutState = "ask_name"
	CheckoutAskCompany     CheckoutState = "ask_company"
	CheckoutAskAddress     CheckoutState = "ask_address"
	CheckoutAskPhone       CheckoutState = "ask_phone"
	CheckoutAskConfirm     CheckoutState = "ask_confirm"
)

// CustomerDraft accumulates the checkout dialog's answers; never lost
// on interruption (spec.md §3 invariant).
type CustomerDraft struct {
	ClientID string `json:"client_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Company  string `json:"company,omitempty"`
	Address  string `json:"address,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Context is the per-chat ConversationContext of spec.md §3.
type Context struct {
	RecentProducts []string      `json:"recent_products"`
	CheckoutState  CheckoutState `json:"checkout_state"`
	Draft          CustomerDraft `json:"draft"`
	// PendingPrompt holds the last prompt the user was asked
	// before an interruption, so the orchestrator can remind them
	// where they left off (spec.md §4.7 interruption policy).
	PendingPrompt string `json:"pending_prompt,omitempty"`
}
