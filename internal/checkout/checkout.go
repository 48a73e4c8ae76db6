// Package checkout implements CheckoutHandler (spec.md §4.7): the
// multi-turn finite state machine that collects customer data and
// commits a cart into an order.
package checkout

import (
	"context"
	"regexp"
	"strings"

	"core/internal/apperr"
	"core/internal/catalog"
	"core/internal/metrics"
	"core/internal/session"
	"core/internal/tracing"
)

// emailPattern is a permissive RFC 5321-ish check, not a full grammar.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Outcome carries the checkout handler's reply plus what, if
// anything, the orchestrator should do next.
type Outcome struct {
	Reply       string
	OrderID     string // set only when a commit just succeeded
	CartCleared bool
}

type Handler struct {
	sessions session.Store
	clients  catalog.ClientRepository
	orders   catalog.OrderRepository
}

func NewHandler(sessions session.Store, clients catalog.ClientRepository, orders catalog.OrderRepository) *Handler {
	return &Handler{sessions: sessions, clients: clients, orders: orders}
}

// Start implements the none -> ask_returning transition, gated on a
// non-empty cart.
func (h *Handler) Start(ctx context.Context, chatID string) (*Outcome, error) {
	cart, err := h.sessions.GetCart(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if len(cart) == 0 {
		return &Outcome{Reply: "Your cart is empty — add something before checking out."}, nil
	}

	if err := h.sessions.SetCheckoutState(ctx, chatID, session.CheckoutAskReturning, session.CustomerDraft{}); err != nil {
		return nil, err
	}
	metrics.RecordCheckoutStart()
	return &Outcome{Reply: "Are you a returning customer? (yes/no)"}, nil
}

// HandleAnswer implements spec.md §4.7's state table for every state
// other than none.
func (h *Handler) HandleAnswer(ctx context.Context, chatID string, state session.CheckoutState, draft session.CustomerDraft, answer string) (*Outcome, error) {
	answer = strings.TrimSpace(answer)

	switch state {
	case session.CheckoutAskReturning:
		return h.handleAskReturning(ctx, chatID, draft, answer)
	case session.CheckoutAskEmailLookup:
		return h.handleAskEmailLookup(ctx, chatID, draft, answer)
	case session.CheckoutAskEmail:
		return h.handleAskEmail(ctx, chatID, draft, answer)
	case session.CheckoutAskName:
		return h.advanceOnNonEmpty(ctx, chatID, draft, answer, func(d *session.CustomerDraft) { d.Name = answer },
			session.CheckoutAskCompany, "What's your name?", "What company are you ordering for? (or \"none\")")
	case session.CheckoutAskCompany:
		return h.handleAskCompany(ctx, chatID, draft, answer)
	case session.CheckoutAskAddress:
		return h.advanceOnNonEmpty(ctx, chatID, draft, answer, func(d *session.CustomerDraft) { d.Address = answer },
			session.CheckoutAskPhone, "What's the shipping address?", "What's the best phone number to reach you?")
	case session.CheckoutAskPhone:
		return h.handleAskPhone(ctx, chatID, draft, answer)
	case session.CheckoutAskConfirm:
		return h.handleAskConfirm(ctx, chatID, draft, answer)
	default:
		return &Outcome{Reply: "Something went wrong, please try again."}, nil
	}
}

func (h *Handler) handleAskReturning(ctx context.Context, chatID string, draft session.CustomerDraft, answer string) (*Outcome, error) {
	switch normalizeYesNo(answer) {
	case yes:
		if err := h.sessions.SetCheckoutState(ctx, chatID, session.CheckoutAskEmailLookup, draft); err != nil {
			return nil, err
		}
		return &Outcome{Reply: "What email did you use before?"}, nil
	case no:
		if err := h.sessions.SetCheckoutState(ctx, chatID, session.CheckoutAskEmail, draft); err != nil {
			return nil, err
		}
		return &Outcome{Reply: "What's your email address?"}, nil
	default:
		return &Outcome{Reply: "Please answer yes or no — are you a returning customer?"}, nil
	}
}

func (h *Handler) handleAskEmailLookup(ctx context.Context, chatID string, draft session.CustomerDraft, answer string) (*Outcome, error) {
	if !emailPattern.MatchString(answer) {
		return &Outcome{Reply: "That doesn't look like a valid email, please try again."}, nil
	}

	existing, err := h.clients.GetByEmail(ctx, answer)
	if err != nil && !apperr.Is(err, apperr.ClassNotFound) {
		return nil, err
	}
	if existing != nil {
		draft = session.CustomerDraft{ClientID: existing.ID, Email: existing.Email, Name: existing.Name, Company: "", Address: existing.Address, Phone: existing.Phone}
		if err := h.sessions.SetCheckoutState(ctx, chatID, session.CheckoutAskConfirm, draft); err != nil {
			return nil, err
		}
		return &Outcome{Reply: confirmationPrompt(draft)}, nil
	}

	draft.Email = answer
	if err := h.sessions.SetCheckoutState(ctx, chatID, session.CheckoutAskEmail, draft); err != nil {
		return nil, err
	}
	return &Outcome{Reply: "I don't have that email on file — let's set you up as a new customer. What's your email address?"}, nil
}

func (h *Handler) handleAskEmail(ctx context.Context, chatID string, draft session.CustomerDraft, answer string) (*Outcome, error) {
	if !emailPattern.MatchString(answer) {
		return &Outcome{Reply: "That doesn't look like a valid email, please try again."}, nil
	}
	draft.Email = answer
	if err := h.sessions.SetCheckoutState(ctx, chatID, session.CheckoutAskName, draft); err != nil {
		return nil, err
	}
	return &Outcome{Reply: "What's your name?"}, nil
}

func (h *Handler) handleAskCompany(ctx context.Context, chatID string, draft session.CustomerDraft, answer string) (*Outcome, error) {
	if answer == "" {
		return &Outcome{Reply: "What company are you ordering for? (or \"none\")"}, nil
	}
	if strings.EqualFold(answer, "none") {
		draft.Company = ""
	} else {
		draft.Company = answer
	}
	if err := h.sessions.SetCheckoutState(ctx, chatID, session.CheckoutAskAddress, draft); err != nil {
		return nil, err
	}
	return &Outcome{Reply: "What's the shipping address?"}, nil
}

func (h *Handler) handleAskPhone(ctx context.Context, chatID string, draft session.CustomerDraft, answer string) (*Outcome, error) {
	if answer == "" {
		return &Outcome{Reply: "What's the best phone number to reach you?"}, nil
	}
	draft.Phone = answer
	if err := h.sessions.SetCheckoutState(ctx, chatID, session.CheckoutAskConfirm, draft); err != nil {
		return nil, err
	}
	return &Outcome{Reply: confirmationPrompt(draft)}, nil
}

func (h *Handler) handleAskConfirm(ctx context.Context, chatID string, draft session.CustomerDraft, answer string) (*Outcome, error) {
	switch normalizeConfirm(answer) {
	case confirmYes:
		return h.commit(ctx, chatID, draft)
	case confirmEdit:
		if err := h.sessions.SetCheckoutState(ctx, chatID, session.CheckoutAskEmail, draft); err != nil {
			return nil, err
		}
		return &Outcome{Reply: "Let's update your details — what's your email address?"}, nil
	case confirmNo:
		if err := h.sessions.ClearCheckoutState(ctx, chatID); err != nil {
			return nil, err
		}
		return &Outcome{Reply: "No problem, your cart is still here whenever you're ready."}, nil
	default:
		return &Outcome{Reply: "Please answer yes, edit, or no."}, nil
	}
}

// commit implements spec.md §4.7's seven-step commit procedure.
func (h *Handler) commit(ctx context.Context, chatID string, draft session.CustomerDraft) (*Outcome, error) {
	cart, err := h.sessions.GetCart(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if len(cart) == 0 {
		if err := h.sessions.ClearCheckoutState(ctx, chatID); err != nil {
			return nil, err
		}
		return &Outcome{Reply: "Your cart emptied out before we could finish — start again when you're ready."}, nil
	}

	client, err := h.clients.UpsertByEmail(ctx, catalog.Client{
		Name: draft.Name, Email: draft.Email, Phone: draft.Phone, Address: draft.Address,
	})
	if err != nil {
		return nil, err
	}

	items := make([]catalog.OrderItem, 0, len(cart))
	for sku, line := range cart {
		items = append(items, catalog.OrderItem{SKU: sku, Quantity: line.Quantity, UnitPrice: line.UnitPrice})
	}

	order := catalog.Order{
		ClientID: client.ID, ChatID: chatID, CustomerName: draft.Name, CustomerEmail: client.Email,
		Address: draft.Address, TotalAmount: catalog.Total(items), Status: catalog.OrderStatusPending, Items: items,
	}

	orderCtx, span := tracing.OrderSpan(ctx, "commit", chatID)
	orderID, err := h.orders.CommitOrder(orderCtx, order)
	span.End()
	if err != nil {
		// Cart and checkout state are preserved so the user can retry.
		return nil, err
	}

	if err := h.sessions.ClearCart(ctx, chatID); err != nil {
		return nil, err
	}
	metrics.CartItemsTotal.WithLabelValues(chatID).Set(0)
	if err := h.sessions.ClearCheckoutState(ctx, chatID); err != nil {
		return nil, err
	}

	metrics.RecordCheckoutCompletion()
	return &Outcome{Reply: "Order " + orderID + " confirmed! You'll receive an invoice by email shortly.", OrderID: orderID, CartCleared: true}, nil
}

func (h *Handler) advanceOnNonEmpty(ctx context.Context, chatID string, draft session.CustomerDraft, answer string, apply func(*session.CustomerDraft), next session.CheckoutState, retry, prompt string) (*Outcome, error) {
	if answer == "" {
		return &Outcome{Reply: retry}, nil
	}
	apply(&draft)
	if err := h.sessions.SetCheckoutState(ctx, chatID, next, draft); err != nil {
		return nil, err
	}
	return &Outcome{Reply: prompt}, nil
}

func confirmationPrompt(d session.CustomerDraft) string {
	company := d.Company
	if company == "" {
		company = "none"
	}
	return "Please confirm your order details:\n" +
		"Email: " + d.Email + "\nName: " + d.Name + "\nCompany: " + company +
		"\nAddress: " + d.Address + "\nPhone: " + d.Phone +
		"\n\nConfirm? (yes / edit / no)"
}

type yesNoAnswer int

const (
	unrecognizedYesNo yesNoAnswer = iota
	yes
	no
)

func normalizeYesNo(answer string) yesNoAnswer {
	lower := strings.ToLower(strings.TrimSpace(answer))
	switch lower {
	case "yes", "y", "sí", "si":
		return yes
	case "no", "n":
		return no
	default:
		return unrecognizedYesNo
	}
}

type confirmAnswer int

const (
	unrecognizedConfirm confirmAnswer = iota
	confirmYes
	confirmEdit
	confirmNo
)

func normalizeConfirm(answer string) confirmAnswer {
	lower := strings.ToLower(strings.TrimSpace(answer))
	switch lower {
	case "yes", "y", "sí", "si":
		return confirmYes
	case "edit", "editar":
		return confirmEdit
	case "no", "n":
		return confirmNo
	default:
		return unrecognizedConfirm
	}
}
