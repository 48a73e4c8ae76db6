// Package orchestrator implements spec.md §4.8: it receives webhook
// updates, dispatches by intent to the product/cart/checkout
// handlers, manages in-progress checkout interruption, and composes
// the outbound reply.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"core/internal/analytics"
	"core/internal/analyzer"
	"core/internal/apperr"
	"core/internal/cart"
	"core/internal/checkout"
	"core/internal/invoice"
	"core/internal/logger"
	"core/internal/metrics"
	"core/internal/product"
	"core/internal/session"
	"core/internal/tracing"
	"core/internal/transport/chat"
)

// interruptingIntents are the intents that, mid-checkout, divert to
// their own handler rather than being treated as a checkout answer
// (spec.md §4.7's interruption policy).
var interruptingIntents = map[analyzer.Intent]bool{
	analyzer.IntentProductSearch:     true,
	analyzer.IntentProductDetail:     true,
	analyzer.IntentTechnicalQuestion: true,
	analyzer.IntentViewCart:          true,
}

const genericErrorReply = "Something went wrong, please try again."

// Orchestrator is constructed once and reused across requests; its
// keyedLock is the only per-request mutable state.
type Orchestrator struct {
	sessions  session.Store
	analyzer  analyzer.Analyzer
	products  *product.Handler
	carts     *cart.Handler
	checkouts *checkout.Handler
	invoices  invoice.Dispatcher
	recorder  analytics.Recorder
	locks     *keyedLock
}

func New(sessions session.Store, az analyzer.Analyzer, products *product.Handler, carts *cart.Handler, checkouts *checkout.Handler, invoices invoice.Dispatcher, recorder analytics.Recorder) *Orchestrator {
	if recorder == nil {
		recorder = analytics.NoOpRecorder{}
	}
	return &Orchestrator{
		sessions: sessions, analyzer: az, products: products, carts: carts,
		checkouts: checkouts, invoices: invoices, recorder: recorder, locks: newKeyedLock(),
	}
}

// Handle implements spec.md §4.8's six-step algorithm.
func (o *Orchestrator) Handle(ctx context.Context, update chat.Update) (reply string) {
	text := update.Text
	if update.CallbackData != "" {
		text = translateCallback(update.CallbackData)
	}

	o.locks.withLock(update.ChatID, func() {
		reply = o.handleLocked(ctx, update.ChatID, update.UpdateID, text)
	})
	return reply
}

func (o *Orchestrator) handleLocked(ctx context.Context, chatID, updateID, text string) string {
	if updateID != "" {
		unseen, err := o.sessions.MarkUpdateSeen(ctx, updateID)
		if err != nil {
			log.Error().Err(err).Str("chat_id", chatID).Str("update_id", updateID).Msg("orchestrator: idempotency check failed")
			return genericErrorReply
		}
		if !unseen {
			return ""
		}
	}

	convCtx, err := o.sessions.GetContext(ctx, chatID)
	if err != nil {
		log.Error().Err(err).Str("chat_id", chatID).Str("update_id", updateID).Msg("orchestrator: loading context failed")
		return genericErrorReply
	}

	start := time.Now()
	result, err := o.analyzer.Analyze(ctx, text, convCtx.RecentProducts)
	if err != nil {
		log.Error().Err(err).Str("chat_id", chatID).Str("update_id", updateID).Msg("orchestrator: analyze failed")
		return genericErrorReply
	}
	metrics.RecordChatIntent(string(result.Intent))
	defer func() {
		duration := time.Since(start)
		logger.ChatUpdate(chatID, string(result.Intent), duration)
		o.recorder.RecordInteraction(ctx, analytics.InteractionEvent{
			ChatID:       chatID,
			Intent:       string(result.Intent),
			Confidence:   result.Confidence,
			ResponseTime: duration,
		})
	}()

	if convCtx.CheckoutState != session.CheckoutNone && !interruptingIntents[result.Intent] {
		return o.dispatchCheckoutAnswer(ctx, chatID, convCtx, text)
	}

	if convCtx.CheckoutState != session.CheckoutNone && interruptingIntents[result.Intent] {
		reply := o.dispatch(ctx, chatID, convCtx, result)
		if convCtx.PendingPrompt != "" {
			reply += "\n\nWe'll continue with checkout — your pending question was: " + convCtx.PendingPrompt
		}
		return reply
	}

	return o.dispatch(ctx, chatID, convCtx, result)
}

func (o *Orchestrator) dispatchCheckoutAnswer(ctx context.Context, chatID string, convCtx session.Context, text string) string {
	outcome, err := o.checkouts.HandleAnswer(ctx, chatID, convCtx.CheckoutState, convCtx.Draft, text)
	if err != nil {
		return o.logAndGenericReply(ctx, chatID, "checkout_answer", err)
	}
	if outcome.OrderID != "" && o.invoices != nil {
		o.invoices.Enqueue(outcome.OrderID)
	}
	o.rememberPendingPrompt(ctx, chatID, outcome)
	return outcome.Reply
}

// rememberPendingPrompt persists the checkout handler's latest
// question so an interrupting product/cart message can remind the
// user what it was (spec.md §4.8's interruption policy). It is a
// no-op once checkout has ended (commit or abandon already cleared
// checkout_state).
func (o *Orchestrator) rememberPendingPrompt(ctx context.Context, chatID string, outcome *checkout.Outcome) {
	if outcome.OrderID != "" || outcome.CartCleared {
		return
	}
	convCtx, err := o.sessions.GetContext(ctx, chatID)
	if err != nil || convCtx.CheckoutState == session.CheckoutNone {
		return
	}
	if err := o.sessions.SetPendingPrompt(ctx, chatID, outcome.Reply); err != nil {
		log.Warn().Err(err).Str("chat_id", chatID).Msg("orchestrator: set pending prompt failed")
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, chatID string, convCtx session.Context, result *analyzer.Result) string {
	if result.Confidence < 0.5 && len(result.Keywords) < 12 && result.Intent == analyzer.IntentProductSearch {
		return "Could you tell me a bit more about what you're looking for?"
	}

	switch result.Intent {
	case analyzer.IntentGreeting:
		return "Hi! I can help you find hardware products, manage your cart, and check out. Try \"/help\" for commands."
	case analyzer.IntentHelp:
		return helpText

	case analyzer.IntentProductSearch:
		return o.handleSearch(ctx, chatID, result.Keywords)

	case analyzer.IntentProductDetail:
		return o.handleDetail(ctx, chatID, convCtx, result)

	case analyzer.IntentTechnicalQuestion:
		return o.handleTechnicalQuestion(ctx, chatID, convCtx, result)

	case analyzer.IntentAddToCart:
		return o.handleCartMutation(ctx, chatID, convCtx, result, o.carts.Add)

	case analyzer.IntentUpdateQuantity:
		return o.handleCartMutation(ctx, chatID, convCtx, result, o.carts.Update)

	case analyzer.IntentRemoveFromCart:
		return o.handleCartMutation(ctx, chatID, convCtx, result, o.carts.Remove)

	case analyzer.IntentViewCart:
		return o.handleViewCart(ctx, chatID)

	case analyzer.IntentClearCart:
		if err := o.carts.Clear(ctx, chatID); err != nil {
			return o.logAndGenericReply(ctx, chatID, "clear_cart", err)
		}
		return "Your cart is empty now."

	case analyzer.IntentCheckoutStart:
		outcome, err := o.checkouts.Start(ctx, chatID)
		if err != nil {
			return o.logAndGenericReply(ctx, chatID, "checkout_start", err)
		}
		o.rememberPendingPrompt(ctx, chatID, outcome)
		return outcome.Reply

	default:
		return "I'm not sure how to help with that yet. Try \"/help\" for what I can do."
	}
}

func (o *Orchestrator) handleSearch(ctx context.Context, chatID, keywords string) string {
	list, err := o.products.Search(ctx, keywords)
	if err != nil {
		return o.logAndGenericReply(ctx, chatID, "product_search", err)
	}
	if list.NoMatches {
		list, err = o.products.RelatedFallback(ctx, keywords)
		if err != nil {
			return o.logAndGenericReply(ctx, chatID, "product_search_fallback", err)
		}
	}
	if list.NoMatches {
		return "No matches — try rephrasing your search."
	}
	if err := o.sessions.SetRecentProducts(ctx, chatID, list.AllSKUs); err != nil {
		return o.logAndGenericReply(ctx, chatID, "set_recent_products", err)
	}
	return formatShownList(list)
}

func (o *Orchestrator) handleDetail(ctx context.Context, chatID string, convCtx session.Context, result *analyzer.Result) string {
	detail, err := o.products.Detail(ctx, result.SKU, result.Position, convCtx.RecentProducts)
	if err != nil {
		return o.positionalErrorOrGeneric(ctx, chatID, "product_detail", err)
	}
	return formatDetail(detail)
}

func (o *Orchestrator) handleTechnicalQuestion(ctx context.Context, chatID string, convCtx session.Context, result *analyzer.Result) string {
	answer, err := o.products.AnswerTechnical(ctx, result.SKU, result.Position, convCtx.RecentProducts, result.Value)
	if err != nil {
		return o.positionalErrorOrGeneric(ctx, chatID, "technical_question", err)
	}
	return answer
}

type cartMutation func(ctx context.Context, chatID, sku string, position, qty int, recent []string) (session.Cart, error)

func (o *Orchestrator) handleCartMutation(ctx context.Context, chatID string, convCtx session.Context, result *analyzer.Result, mutate cartMutation) string {
	_, err := mutate(ctx, chatID, result.SKU, result.Position, result.Quantity, convCtx.RecentProducts)
	if err != nil {
		return o.positionalErrorOrGeneric(ctx, chatID, "cart_mutation", err)
	}
	view, err := o.carts.View(ctx, chatID)
	if err != nil {
		return o.logAndGenericReply(ctx, chatID, "cart_mutation_view", err)
	}
	return formatCartView(view)
}

func (o *Orchestrator) handleViewCart(ctx context.Context, chatID string) string {
	view, err := o.carts.View(ctx, chatID)
	if err != nil {
		return o.logAndGenericReply(ctx, chatID, "view_cart", err)
	}
	return formatCartView(view)
}

// positionalErrorOrGeneric surfaces the out-of-range message from
// product.ResolveSKU verbatim, per spec.md §4.4's tie-break rule, and
// otherwise falls back to the generic reply.
func (o *Orchestrator) positionalErrorOrGeneric(ctx context.Context, chatID, op string, err error) string {
	if apperr.Is(err, apperr.ClassNotFound) {
		return apperr.UserMessage(err)
	}
	if strings.Contains(err.Error(), "I don't see item") && apperr.ClassOf(err) == "" {
		return err.Error()
	}
	return o.logAndGenericReply(ctx, chatID, op, err)
}

func (o *Orchestrator) logAndGenericReply(ctx context.Context, chatID, op string, err error) string {
	tracing.RecordError(ctx, err)
	log.Error().Err(err).Str("chat_id", chatID).Str("op", op).Msg("orchestrator: handler error")
	if msg := apperr.UserMessage(err); msg != "" {
		return msg
	}
	return genericErrorReply
}

const helpText = "Commands:\n" +
	"/agregar <SKU> [qty] — add to cart\n" +
	"/eliminar <SKU> — remove from cart\n" +
	"/ver_carrito — view cart\n" +
	"/vaciar_carrito — empty cart\n" +
	"/finalizar_compra — start checkout"

// translateCallback converts an inline-button payload ("detail:<SKU>"
// or "add:<SKU>:<qty>") into the slash-command grammar the analyzer
// already understands, per spec.md §6.
func translateCallback(data string) string {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) < 2 {
		return data
	}
	switch parts[0] {
	case "detail":
		return parts[1]
	case "add":
		qty := "1"
		if len(parts) == 3 {
			qty = parts[2]
		}
		return "/agregar " + parts[1] + " " + qty
	default:
		return data
	}
}

func formatShownList(list *product.ShownList) string {
	var b strings.Builder
	for _, item := range list.Items {
		fmt.Fprintf(&b, "%d. %s (%s) — $%s\n%s\n\n", item.Position, item.Name, item.Brand, item.Price, item.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatDetail(d *product.Detail) string {
	var b strings.Builder
	b.WriteString(d.Name + "\n" + d.Description + "\n")
	for _, line := range d.SpecLines {
		b.WriteString("• " + line + "\n")
	}
	b.WriteString("Price: $" + d.Price)
	return b.String()
}

func formatCartView(v *cart.View) string {
	if v.Empty {
		return "Your cart is empty."
	}
	var b strings.Builder
	for _, line := range v.Lines {
		fmt.Fprintf(&b, "%s x%d — $%s\n", line.Name, line.Quantity, line.Subtotal)
	}
	if v.MoreCount > 0 {
		fmt.Fprintf(&b, "…and %d more\n", v.MoreCount)
	}
	fmt.Fprintf(&b, "Total: $%s", v.Total)
	return b.String()
}
