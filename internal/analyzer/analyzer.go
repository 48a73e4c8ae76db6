// Package analyzer implements AIAnalyzer (spec.md §4.4): it turns a
// chat message plus recent-context window into a validated
// (intent, entities) tuple, short-circuiting slash commands and
// falling back to keyword fingerprinting when the LLM is unavailable
// or returns malformed output.
package analyzer

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"core/internal/llm"
)

// Intent is the closed set of spec.md §4.3.
type Intent string

const (
	IntentProductSearch     Intent = "product_search"
	IntentProductDetail     Intent = "product_detail"
	IntentAddToCart         Intent = "add_to_cart"
	IntentUpdateQuantity    Intent = "update_quantity"
	IntentRemoveFromCart    Intent = "remove_from_cart"
	IntentViewCart          Intent = "view_cart"
	IntentClearCart         Intent = "clear_cart"
	IntentCheckoutStart     Intent = "checkout_start"
	IntentCheckoutAnswer    Intent = "checkout_answer"
	IntentTechnicalQuestion Intent = "technical_question"
	IntentGreeting          Intent = "greeting"
	IntentHelp              Intent = "help"
	IntentUnknown           Intent = "unknown"
)

var recognizedIntents = map[Intent]bool{
	IntentProductSearch: true, IntentProductDetail: true, IntentAddToCart: true,
	IntentUpdateQuantity: true, IntentRemoveFromCart: true, IntentViewCart: true,
	IntentClearCart: true, IntentCheckoutStart: true, IntentCheckoutAnswer: true,
	IntentTechnicalQuestion: true, IntentGreeting: true, IntentHelp: true, IntentUnknown: true,
}

// Result is the validated, normalized output of Analyze.
type Result struct {
	Intent     Intent
	SKU        string
	Position   int // 1-based; 0 means unset
	Quantity   int // 0 means unset
	Keywords   string
	Value      string // free-form checkout_answer payload
	Confidence float64
}

// Analyzer is the contract internal/orchestrator depends on.
type Analyzer interface {
	Analyze(ctx context.Context, text string, recent []string) (*Result, error)
}

type service struct {
	client       llm.Client
	systemPrompt string
}

func New(client llm.Client) Analyzer {
	return &service{client: client, systemPrompt: buildSystemPrompt()}
}

func buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are the intent classifier for a B2B hardware wholesale sales assistant.\n")
	b.WriteString("Classify the latest user message into exactly one intent from this closed set:\n")
	b.WriteString("product_search, product_detail, add_to_cart, update_quantity, remove_from_cart, ")
	b.WriteString("view_cart, clear_cart, checkout_start, checkout_answer, technical_question, greeting, help, unknown.\n")
	b.WriteString("Respond with JSON only: {\"intent\": string, \"entities\": object, \"confidence\": number between 0 and 1}.\n")
	b.WriteString("Entity fields: product_search uses keywords (string); product_detail/add_to_cart/update_quantity/remove_from_cart ")
	b.WriteString("use sku (string) or position (integer, 1-based), plus optional quantity (integer > 0); ")
	b.WriteString("checkout_answer uses value (free-form string).\n")
	return b.String()
}

// Analyze implements spec.md §4.4's algorithm.
func (s *service) Analyze(ctx context.Context, text string, recent []string) (*Result, error) {
	if result, ok := matchSlashCommand(text); ok {
		return result, nil
	}

	messages := []llm.Message{{Role: "user", Content: buildUserTurn(text, recent)}}

	classification, err := llm.ClassifyWithRetry(ctx, s.client, messages, s.systemPrompt)
	if err != nil {
		log.Warn().Err(err).Msg("analyzer: classify transport failure, falling back to keyword fingerprinting")
		return fingerprint(text), nil
	}

	result, err := validate(classification)
	if err != nil {
		log.Warn().Err(err).Msg("analyzer: classify schema failure, falling back to keyword fingerprinting")
		return fingerprint(text), nil
	}
	return result, nil
}

func buildUserTurn(text string, recent []string) string {
	if len(recent) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\nRecently shown products (1-based position -> SKU): ")
	for i, sku := range recent {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(i+1) + "=" + sku)
	}
	return b.String()
}

func validate(c *llm.Classification) (*Result, error) {
	intent := Intent(c.Intent)
	if !recognizedIntents[intent] {
		return nil, errUnrecognizedIntent
	}

	result := &Result{Intent: intent, Confidence: c.Confidence}
	if c.Entities == nil {
		return normalize(result), nil
	}

	if v, ok := c.Entities["sku"].(string); ok {
		result.SKU = v
	}
	if v, ok := numberField(c.Entities["position"]); ok {
		result.Position = v
	}
	if v, ok := numberField(c.Entities["quantity"]); ok {
		result.Quantity = v
	}
	if v, ok := c.Entities["keywords"].(string); ok {
		result.Keywords = v
	}
	if v, ok := c.Entities["value"].(string); ok {
		result.Value = v
	}
	return normalize(result), nil
}

func numberField(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// normalize applies spec.md §4.4 step 5: coerce numeric fields, clamp
// quantity >= 1, uppercase SKU. Tie-break: sku wins over position.
func normalize(r *Result) *Result {
	r.SKU = strings.ToUpper(strings.TrimSpace(r.SKU))
	if r.Quantity < 0 {
		r.Quantity = 0
	}
	if r.Quantity == 0 && needsQuantity(r.Intent) {
		r.Quantity = 1
	}
	if r.SKU != "" {
		r.Position = 0
	}
	return r
}

func needsQuantity(intent Intent) bool {
	return intent == IntentAddToCart || intent == IntentUpdateQuantity
}

type analyzerError string

func (e analyzerError) Error() string { return string(e) }

const errUnrecognizedIntent = analyzerError("analyzer: unrecognized intent in classification response")

var skuPattern = regexp.MustCompile(`^[A-Za-z]{2,6}\d{3,8}$`)

// fingerprint is the regex-based keyword fallback of spec.md §4.3.
func fingerprint(text string) *Result {
	trimmed := strings.TrimSpace(text)

	if result, ok := matchSlashCommand(trimmed); ok {
		return result
	}

	if skuPattern.MatchString(strings.ToUpper(trimmed)) {
		return &Result{Intent: IntentProductDetail, SKU: strings.ToUpper(trimmed), Confidence: 1}
	}

	lower := strings.ToLower(trimmed)
	switch {
	case trimmed == "":
		return &Result{Intent: IntentUnknown, Confidence: 0}
	case containsAny(lower, "hello", "hi", "hola", "buenas"):
		return &Result{Intent: IntentGreeting, Confidence: 0.6}
	case containsAny(lower, "help", "ayuda"):
		return &Result{Intent: IntentHelp, Confidence: 0.6}
	case containsAny(lower, "cart", "carrito"):
		return &Result{Intent: IntentViewCart, Confidence: 0.5}
	case containsAny(lower, "checkout", "comprar", "finalizar"):
		return &Result{Intent: IntentCheckoutStart, Confidence: 0.5}
	default:
		return &Result{Intent: IntentProductSearch, Keywords: trimmed, Confidence: 0.3}
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

var slashCommandPattern = regexp.MustCompile(`^/(\S+)\s*(.*)$`)

// matchSlashCommand implements spec.md §4.4 step 1 and §6's stable
// slash-command grammar.
func matchSlashCommand(text string) (*Result, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return nil, false
	}
	groups := slashCommandPattern.FindStringSubmatch(trimmed)
	if groups == nil {
		return nil, false
	}
	command, rest := strings.ToLower(groups[1]), strings.Fields(groups[2])

	switch command {
	case "start":
		return &Result{Intent: IntentGreeting, Confidence: 1}, true
	case "help":
		return &Result{Intent: IntentHelp, Confidence: 1}, true
	case "ver_carrito":
		return &Result{Intent: IntentViewCart, Confidence: 1}, true
	case "vaciar_carrito":
		return &Result{Intent: IntentClearCart, Confidence: 1}, true
	case "finalizar_compra":
		return &Result{Intent: IntentCheckoutStart, Confidence: 1}, true
	case "agregar":
		if len(rest) == 0 {
			return &Result{Intent: IntentUnknown, Confidence: 1}, true
		}
		qty := 1
		if len(rest) > 1 {
			if parsed, err := strconv.Atoi(rest[1]); err == nil && parsed > 0 {
				qty = parsed
			}
		}
		return normalize(&Result{Intent: IntentAddToCart, SKU: rest[0], Quantity: qty, Confidence: 1}), true
	case "eliminar":
		if len(rest) == 0 {
			return &Result{Intent: IntentUnknown, Confidence: 1}, true
		}
		return normalize(&Result{Intent: IntentRemoveFromCart, SKU: rest[0], Confidence: 1}), true
	default:
		return nil, false
	}
}
