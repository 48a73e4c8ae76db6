// Package product implements ProductHandler (spec.md §4.5): semantic
// search over the vector index, detail resolution by SKU or list
// position, the low-hit related-products fallback, and a
// catalog-grounded technical Q&A path.
package product

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"core/internal/apperr"
	"core/internal/catalog"
	"core/internal/embedding"
	"core/internal/llm"
	"core/internal/tracing"
	"core/internal/vectorindex"
)

const (
	kMain      = 5
	kShown     = 3
	threshold  = 0.6
	fallbackK  = 5
	fallbackTh = 0.45
)

// ShownItem is one line in a ShownList.
type ShownItem struct {
	Position    int
	SKU         string
	Name        string
	Brand       string
	Price       string
	Description string
}

// ShownList is the formatted result of search/related_fallback.
type ShownList struct {
	Items       []ShownItem
	NoMatches   bool
	AllSKUs     []string // up to kMain, stored as recent_products
}

// Detail is the formatted result of detail().
type Detail struct {
	Name        string
	Description string
	SpecLines   []string
	Price       string
	ImageURL    string
}

type Handler struct {
	products  catalog.ProductRepository
	index     vectorindex.Index
	embedder  embedding.Embedder
	llmClient llm.Client
	tracer    *tracing.Tracer
}

func NewHandler(products catalog.ProductRepository, index vectorindex.Index, embedder embedding.Embedder, llmClient llm.Client) *Handler {
	return &Handler{products: products, index: index, embedder: embedder, llmClient: llmClient}
}

// WithTracer attaches an OpenTelemetry tracer for search/LLM spans;
// the handler works unconfigured, with spans reduced to the
// context's existing span (or none).
func (h *Handler) WithTracer(tracer *tracing.Tracer) *Handler {
	h.tracer = tracer
	return h
}

// Search implements spec.md §4.5's search operation.
func (h *Handler) Search(ctx context.Context, keywords string) (*ShownList, error) {
	return h.search(ctx, keywords, kMain, threshold)
}

// RelatedFallback implements the zero-hit fallback: lowered threshold,
// the same K as the main search, and a sentinel when still empty.
func (h *Handler) RelatedFallback(ctx context.Context, keywords string) (*ShownList, error) {
	return h.search(ctx, keywords, fallbackK, fallbackTh)
}

func (h *Handler) search(ctx context.Context, keywords string, limit int, scoreThreshold float64) (*ShownList, error) {
	vector, err := h.embedder.Embed(ctx, keywords)
	if err != nil {
		return nil, apperr.TransientUpstream("embedding the search query failed", err)
	}

	searchCtx, span := h.tracer.SearchSpan(ctx, "similarity_search", keywords)
	hits, err := h.index.Search(searchCtx, vector, limit, scoreThreshold)
	span.End()
	if err != nil {
		return nil, apperr.TransientUpstream("vector search failed", err)
	}
	if len(hits) == 0 {
		return &ShownList{NoMatches: true}, nil
	}

	skus := make([]string, len(hits))
	for i, hit := range hits {
		skus[i] = hit.SKU
	}

	products, err := h.products.GetBySKUs(ctx, skus)
	if err != nil {
		return nil, apperr.TransientUpstream("loading matched products failed", err)
	}
	bySKU := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		bySKU[p.SKU] = p
	}

	list := &ShownList{AllSKUs: skus}
	shown := 0
	for i, sku := range skus {
		p, ok := bySKU[sku]
		if !ok {
			continue
		}
		if shown >= kShown {
			continue
		}
		list.Items = append(list.Items, ShownItem{
			Position:    i + 1,
			SKU:         p.SKU,
			Name:        p.Name,
			Brand:       p.Brand,
			Price:       p.Price.StringFixed(2),
			Description: truncate(p.Description, 140),
		})
		shown++
	}
	if len(list.Items) == 0 {
		list.NoMatches = true
	}
	return list, nil
}

// Detail implements spec.md §4.5's detail operation. position is
// 1-based against recent; pass 0 when resolving by sku directly.
func (h *Handler) Detail(ctx context.Context, sku string, position int, recent []string) (*Detail, error) {
	resolved, err := ResolveSKU(sku, position, recent)
	if err != nil {
		return nil, err
	}

	p, err := h.products.GetBySKU(ctx, resolved)
	if err != nil {
		return nil, apperr.TransientUpstream("loading product detail failed", err)
	}
	if p == nil {
		return nil, apperr.NotFound(fmt.Sprintf("no product with SKU %s", resolved), nil)
	}

	specLines := make([]string, 0, len(p.Specifications))
	keys := make([]string, 0, len(p.Specifications))
	for k := range p.Specifications {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		specLines = append(specLines, fmt.Sprintf("%s: %s", k, p.Specifications[k]))
	}

	var imageURL string
	if len(p.ImageURLs) > 0 {
		imageURL = p.ImageURLs[0]
	}

	return &Detail{
		Name:        p.Name,
		Description: p.Description,
		SpecLines:   specLines,
		Price:       p.Price.StringFixed(2),
		ImageURL:    imageURL,
	}, nil
}

const uncertainAnswer = "I can't confirm from the datasheet, please contact sales."

// AnswerTechnical implements spec.md §4.5's grounded Q&A operation.
func (h *Handler) AnswerTechnical(ctx context.Context, sku string, position int, recent []string, question string) (string, error) {
	resolved, err := ResolveSKU(sku, position, recent)
	if err != nil {
		return "", err
	}

	p, err := h.products.GetBySKU(ctx, resolved)
	if err != nil {
		return "", apperr.TransientUpstream("loading product for technical answer failed", err)
	}
	if p == nil {
		return "", apperr.NotFound(fmt.Sprintf("no product with SKU %s", resolved), nil)
	}

	var specLines []string
	for k, v := range p.Specifications {
		specLines = append(specLines, fmt.Sprintf("%s: %s", k, v))
	}

	systemPrompt := "Answer the question using only the product information below. " +
		"If the information does not answer the question, respond exactly: \"" + uncertainAnswer + "\"\n\n" +
		"Product: " + p.Name + "\nDescription: " + p.Description + "\nSpecifications:\n" + strings.Join(specLines, "\n")

	answerCtx, span := h.tracer.ExternalSpan(ctx, "llm", "answer_technical")
	answer, err := h.llmClient.Answer(answerCtx, systemPrompt, question)
	span.End()
	if err != nil {
		return "", apperr.TransientUpstream("technical answer generation failed", err)
	}
	return answer, nil
}

// ResolveSKU applies spec.md §4.5's position resolution rule, shared
// by detail, add_to_cart, update_quantity, and remove_from_cart.
func ResolveSKU(sku string, position int, recent []string) (string, error) {
	if sku != "" {
		return sku, nil
	}
	if position <= 0 {
		return "", apperr.InvariantViolation("neither sku nor position was provided", nil)
	}
	if position > len(recent) {
		return "", fmt.Errorf("I don't see item %d in the last list", position)
	}
	return recent[position-1], nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
