package product

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"core/internal/catalog"
	"core/internal/llm"
	"core/internal/vectorindex"
)

type stubIndex struct {
	results []vectorindex.Result
}

func (s *stubIndex) Search(ctx context.Context, vector []float32, limit int, threshold float64) ([]vectorindex.Result, error) {
	var above []vectorindex.Result
	for _, r := range s.results {
		if r.Score >= threshold {
			above = append(above, r)
		}
	}
	if len(above) > limit {
		above = above[:limit]
	}
	return above, nil
}
func (s *stubIndex) Upsert(ctx context.Context, sku string, vector []float32) error { return nil }
func (s *stubIndex) EnsureCollection(ctx context.Context) error                     { return nil }

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) { return []float32{0.1}, nil }

type stubLLM struct{ answer string }

func (s *stubLLM) Classify(ctx context.Context, messages []llm.Message, systemPrompt string) (*llm.Classification, error) {
	return nil, nil
}
func (s *stubLLM) Embed(ctx context.Context, text string) ([]float32, error) { return nil, nil }
func (s *stubLLM) Answer(ctx context.Context, systemPrompt, question string) (string, error) {
	return s.answer, nil
}

func seededStore() *catalog.MemoryStore {
	store := catalog.NewMemoryStore()
	store.SeedProduct(catalog.Product{
		SKU: "SKU00010", Name: "Cordless Drill", Brand: "Bosch",
		Price: decimal.NewFromFloat(89.99), Description: "A compact cordless drill for job sites.",
		Specifications: map[string]string{"voltage": "18V", "weight": "1.5kg"},
		ImageURLs:      []string{"https://example.com/drill.jpg"},
	})
	store.SeedProduct(catalog.Product{SKU: "SKU00020", Name: "Impact Driver", Brand: "Makita", Price: decimal.NewFromFloat(120)})
	return store
}

func TestSearchReturnsFormattedShownList(t *testing.T) {
	store := seededStore()
	index := &stubIndex{results: []vectorindex.Result{{SKU: "SKU00010", Score: 0.9}, {SKU: "SKU00020", Score: 0.8}}}
	handler := NewHandler(store, index, stubEmbedder{}, &stubLLM{})

	list, err := handler.Search(context.Background(), "drill")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if list.NoMatches {
		t.Fatalf("expected matches")
	}
	if len(list.Items) != 2 || list.Items[0].Position != 1 || list.Items[0].SKU != "SKU00010" {
		t.Fatalf("unexpected items: %+v", list.Items)
	}
	if len(list.AllSKUs) != 2 {
		t.Fatalf("expected recent_products candidate list to carry all hits, got %v", list.AllSKUs)
	}
}

func TestSearchBelowThresholdYieldsNoMatches(t *testing.T) {
	store := seededStore()
	index := &stubIndex{results: []vectorindex.Result{{SKU: "SKU00010", Score: 0.3}}}
	handler := NewHandler(store, index, stubEmbedder{}, &stubLLM{})

	list, err := handler.Search(context.Background(), "drill")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !list.NoMatches {
		t.Fatalf("expected a below-threshold search to report no matches")
	}
}

func TestRelatedFallbackUsesLoweredThreshold(t *testing.T) {
	store := seededStore()
	index := &stubIndex{results: []vectorindex.Result{{SKU: "SKU00010", Score: 0.5}}}
	handler := NewHandler(store, index, stubEmbedder{}, &stubLLM{})

	list, err := handler.RelatedFallback(context.Background(), "drill")
	if err != nil {
		t.Fatalf("RelatedFallback: %v", err)
	}
	if list.NoMatches || len(list.Items) != 1 {
		t.Fatalf("expected the lowered threshold to surface a hit, got %+v", list)
	}
}

func TestDetailResolvesByPosition(t *testing.T) {
	store := seededStore()
	handler := NewHandler(store, &stubIndex{}, stubEmbedder{}, &stubLLM{})

	detail, err := handler.Detail(context.Background(), "", 2, []string{"SKU00010", "SKU00020"})
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if detail.Name != "Impact Driver" {
		t.Fatalf("expected position 2 to resolve to SKU00020, got %+v", detail)
	}
}

func TestDetailPositionOutOfRange(t *testing.T) {
	store := seededStore()
	handler := NewHandler(store, &stubIndex{}, stubEmbedder{}, &stubLLM{})

	_, err := handler.Detail(context.Background(), "", 5, []string{"SKU00010"})
	if err == nil {
		t.Fatalf("expected an error for an out-of-range position")
	}
}

func TestAnswerTechnicalReturnsGroundedAnswer(t *testing.T) {
	store := seededStore()
	handler := NewHandler(store, &stubIndex{}, stubEmbedder{}, &stubLLM{answer: "18 volts"})

	answer, err := handler.AnswerTechnical(context.Background(), "SKU00010", 0, nil, "What voltage does it run at?")
	if err != nil {
		t.Fatalf("AnswerTechnical: %v", err)
	}
	if answer != "18 volts" {
		t.Fatalf("unexpected answer: %q", answer)
	}
}
