package analyzer

import (
	"context"
	"testing"

	"core/internal/llm"
)

type scriptedClient struct {
	classification *llm.Classification
	err            error
}

func (s *scriptedClient) Classify(ctx context.Context, messages []llm.Message, systemPrompt string) (*llm.Classification, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.classification, nil
}
func (s *scriptedClient) Embed(ctx context.Context, text string) ([]float32, error) { return nil, nil }
func (s *scriptedClient) Answer(ctx context.Context, systemPrompt, question string) (string, error) {
	return "", nil
}

func TestAnalyzeSlashCommandShortCircuitsLLM(t *testing.T) {
	client := &scriptedClient{err: errShouldNotBeCalled}
	a := New(client)

	result, err := a.Analyze(context.Background(), "/agregar sku00010 3", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Intent != IntentAddToCart || result.SKU != "SKU00010" || result.Quantity != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

var errShouldNotBeCalled = analyzerError("LLM should not be invoked for a slash command")

func TestAnalyzeValidatesAndNormalizesLLMOutput(t *testing.T) {
	client := &scriptedClient{classification: &llm.Classification{
		Intent:     "add_to_cart",
		Entities:   map[string]interface{}{"sku": "sku00020", "quantity": float64(0)},
		Confidence: 0.8,
	}}
	a := New(client)

	result, err := a.Analyze(context.Background(), "add the drill", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.SKU != "SKU00020" {
		t.Fatalf("expected sku to be uppercased, got %q", result.SKU)
	}
	if result.Quantity != 1 {
		t.Fatalf("expected quantity clamped to 1, got %d", result.Quantity)
	}
}

func TestAnalyzeSKUWinsOverPosition(t *testing.T) {
	client := &scriptedClient{classification: &llm.Classification{
		Intent:     "product_detail",
		Entities:   map[string]interface{}{"sku": "SKU00030", "position": float64(2)},
		Confidence: 0.9,
	}}
	a := New(client)

	result, err := a.Analyze(context.Background(), "tell me about that one", []string{"SKU00010", "SKU00020"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.SKU != "SKU00030" || result.Position != 0 {
		t.Fatalf("expected sku to win the tie-break, got %+v", result)
	}
}

func TestAnalyzeFallsBackOnTransportError(t *testing.T) {
	client := &scriptedClient{err: errShouldNotBeCalled}
	a := New(client)

	result, err := a.Analyze(context.Background(), "do you have any drills", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Intent != IntentProductSearch || result.Keywords == "" {
		t.Fatalf("expected keyword fallback, got %+v", result)
	}
}

func TestAnalyzeFallsBackOnUnrecognizedIntent(t *testing.T) {
	client := &scriptedClient{classification: &llm.Classification{Intent: "do_something_weird", Confidence: 0.9}}
	a := New(client)

	result, err := a.Analyze(context.Background(), "hello there", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Intent != IntentGreeting {
		t.Fatalf("expected schema-failure fallback to fingerprint the message, got %+v", result)
	}
}

func TestFingerprintRecognizesBareSKU(t *testing.T) {
	result := fingerprint("sku00099")
	if result.Intent != IntentProductDetail || result.SKU != "SKU00099" {
		t.Fatalf("expected a bare SKU string to resolve to product_detail, got %+v", result)
	}
}
