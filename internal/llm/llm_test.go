package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIClientClassify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{
					"content": `{"intent":"product_search","entities":{"keywords":"drill"},"confidence":0.9}`,
				}},
			},
		})
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: server.URL})
	result, err := client.Classify(context.Background(), []Message{{Role: "user", Content: "I need a drill"}}, "system prompt")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.Intent != "product_search" || result.Confidence != 0.9 {
		t.Fatalf("unexpected classification: %+v", result)
	}
	if result.Entities["keywords"] != "drill" {
		t.Fatalf("expected keywords entity, got %+v", result.Entities)
	}
}

func TestOpenAIClientEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float32{0.1, 0.2, 0.3}, "index": 0},
			},
		})
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: server.URL})
	vec, err := client.Embed(context.Background(), "drill")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected a 3-dim vector, got %v", vec)
	}
}

type failOnceClient struct {
	calls int
}

func (f *failOnceClient) Classify(ctx context.Context, messages []Message, systemPrompt string) (*Classification, error) {
	f.calls++
	if f.calls == 1 {
		return nil, context.DeadlineExceeded
	}
	return &Classification{Intent: "greeting", Confidence: 1}, nil
}
func (f *failOnceClient) Embed(ctx context.Context, text string) ([]float32, error) { return nil, nil }
func (f *failOnceClient) Answer(ctx context.Context, systemPrompt, question string) (string, error) {
	return "", nil
}

func TestClassifyWithRetryRecoversOnSecondAttempt(t *testing.T) {
	client := &failOnceClient{}
	result, err := ClassifyWithRetry(context.Background(), client, nil, "system")
	if err != nil {
		t.Fatalf("ClassifyWithRetry: %v", err)
	}
	if result.Intent != "greeting" {
		t.Fatalf("expected recovered classification, got %+v", result)
	}
	if client.calls != 2 {
		t.Fatalf("expected exactly one retry, got %d calls", client.calls)
	}
}
