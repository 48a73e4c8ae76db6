package embedding

import (
	"context"
	"testing"

	"core/internal/llm"
)

type countingEmbedder struct {
	calls int
	vec   []float32
}

func (c *countingEmbedder) Classify(ctx context.Context, messages []llm.Message, systemPrompt string) (*llm.Classification, error) {
	return nil, nil
}
func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.vec, nil
}
func (c *countingEmbedder) Answer(ctx context.Context, systemPrompt, question string) (string, error) {
	return "", nil
}

func TestServiceWithoutRedisCallsClientEveryTime(t *testing.T) {
	underlying := &countingEmbedder{vec: []float32{0.1, 0.2}}
	svc := NewService(underlying, nil)

	for i := 0; i < 3; i++ {
		if _, err := svc.Embed(context.Background(), "drill bits"); err != nil {
			t.Fatalf("Embed: %v", err)
		}
	}
	if underlying.calls != 3 {
		t.Fatalf("expected uncached service to call the client every time, got %d calls", underlying.calls)
	}
}

func TestCacheKeyIsStableAndDistinct(t *testing.T) {
	a := cacheKey("drill bits")
	b := cacheKey("drill bits")
	c := cacheKey("hammer")
	if a != b {
		t.Fatalf("expected identical text to produce the same cache key")
	}
	if a == c {
		t.Fatalf("expected distinct text to produce distinct cache keys")
	}
}
