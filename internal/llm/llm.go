// Package llm is the LLMClient contract of spec.md §4.3, generalized
// from ai/rag/providers.go's free-form Complete/StreamComplete surface
// down to a closed classify+embed contract: the orchestration engine
// never needs a raw chat completion, only a structured intent/entity
// bundle and an embedding vector.
package llm

import (
	"context"
)

// Message is one turn of the recent-context window (role "user" or
// "assistant"), mirroring ai/rag's openAIMessage/anthropicMessage shape.
type Message struct {
	Role    string
	Content string
}

// Classification is the raw result of a classify call, before
// internal/analyzer validates and normalizes it.
type Classification struct {
	Intent     string                 `json:"intent"`
	Entities   map[string]interface{} `json:"entities"`
	Confidence float64                `json:"confidence"`
}

// Client is the contract of spec.md §4.3.
type Client interface {
	Classify(ctx context.Context, messages []Message, systemPrompt string) (*Classification, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	// Answer is used by ProductHandler.answer_technical (spec.md §4.5):
	// a single grounded completion, not a classification.
	Answer(ctx context.Context, systemPrompt, question string) (string, error)
}
