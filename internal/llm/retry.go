package llm

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"
)

// ClassifyWithRetry retries a single time with jitter on transport
// error, per spec.md §4.4 step 3. It never retries a malformed-JSON
// error — that is a model output problem, not a transport one, and
// internal/analyzer's fallback handles it.
func ClassifyWithRetry(ctx context.Context, client Client, messages []Message, systemPrompt string) (*Classification, error) {
	result, err := client.Classify(ctx, messages, systemPrompt)
	if err == nil {
		return result, nil
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return nil, err
	}

	jitter := time.Duration(50+rand.Intn(150)) * time.Millisecond
	select {
	case <-time.After(jitter):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return client.Classify(ctx, messages, systemPrompt)
}
