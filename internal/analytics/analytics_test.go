package analytics

import (
	"context"
	"testing"
	"time"
)

func TestNoOpRecorderDoesNotPanic(t *testing.T) {
	var r Recorder = NoOpRecorder{}
	r.RecordInteraction(context.Background(), InteractionEvent{
		ChatID:       "chat-1",
		Intent:       "product_search",
		Confidence:   0.8,
		ResponseTime: 100 * time.Millisecond,
		TokensUsed:   42,
	})
}
