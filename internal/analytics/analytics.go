// Package analytics is the optional interaction recorder of
// SPEC_FULL.md §12, grounded on the teacher's own
// ai/assistant.AnalyticsRecorder/InteractionEvent: the same
// fire-and-forget "record, never gate" interface, narrowed from
// tenant/customer/session/product-list fields to the
// (chat_id, intent, confidence, response_time, tokens_used) tuple
// this spec's orchestrator can actually produce.
package analytics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"core/internal/clickhouse"
)

// Recorder is the contract the orchestrator depends on. It never
// returns an error: recording failures must not affect a chat reply.
type Recorder interface {
	RecordInteraction(ctx context.Context, event InteractionEvent)
}

// InteractionEvent is one classified turn.
type InteractionEvent struct {
	ChatID       string
	Intent       string
	Confidence   float64
	ResponseTime time.Duration
	TokensUsed   int
}

// NoOpRecorder is used when CLICKHOUSE_DSN is unset.
type NoOpRecorder struct{}

func (NoOpRecorder) RecordInteraction(context.Context, InteractionEvent) {}

// ClickHouseRecorder writes interaction events to ClickHouse.
type ClickHouseRecorder struct {
	client *clickhouse.Client
}

func NewClickHouseRecorder(client *clickhouse.Client) *ClickHouseRecorder {
	return &ClickHouseRecorder{client: client}
}

// RecordInteraction inserts asynchronously on its own goroutine, so a
// slow ClickHouse insert never adds to the orchestrator's request
// latency (spec.md §5's per-request deadline covers handler dispatch,
// not best-effort telemetry).
func (r *ClickHouseRecorder) RecordInteraction(ctx context.Context, event InteractionEvent) {
	go func() {
		insertCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := r.client.InsertInteractionEvent(insertCtx, clickhouse.InteractionEvent{
			Time:           time.Now(),
			ChatID:         event.ChatID,
			Intent:         event.Intent,
			Confidence:     event.Confidence,
			ResponseTimeMS: uint32(event.ResponseTime.Milliseconds()),
			TokensUsed:     uint32(event.TokensUsed),
		})
		if err != nil {
			log.Warn().Err(err).Str("chat_id", event.ChatID).Msg("analytics: record interaction failed")
		}
	}()
}
