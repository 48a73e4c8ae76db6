package clickhouse

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Host != "localhost" {
		t.Errorf("expected Host 'localhost', got %s", cfg.Host)
	}
	if cfg.Port != 9000 {
		t.Errorf("expected Port 9000, got %d", cfg.Port)
	}
	if cfg.Database != "shop_analytics" {
		t.Errorf("expected Database 'shop_analytics', got %s", cfg.Database)
	}
	if cfg.Username != "default" {
		t.Errorf("expected Username 'default', got %s", cfg.Username)
	}
}

func TestInteractionEventStruct(t *testing.T) {
	now := time.Now()
	e := InteractionEvent{
		Time:           now,
		ChatID:         "chat-1",
		Intent:         "product_search",
		Confidence:     0.92,
		ResponseTimeMS: 420,
		TokensUsed:     318,
	}

	if e.ChatID != "chat-1" {
		t.Errorf("expected ChatID 'chat-1', got %s", e.ChatID)
	}
	if e.Intent != "product_search" {
		t.Errorf("expected Intent 'product_search', got %s", e.Intent)
	}
	if e.Confidence != 0.92 {
		t.Errorf("expected Confidence 0.92, got %f", e.Confidence)
	}
}
