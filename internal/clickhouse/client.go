// Package clickhouse is the optional analytics sink of SPEC_FULL.md
// §12, adapted from the teacher's own clickhouse/client.go: same
// connection-pool/DSN/InitSchema shape, schema narrowed from the
// teacher's multi-tenant events/orders warehouse down to a single
// per-turn interaction table.
package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     9000,
		Database: "shop_analytics",
		Username: "default",
	}
}

// Client is the ClickHouse connection used by internal/analytics.
type Client struct {
	db *sql.DB
}

func New(cfg *Config) (*Client, error) {
	dsn := fmt.Sprintf("clickhouse://%s:%s@%s:%d/%s?dial_timeout=10s&max_execution_time=60",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("clickhouse: ping: %w", err)
	}
	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

// InitSchema creates the interaction_events table, per
// SPEC_FULL.md §12.
func (c *Client) InitSchema(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS interaction_events (
			event_time DateTime64(3),
			chat_id String,
			intent String,
			confidence Float64,
			response_time_ms UInt32,
			tokens_used UInt32
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(event_time)
		ORDER BY (chat_id, event_time)
		TTL toDateTime(event_time) + INTERVAL 1 YEAR
	`)
	if err != nil {
		return fmt.Errorf("clickhouse: init schema: %w", err)
	}
	return nil
}

// InteractionEvent mirrors the teacher's ai/assistant.InteractionEvent
// shape, narrowed to the fields SPEC_FULL.md §12 names.
type InteractionEvent struct {
	Time           time.Time
	ChatID         string
	Intent         string
	Confidence     float64
	ResponseTimeMS uint32
	TokensUsed     uint32
}

// InsertInteractionEvent is the single write path this sink exposes.
func (c *Client) InsertInteractionEvent(ctx context.Context, e InteractionEvent) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO interaction_events
			(event_time, chat_id, intent, confidence, response_time_ms, tokens_used)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.Time, e.ChatID, e.Intent, e.Confidence, e.ResponseTimeMS, e.TokensUsed)
	if err != nil {
		return fmt.Errorf("clickhouse: insert interaction event: %w", err)
	}
	return nil
}
