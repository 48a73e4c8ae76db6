// Package chat defines the outbound-transport boundary of spec.md §6:
// the orchestrator never talks to a chat platform SDK directly.
package chat

import "context"

// InlineButton carries a callback payload of the form "detail:<SKU>"
// or "add:<SKU>:<qty>" that round-trips back as callback_query.data.
type InlineButton struct {
	Label   string
	Payload string
}

// Transport is the contract of spec.md §6's "Outbound chat messages".
type Transport interface {
	SendText(ctx context.Context, chatID, markdownText string, buttons []InlineButton) error
	SendPhoto(ctx context.Context, chatID, url, caption string) error
}

// Update is the normalized inbound shape of spec.md §6's webhook
// fields, independent of any one chat platform's wire format.
type Update struct {
	UpdateID     string
	ChatID       string
	Text         string
	CallbackData string
	FromUsername string
}
