package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"core/internal/logger"
)

// AnthropicClient implements Client's Classify/Answer over the
// Messages API, adapted from ai/rag/providers.go's AnthropicProvider.
// Anthropic has no embeddings endpoint, so Embed delegates to an
// embedder (normally an OpenAIClient) per the teacher's own pattern
// of mixing a completion provider with OpenAIEmbedder.
type AnthropicClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient httpDoer
	embedder   Client
}

type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// HTTPClient overrides the default *http.Client, e.g. with a
	// circuitbreaker.HTTPClient wrapping upstream failures.
	HTTPClient httpDoer
}

func NewAnthropicClient(config AnthropicConfig, embedder Client) *AnthropicClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.anthropic.com/v1"
	}
	if config.Model == "" {
		config.Model = "claude-3-5-sonnet-20241022"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &AnthropicClient{
		apiKey:     config.APIKey,
		baseURL:    config.BaseURL,
		model:      config.Model,
		httpClient: httpClient,
		embedder:   embedder,
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (c *AnthropicClient) Classify(ctx context.Context, messages []Message, systemPrompt string) (*Classification, error) {
	content, err := c.complete(ctx, "classify", systemPrompt, toAnthropicMessages(messages))
	if err != nil {
		return nil, err
	}
	var result Classification
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("llm: malformed classification json: %w", err)
	}
	return &result, nil
}

func (c *AnthropicClient) Answer(ctx context.Context, systemPrompt, question string) (string, error) {
	return c.complete(ctx, "answer", systemPrompt, []anthropicMessage{{Role: "user", Content: question}})
}

func toAnthropicMessages(messages []Message) []anthropicMessage {
	out := make([]anthropicMessage, len(messages))
	for i, m := range messages {
		role := m.Role
		if role != "user" && role != "assistant" {
			role = "user"
		}
		out[i] = anthropicMessage{Role: role, Content: m.Content}
	}
	return out
}

func (c *AnthropicClient) complete(ctx context.Context, operation, systemPrompt string, messages []anthropicMessage) (out string, err error) {
	start := time.Now()
	defer func() { logger.LLMCall("anthropic", operation, time.Since(start), err) }()

	body, _ := json.Marshal(anthropicRequest{
		Model:     c.model,
		MaxTokens: 1024,
		System:    systemPrompt,
		Messages:  messages,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("llm: anthropic request: %w", err)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		err = fmt.Errorf("llm: anthropic error: %s", string(respBody))
		return "", err
	}

	var decoded anthropicResponse
	if err = json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		err = fmt.Errorf("llm: decode anthropic response: %w", err)
		return "", err
	}

	for _, block := range decoded.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	if out == "" {
		err = fmt.Errorf("llm: no text content returned by anthropic")
		return "", err
	}
	return out, nil
}

func (c *AnthropicClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.embedder == nil {
		return nil, fmt.Errorf("llm: anthropic client has no embedder configured")
	}
	return c.embedder.Embed(ctx, text)
}
