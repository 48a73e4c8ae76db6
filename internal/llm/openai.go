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

// httpDoer is satisfied by both *http.Client and
// *circuitbreaker.HTTPClient, so callers can wrap the provider's
// transport in a circuit breaker without this package importing it.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// OpenAIClient implements Client over chat completions + embeddings,
// adapted from ai/rag/providers.go's OpenAIProvider/OpenAIEmbedder,
// narrowed to the two calls the orchestrator needs.
type OpenAIClient struct {
	apiKey         string
	baseURL        string
	chatModel      string
	embeddingModel string
	httpClient     httpDoer
}

type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Timeout        time.Duration
	// HTTPClient overrides the default *http.Client, e.g. with a
	// circuitbreaker.HTTPClient wrapping upstream failures.
	HTTPClient httpDoer
}

func NewOpenAIClient(config OpenAIConfig) *OpenAIClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.ChatModel == "" {
		config.ChatModel = "gpt-4o-mini"
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = "text-embedding-3-small"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &OpenAIClient{
		apiKey:         config.APIKey,
		baseURL:        config.BaseURL,
		chatModel:      config.ChatModel,
		embeddingModel: config.EmbeddingModel,
		httpClient:     httpClient,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature,omitempty"`
	ResponseFormat *responseFmt  `json:"response_format,omitempty"`
}

type responseFmt struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *OpenAIClient) Classify(ctx context.Context, messages []Message, systemPrompt string) (*Classification, error) {
	chatMessages := make([]chatMessage, 0, len(messages)+1)
	chatMessages = append(chatMessages, chatMessage{Role: "system", Content: systemPrompt})
	for _, m := range messages {
		chatMessages = append(chatMessages, chatMessage{Role: m.Role, Content: m.Content})
	}

	body, _ := json.Marshal(chatRequest{
		Model:          c.chatModel,
		Messages:       chatMessages,
		Temperature:    0,
		ResponseFormat: &responseFmt{Type: "json_object"},
	})

	content, err := c.doChat(ctx, "classify", body)
	if err != nil {
		return nil, err
	}

	var result Classification
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("llm: malformed classification json: %w", err)
	}
	return &result, nil
}

func (c *OpenAIClient) Answer(ctx context.Context, systemPrompt, question string) (string, error) {
	body, _ := json.Marshal(chatRequest{
		Model: c.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: question},
		},
		Temperature: 0.2,
	})
	return c.doChat(ctx, "answer", body)
}

func (c *OpenAIClient) doChat(ctx context.Context, operation string, body []byte) (s string, err error) {
	start := time.Now()
	defer func() { logger.LLMCall("openai", operation, time.Since(start), err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		err = fmt.Errorf("llm: openai error: %s", string(respBody))
		return "", err
	}

	var decoded chatResponse
	if err = json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		err = fmt.Errorf("llm: decode openai response: %w", err)
		return "", err
	}
	if len(decoded.Choices) == 0 {
		err = fmt.Errorf("llm: no choices returned by openai")
		return "", err
	}
	return decoded.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) (out []float32, err error) {
	start := time.Now()
	defer func() { logger.LLMCall("openai", "embed", time.Since(start), err) }()

	body, _ := json.Marshal(map[string]interface{}{
		"model": c.embeddingModel,
		"input": []string{text},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("llm: openai embed request: %w", err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		err = fmt.Errorf("llm: openai embed error: %s", string(respBody))
		return nil, err
	}

	var decoded struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		err = fmt.Errorf("llm: decode embedding response: %w", err)
		return nil, err
	}
	if len(decoded.Data) == 0 {
		err = fmt.Errorf("llm: no embedding returned by openai")
		return nil, err
	}
	out = decoded.Data[0].Embedding
	return out, nil
}
