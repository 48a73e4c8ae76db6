// Package vectorindex is the semantic-search backend of spec.md §4.2,
// merging visualsearch/qdrant_provider.go's collection-management idiom
// (CreateCollection, payload indexes, setHeaders) with
// ai/rag/providers.go's QdrantVectorStore.Search shape, narrowed from
// image embeddings and multi-tenant filters to a single-tenant product
// catalog.
package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"core/internal/logger"
)

// Result is one scored hit from a similarity search.
type Result struct {
	SKU   string
	Score float64
}

// Index is the contract internal/product depends on.
type Index interface {
	Search(ctx context.Context, vector []float32, limit int, threshold float64) ([]Result, error)
	Upsert(ctx context.Context, sku string, vector []float32) error
	EnsureCollection(ctx context.Context) error
}

type Client struct {
	baseURL    string
	apiKey     string
	collection string
	vectorSize int
	httpClient *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	VectorSize int
	Timeout    time.Duration
}

func NewClient(config Config) *Client {
	if config.Collection == "" {
		config.Collection = "products"
	}
	if config.VectorSize == 0 {
		config.VectorSize = 1536 // text-embedding-3-small dimension
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    config.URL,
		apiKey:     config.APIKey,
		collection: config.Collection,
		vectorSize: config.VectorSize,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// HealthCheck reports whether Qdrant is reachable, grounded on
// visualsearch/qdrant_provider.go's HealthCheck.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vectorindex: unhealthy, status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
}

type collectionConfig struct {
	Vectors vectorsConfig `json:"vectors"`
}

type vectorsConfig struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

// EnsureCollection is idempotent: a 409 from an existing collection is
// not an error.
func (c *Client) EnsureCollection(ctx context.Context) error {
	body, _ := json.Marshal(collectionConfig{Vectors: vectorsConfig{Size: c.vectorSize, Distance: "Cosine"}})

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection),
		bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vectorindex: create collection: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusConflict {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vectorindex: create collection: %s", string(respBody))
	}

	if err := c.createPayloadIndex(ctx, "sku", "keyword"); err != nil {
		log.Warn().Err(err).Msg("vectorindex: sku payload index")
	}
	return nil
}

func (c *Client) createPayloadIndex(ctx context.Context, field, fieldType string) error {
	body, _ := json.Marshal(map[string]interface{}{"field_name": field, "field_schema": fieldType})

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/collections/%s/index", c.baseURL, c.collection),
		bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

type point struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector"`
	Payload map[string]interface{} `json:"payload"`
}

type upsertPointsRequest struct {
	Points []point `json:"points"`
}

func (c *Client) Upsert(ctx context.Context, sku string, vector []float32) error {
	request := upsertPointsRequest{Points: []point{{
		ID:      sku,
		Vector:  vector,
		Payload: map[string]interface{}{"sku": sku},
	}}}
	body, _ := json.Marshal(request)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/collections/%s/points", c.baseURL, c.collection),
		bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vectorindex: upsert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vectorindex: upsert: %s", string(respBody))
	}
	return nil
}

type searchRequest struct {
	Vector         []float32 `json:"vector"`
	Limit          int       `json:"limit"`
	WithPayload    bool      `json:"with_payload"`
	ScoreThreshold float64   `json:"score_threshold"`
}

func (c *Client) Search(ctx context.Context, vector []float32, limit int, threshold float64) (results []Result, err error) {
	start := time.Now()
	defer func() { logger.VectorSearch(c.collection, len(results), time.Since(start)) }()

	body, _ := json.Marshal(searchRequest{Vector: vector, Limit: limit, WithPayload: true, ScoreThreshold: threshold})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection),
		bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("vectorindex: search: %s", string(respBody))
	}

	var decoded struct {
		Result []struct {
			ID      string                 `json:"id"`
			Score   float64                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("vectorindex: decode search response: %w", err)
	}

	results = make([]Result, 0, len(decoded.Result))
	for _, r := range decoded.Result {
		sku, _ := r.Payload["sku"].(string)
		if sku == "" {
			sku = r.ID
		}
		results = append(results, Result{SKU: sku, Score: r.Score})
	}
	return results, nil
}
