// Package embedding wraps internal/llm's embed call with a cache keyed
// by query hash, adapted from cache/redis.go's Get/Set-with-TTL idiom,
// so that repeated product-search phrasing doesn't re-hit the LLM
// provider's embeddings endpoint.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"core/internal/llm"
)

const cacheTTL = 7 * 24 * time.Hour

// Embedder is the narrowed contract internal/product depends on.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Service caches embeddings in Redis; with a nil client it degrades to
// calling the LLM client directly on every request.
type Service struct {
	client llm.Client
	redis  *redis.Client
}

func NewService(client llm.Client, redisClient *redis.Client) *Service {
	return &Service{client: client, redis: redisClient}
}

func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)

	if s.redis != nil {
		if vec, ok := s.readCache(ctx, key); ok {
			return vec, nil
		}
	}

	vec, err := s.client.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		s.writeCache(ctx, key, vec)
	}
	return vec, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embed:" + hex.EncodeToString(sum[:])
}

func (s *Service) readCache(ctx context.Context, key string) ([]float32, bool) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, false
	}
	return vec, true
}

func (s *Service) writeCache(ctx context.Context, key string, vec []float32) {
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	_ = s.redis.Set(ctx, key, data, cacheTTL).Err()
}
