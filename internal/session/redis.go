package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key prefixes and TTLs, per spec.md §6's "Persisted state layout".
const (
	cartKeyPrefix = "cart:"
	ctxKeyPrefix  = "ctx:"
	seenKeyPrefix = "seen:"

	contextTTL   = 24 * time.Hour
	seenTTL      = 24 * time.Hour
	noExpiryCart = 0 // carts have no hard TTL guarantee, per spec.md §3
)

// RedisStore is the Store implementation, adapted from
// cache/redis.go's Set/Get/Delete + TTL-constant idiom, generalized
// from a products/categories cache into the cart/context/ephemeral
// namespaces of spec.md §4.1.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("session: connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Client exposes the underlying redis.Client for internal/embedding's
// query-hash cache, so it doesn't need a second connection.
func (s *RedisStore) Client() *redis.Client { return s.client }

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) GetCart(ctx context.Context, chatID string) (Cart, error) {
	var cart Cart
	if err := s.getJSON(ctx, cartKeyPrefix+chatID, &cart); err != nil {
		if err == redis.Nil {
			return Cart{}, nil
		}
		return nil, &ErrUnavailable{Cause: err}
	}
	if cart == nil {
		cart = Cart{}
	}
	return cart, nil
}

func (s *RedisStore) SetCart(ctx context.Context, chatID string, cart Cart) error {
	if err := s.setJSON(ctx, cartKeyPrefix+chatID, cart, noExpiryCart); err != nil {
		return &ErrUnavailable{Cause: err}
	}
	return nil
}

func (s *RedisStore) ClearCart(ctx context.Context, chatID string) error {
	if err := s.client.Del(ctx, cartKeyPrefix+chatID).Err(); err != nil {
		return &ErrUnavailable{Cause: err}
	}
	return nil
}

func (s *RedisStore) GetContext(ctx context.Context, chatID string) (Context, error) {
	var c Context
	if err := s.getJSON(ctx, ctxKeyPrefix+chatID, &c); err != nil {
		if err == redis.Nil {
			return Context{CheckoutState: CheckoutNone}, nil
		}
		return Context{}, &ErrUnavailable{Cause: err}
	}
	if c.CheckoutState == "" {
		c.CheckoutState = CheckoutNone
	}
	return c, nil
}

func (s *RedisStore) SetRecentProducts(ctx context.Context, chatID string, skus []string) error {
	current, err := s.GetContext(ctx, chatID)
	if err != nil {
		return err
	}
	current.RecentProducts = skus
	return s.putContext(ctx, chatID, current)
}

func (s *RedisStore) SetCheckoutState(ctx context.Context, chatID string, state CheckoutState, draft CustomerDraft) error {
	current, err := s.GetContext(ctx, chatID)
	if err != nil {
		return err
	}
	current.CheckoutState = state
	current.Draft = draft
	return s.putContext(ctx, chatID, current)
}

func (s *RedisStore) SetPendingPrompt(ctx context.Context, chatID, prompt string) error {
	current, err := s.GetContext(ctx, chatID)
	if err != nil {
		return err
	}
	current.PendingPrompt = prompt
	return s.putContext(ctx, chatID, current)
}

func (s *RedisStore) ClearCheckoutState(ctx context.Context, chatID string) error {
	current, err := s.GetContext(ctx, chatID)
	if err != nil {
		return err
	}
	current.CheckoutState = CheckoutNone
	current.Draft = CustomerDraft{}
	current.PendingPrompt = ""
	return s.putContext(ctx, chatID, current)
}

func (s *RedisStore) putContext(ctx context.Context, chatID string, c Context) error {
	if err := s.setJSON(ctx, ctxKeyPrefix+chatID, c, contextTTL); err != nil {
		return &ErrUnavailable{Cause: err}
	}
	return nil
}

// MarkUpdateSeen uses SETNX so that only the first caller for a given
// update_id observes "unseen"; later observers fall through to the
// existing key.
func (s *RedisStore) MarkUpdateSeen(ctx context.Context, updateID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, seenKeyPrefix+updateID, 1, seenTTL).Result()
	if err != nil {
		return false, &ErrUnavailable{Cause: err}
	}
	return ok, nil
}

func (s *RedisStore) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *RedisStore) getJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}
