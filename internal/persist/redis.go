package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cart-sync-service/internal/domain"
)

// DefaultTTL matches the cart cookie lifetime: an abandoned cart outlives
// its cookie by nothing.
const DefaultTTL = 7 * 24 * time.Hour

// RedisSlot implements Slot on Redis. Keys are the versioned slot key
// suffixed with the session id.
type RedisSlot struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSlot(client *redis.Client) *RedisSlot {
	return &RedisSlot{
		client: client,
		ttl:    DefaultTTL,
	}
}

func (r *RedisSlot) Save(ctx context.Context, sessionID string, data []byte) error {
	if err := r.client.Set(ctx, slotKey(sessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisSlot) Load(ctx context.Context, sessionID string) ([]byte, error) {
	data, err := r.client.Get(ctx, slotKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *RedisSlot) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, slotKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func slotKey(sessionID string) string {
	return fmt.Sprintf("%s:%s", domain.SlotKey, sessionID)
}
