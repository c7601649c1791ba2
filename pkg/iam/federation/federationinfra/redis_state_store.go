package federationinfra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aibles/iam/pkg/iam/federation"
	"github.com/redis/go-redis/v9"
)

const stateKeyPrefix = "fs:"

// RedisStateStore implements federation.StateStore on Redis with TTL'd
// single-use entries.
type RedisStateStore struct {
	client *redis.Client
}

func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client}
}

func stateKey(state string) string {
	return stateKeyPrefix + state
}

func (s *RedisStateStore) Issue(ctx context.Context, state string, ttl time.Duration) error {
	if err := s.client.Set(ctx, stateKey(state), "1", ttl).Err(); err != nil {
		return fmt.Errorf("store login state: %w", err)
	}
	return nil
}

// Consume removes the state value. GETDEL keeps redemption single-use
// under concurrent callbacks.
func (s *RedisStateStore) Consume(ctx context.Context, state string) error {
	err := s.client.GetDel(ctx, stateKey(state)).Err()
	if errors.Is(err, redis.Nil) {
		return federation.ErrInvalidState()
	}
	if err != nil {
		return fmt.Errorf("consume login state: %w", err)
	}
	return nil
}
