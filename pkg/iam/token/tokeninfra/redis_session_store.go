package tokeninfra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aibles/iam/pkg/iam/token"
	"github.com/aibles/iam/pkg/kernel"
	"github.com/aibles/iam/pkg/logx"
	"github.com/redis/go-redis/v9"
)

const (
	refreshTokenKeyPrefix = "rt:"
	userTokensKeyPrefix   = "rt:u:"
)

// RedisSessionStore implements token.SessionStore on Redis. Each refresh
// token maps to its owner under "rt:<token>" and every user keeps a set of
// outstanding tokens under "rt:u:<userId>" for bulk revocation.
type RedisSessionStore struct {
	client redis.Cmdable
}

func NewRedisSessionStore(client redis.Cmdable) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func refreshTokenKey(refreshToken string) string {
	return refreshTokenKeyPrefix + refreshToken
}

func userTokensKey(userID kernel.UserID) string {
	return userTokensKeyPrefix + userID.String()
}

// Store records the token with the given TTL and indexes it under its owner.
// The index expires alongside the longest-lived token so revocation of an
// idle user eventually becomes a no-op.
func (s *RedisSessionStore) Store(ctx context.Context, refreshToken string, userID kernel.UserID, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, refreshTokenKey(refreshToken), userID.String(), ttl)
	pipe.SAdd(ctx, userTokensKey(userID), refreshToken)
	pipe.Expire(ctx, userTokensKey(userID), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// Consume atomically removes the token and returns its owner. GETDEL
// guarantees single use: of two concurrent consumers exactly one sees the
// value, the other gets redis.Nil.
func (s *RedisSessionStore) Consume(ctx context.Context, refreshToken string) (kernel.UserID, error) {
	value, err := s.client.GetDel(ctx, refreshTokenKey(refreshToken)).Result()
	if errors.Is(err, redis.Nil) {
		return "", token.ErrInvalid()
	}
	if err != nil {
		return "", fmt.Errorf("consume refresh token: %w", err)
	}

	userID := kernel.UserID(value)

	// The index is advisory: the token is already burned at this point, and
	// RevokeAllForUser tolerates stale members. A failed SRem must not fail
	// the consume.
	if err := s.client.SRem(ctx, userTokensKey(userID), refreshToken).Err(); err != nil {
		logx.WithError(err).Warn("Failed to unindex consumed refresh token")
	}
	return userID, nil
}

// RevokeAllForUser deletes every outstanding token of the user along with
// the index itself.
func (s *RedisSessionStore) RevokeAllForUser(ctx context.Context, userID kernel.UserID) error {
	tokens, err := s.client.SMembers(ctx, userTokensKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("list user refresh tokens: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, t := range tokens {
		pipe.Del(ctx, refreshTokenKey(t))
	}
	pipe.Del(ctx, userTokensKey(userID))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}
