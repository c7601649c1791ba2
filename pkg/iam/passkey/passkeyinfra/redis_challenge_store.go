package passkeyinfra

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/aibles/iam/pkg/iam/passkey"
	"github.com/redis/go-redis/v9"
)

const challengeKeyPrefix = "wc:"

// RedisChallengeStore implements passkey.ChallengeStore on Redis. Entries
// expire via TTL and are removed on first read, so an expired challenge and
// a consumed one look the same to the caller.
type RedisChallengeStore struct {
	client *redis.Client
}

func NewRedisChallengeStore(client *redis.Client) *RedisChallengeStore {
	return &RedisChallengeStore{client: client}
}

func challengeKey(sessionID string) string {
	return challengeKeyPrefix + sessionID
}

func (s *RedisChallengeStore) Issue(ctx context.Context, sessionID string, challenge []byte, ttl time.Duration) error {
	encoded := base64.StdEncoding.EncodeToString(challenge)
	if err := s.client.Set(ctx, challengeKey(sessionID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}
	return nil
}

// Consume removes and returns the challenge. GETDEL makes redemption
// single-use even under concurrent finish requests.
func (s *RedisChallengeStore) Consume(ctx context.Context, sessionID string) ([]byte, error) {
	value, err := s.client.GetDel(ctx, challengeKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, passkey.ErrChallengeExpired()
	}
	if err != nil {
		return nil, fmt.Errorf("consume challenge: %w", err)
	}

	challenge, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode stored challenge: %w", err)
	}
	return challenge, nil
}
