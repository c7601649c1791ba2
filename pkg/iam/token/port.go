package token

import (
	"context"
	"time"

	"github.com/aibles/iam/pkg/kernel"
)

// SessionStore maps refresh tokens to their owners with a TTL and keeps a
// per-user reverse index for bulk revocation. Consume must be atomic: two
// concurrent consumers of the same token must not both succeed.
type SessionStore interface {
	Store(ctx context.Context, refreshToken string, userID kernel.UserID, ttl time.Duration) error
	Consume(ctx context.Context, refreshToken string) (kernel.UserID, error)
	RevokeAllForUser(ctx context.Context, userID kernel.UserID) error
}

// Signer issues and validates short-lived asymmetrically-signed access tokens.
type Signer interface {
	SignAccessToken(userID kernel.UserID, email string, roles []string) (string, error)
	ValidateAccessToken(token string) (*Claims, error)
}
