package tokensrv

import (
	"context"
	"time"

	"github.com/aibles/iam/pkg/errx"
	"github.com/aibles/iam/pkg/iam/audit"
	"github.com/aibles/iam/pkg/iam/token"
	"github.com/aibles/iam/pkg/iam/user"
	"github.com/google/uuid"
)

// TokenService issues, rotates and revokes token pairs. Access tokens are
// stateless JWTs; refresh tokens are opaque single-use handles in the
// session store.
type TokenService struct {
	users           user.Repository
	sessions        token.SessionStore
	signer          token.Signer
	audit           audit.Publisher
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

func NewTokenService(
	users user.Repository,
	sessions token.SessionStore,
	signer token.Signer,
	auditPublisher audit.Publisher,
	accessTokenTTL time.Duration,
	refreshTokenTTL time.Duration,
) *TokenService {
	return &TokenService{
		users:           users,
		sessions:        sessions,
		signer:          signer,
		audit:           auditPublisher,
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
	}
}

// Issue creates a fresh token pair for the user. The caller is responsible
// for having authenticated the user and checked the account status.
func (s *TokenService) Issue(ctx context.Context, u *user.User) (*token.Pair, error) {
	accessToken, err := s.signer.SignAccessToken(u.ID, u.Email, u.Roles)
	if err != nil {
		return nil, err
	}

	refreshToken := uuid.NewString()
	if err := s.sessions.Store(ctx, refreshToken, u.ID, s.refreshTokenTTL); err != nil {
		return nil, token.ErrGenerationFailed().WithDetail("error", err.Error())
	}

	return &token.Pair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTokenTTL.Seconds()),
	}, nil
}

// Refresh rotates a refresh token: the presented token is consumed before
// anything else, so it is burned even when the account turns out to be
// disabled or gone. A disabled account gets no new pair.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (*token.Pair, error) {
	userID, err := s.sessions.Consume(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errx.IsCode(err, user.CodeNotFound) {
			return nil, token.ErrInvalid()
		}
		return nil, err
	}

	if !u.IsActive() {
		return nil, user.ErrDisabled()
	}

	pair, err := s.Issue(ctx, u)
	if err != nil {
		return nil, err
	}

	s.audit.Publish(ctx, audit.NewEvent(audit.EventTokenRefreshed, u.ID))
	return pair, nil
}

// Revoke logs the user out everywhere. Presenting an unknown or already
// consumed token is not an error; revocation is idempotent.
func (s *TokenService) Revoke(ctx context.Context, refreshToken string) error {
	userID, err := s.sessions.Consume(ctx, refreshToken)
	if err != nil {
		if errx.IsCode(err, token.CodeInvalid) {
			return nil
		}
		return err
	}

	if err := s.sessions.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}

	s.audit.Publish(ctx, audit.NewEvent(audit.EventTokenRevoked, userID))
	return nil
}

// Validate checks an access token and returns its claims.
func (s *TokenService) Validate(_ context.Context, accessToken string) (*token.Claims, error) {
	return s.signer.ValidateAccessToken(accessToken)
}
