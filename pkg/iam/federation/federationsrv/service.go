package federationsrv

import (
	"context"

	"github.com/aibles/iam/pkg/config"
	"github.com/aibles/iam/pkg/errx"
	"github.com/aibles/iam/pkg/iam/audit"
	"github.com/aibles/iam/pkg/iam/federation"
	"github.com/aibles/iam/pkg/iam/token"
	"github.com/aibles/iam/pkg/iam/user"
	"github.com/google/uuid"
)

// TokenIssuer creates a token pair for an authenticated user.
type TokenIssuer interface {
	Issue(ctx context.Context, u *user.User) (*token.Pair, error)
}

// FederationService runs the federated login flow and reconciles external
// identities with the local directory.
type FederationService struct {
	users    user.Repository
	states   federation.StateStore
	provider federation.IdentityProvider
	tokens   TokenIssuer
	audit    audit.Publisher
	cfg      *config.GoogleConfig
}

func NewFederationService(
	users user.Repository,
	states federation.StateStore,
	provider federation.IdentityProvider,
	tokens TokenIssuer,
	auditPublisher audit.Publisher,
	cfg *config.GoogleConfig,
) *FederationService {
	return &FederationService{
		users:    users,
		states:   states,
		provider: provider,
		tokens:   tokens,
		audit:    auditPublisher,
		cfg:      cfg,
	}
}

// LoginResult is a completed federated login.
type LoginResult struct {
	User      *user.User  `json:"user"`
	TokenPair *token.Pair `json:"tokens"`
}

// Begin issues a single-use state value and returns the provider consent
// URL to redirect the user to.
func (s *FederationService) Begin(ctx context.Context) (string, error) {
	if !s.cfg.Enabled {
		return "", federation.ErrProviderDisabled()
	}

	state := uuid.NewString()
	if err := s.states.Issue(ctx, state, s.cfg.StateTTL); err != nil {
		return "", err
	}
	return s.provider.AuthURL(state), nil
}

// Complete redeems the callback. The state is consumed before the code
// exchange, so a replayed callback fails fast without touching the
// provider.
func (s *FederationService) Complete(ctx context.Context, state, code string) (*LoginResult, error) {
	if !s.cfg.Enabled {
		return nil, federation.ErrProviderDisabled()
	}

	if err := s.states.Consume(ctx, state); err != nil {
		return nil, err
	}

	identity, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	u, err := s.reconcile(ctx, identity)
	if err != nil {
		return nil, err
	}

	if !u.IsActive() {
		return nil, user.ErrDisabled()
	}

	u.RecordLogin()
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}

	pair, err := s.tokens.Issue(ctx, u)
	if err != nil {
		return nil, err
	}

	s.audit.Publish(ctx, audit.
		NewEvent(audit.EventLoginSucceeded, u.ID).
		WithMethod("google"))

	return &LoginResult{User: u, TokenPair: pair}, nil
}

// reconcile maps an external identity to a directory entry. Subject match
// wins; an email match links the federated identity to the existing
// account; otherwise a new account is provisioned.
func (s *FederationService) reconcile(ctx context.Context, identity *federation.ExternalIdentity) (*user.User, error) {
	u, err := s.users.FindByExternalSubject(ctx, identity.Subject)
	if err == nil {
		return u, nil
	}
	if !errx.IsCode(err, user.CodeNotFound) {
		return nil, err
	}

	u, err = s.users.FindByEmail(ctx, identity.Email)
	if err == nil {
		u.LinkExternalAccount(identity.Subject)
		if err := s.users.Save(ctx, u); err != nil {
			return nil, err
		}
		s.audit.Publish(ctx, audit.
			NewEvent(audit.EventAccountLinked, u.ID).
			WithMethod("google"))
		return u, nil
	}
	if !errx.IsCode(err, user.CodeNotFound) {
		return nil, err
	}

	var displayName *string
	if identity.DisplayName != "" {
		displayName = &identity.DisplayName
	}
	u, err = user.New(identity.Email, displayName, &identity.Subject)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.audit.Publish(ctx, audit.NewEvent(audit.EventUserCreated, u.ID).WithMethod("google"))
	return u, nil
}
