package federation

import (
	"context"
	"net/http"
	"time"

	"github.com/aibles/iam/pkg/errx"
)

// ExternalIdentity is a verified identity returned by a federated provider.
type ExternalIdentity struct {
	Subject     string
	Email       string
	DisplayName string
}

// IdentityProvider runs the provider side of an authorization-code flow.
type IdentityProvider interface {
	// AuthURL builds the provider consent URL carrying the state value.
	AuthURL(state string) string

	// Exchange redeems the authorization code and fetches the verified
	// identity behind it.
	Exchange(ctx context.Context, code string) (*ExternalIdentity, error)
}

// StateStore holds single-use CSRF state values for the login flow.
// Consume must be atomic; a state value can be redeemed exactly once.
type StateStore interface {
	Issue(ctx context.Context, state string, ttl time.Duration) error
	Consume(ctx context.Context, state string) error
}

var ErrRegistry = errx.NewRegistry("FEDERATION")

var (
	CodeInvalidState   = ErrRegistry.Register("INVALID_STATE", errx.TypeValidation, http.StatusBadRequest, "State expired or already used")
	CodeExchangeFailed = ErrRegistry.Register("EXCHANGE_FAILED", errx.TypeExternal, http.StatusBadGateway, "Provider code exchange failed")
	CodeDisabled       = ErrRegistry.Register("PROVIDER_DISABLED", errx.TypeNotFound, http.StatusNotFound, "Federated login is not enabled")
)

func ErrInvalidState() *errx.Error     { return ErrRegistry.New(CodeInvalidState) }
func ErrExchangeFailed() *errx.Error   { return ErrRegistry.New(CodeExchangeFailed) }
func ErrProviderDisabled() *errx.Error { return ErrRegistry.New(CodeDisabled) }
