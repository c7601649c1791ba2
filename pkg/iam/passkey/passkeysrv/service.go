package passkeysrv

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/aibles/iam/pkg/config"
	"github.com/aibles/iam/pkg/iam/audit"
	"github.com/aibles/iam/pkg/iam/passkey"
	"github.com/aibles/iam/pkg/iam/token"
	"github.com/aibles/iam/pkg/iam/user"
	"github.com/aibles/iam/pkg/kernel"
	"github.com/google/uuid"
)

const (
	challengeSize   = 32
	ceremonyTimeout = 60000 // milliseconds, advisory for the client

	// COSE algorithm identifiers offered to authenticators.
	algES256 = -7
	algRS256 = -257
)

// TokenIssuer creates a token pair for an authenticated user.
type TokenIssuer interface {
	Issue(ctx context.Context, u *user.User) (*token.Pair, error)
}

// PasskeyService orchestrates WebAuthn registration and authentication
// ceremonies.
type PasskeyService struct {
	users       user.Repository
	credentials passkey.CredentialRepository
	challenges  passkey.ChallengeStore
	verifier    passkey.Verifier
	tokens      TokenIssuer
	audit       audit.Publisher
	cfg         *config.WebAuthnConfig
}

func NewPasskeyService(
	users user.Repository,
	credentials passkey.CredentialRepository,
	challenges passkey.ChallengeStore,
	verifier passkey.Verifier,
	tokens TokenIssuer,
	auditPublisher audit.Publisher,
	cfg *config.WebAuthnConfig,
) *PasskeyService {
	return &PasskeyService{
		users:       users,
		credentials: credentials,
		challenges:  challenges,
		verifier:    verifier,
		tokens:      tokens,
		audit:       auditPublisher,
		cfg:         cfg,
	}
}

// PubKeyCredParam advertises an accepted credential algorithm.
type PubKeyCredParam struct {
	Type string `json:"type"`
	Alg  int    `json:"alg"`
}

// RelyingParty identifies this service to the authenticator.
type RelyingParty struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CeremonyUser is the user entity presented to the authenticator.
type CeremonyUser struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// RegistrationOptions are the parameters for a registration ceremony.
type RegistrationOptions struct {
	SessionID        string            `json:"sessionId"`
	RP               RelyingParty      `json:"rp"`
	User             CeremonyUser      `json:"user"`
	Challenge        string            `json:"challenge"`
	PubKeyCredParams []PubKeyCredParam `json:"pubKeyCredParams"`
	Timeout          int               `json:"timeout"`
	Attestation      string            `json:"attestation"`
}

// AuthenticationOptions are the parameters for an authentication ceremony.
// No credential allow-list is sent; any registered credential may answer.
type AuthenticationOptions struct {
	SessionID        string `json:"sessionId"`
	RPID             string `json:"rpId"`
	Challenge        string `json:"challenge"`
	Timeout          int    `json:"timeout"`
	UserVerification string `json:"userVerification"`
}

// AuthenticationResult is a completed login: the account plus its tokens.
type AuthenticationResult struct {
	User      *user.User  `json:"user"`
	TokenPair *token.Pair `json:"tokens"`
}

func (s *PasskeyService) newChallenge(ctx context.Context, sessionID string) (string, error) {
	challenge := make([]byte, challengeSize)
	if _, err := rand.Read(challenge); err != nil {
		return "", fmt.Errorf("generate challenge: %w", err)
	}
	if err := s.challenges.Issue(ctx, sessionID, challenge, s.cfg.ChallengeTTL); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(challenge), nil
}

// RegisterStart begins a registration ceremony for an existing user.
func (s *PasskeyService) RegisterStart(ctx context.Context, userID kernel.UserID) (*RegistrationOptions, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive() {
		return nil, user.ErrDisabled()
	}

	sessionID := uuid.NewString()
	challenge, err := s.newChallenge(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	displayName := u.Email
	if u.DisplayName != nil && *u.DisplayName != "" {
		displayName = *u.DisplayName
	}

	return &RegistrationOptions{
		SessionID: sessionID,
		RP:        RelyingParty{ID: s.cfg.RPID, Name: s.cfg.RPName},
		User: CeremonyUser{
			ID:          u.ID.String(),
			Name:        u.Email,
			DisplayName: displayName,
		},
		Challenge: challenge,
		PubKeyCredParams: []PubKeyCredParam{
			{Type: "public-key", Alg: algES256},
			{Type: "public-key", Alg: algRS256},
		},
		Timeout:     ceremonyTimeout,
		Attestation: "none",
	}, nil
}

// RegisterFinish completes a registration ceremony. The challenge is
// consumed before anything else, so a failed verification still burns it.
func (s *PasskeyService) RegisterFinish(ctx context.Context, userID kernel.UserID, sessionID string, response passkey.AttestationResponse, displayName *string) (*passkey.Credential, error) {
	challenge, err := s.challenges.Consume(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	result, err := s.verifier.VerifyRegistration(u, challenge, response)
	if err != nil {
		return nil, err
	}

	credential := passkey.NewCredential(u.ID, result.CredentialID, result.PublicKey, result.AAGUID, result.SignCounter, displayName)
	if err := s.credentials.Create(ctx, credential); err != nil {
		return nil, err
	}

	s.audit.Publish(ctx, audit.
		NewEvent(audit.EventPasskeyRegistered, u.ID).
		WithMetadata("credential_id", credential.ID.String()))
	return credential, nil
}

// AuthenticateStart begins an identity-less authentication ceremony.
func (s *PasskeyService) AuthenticateStart(ctx context.Context) (*AuthenticationOptions, error) {
	sessionID := uuid.NewString()
	challenge, err := s.newChallenge(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &AuthenticationOptions{
		SessionID:        sessionID,
		RPID:             s.cfg.RPID,
		Challenge:        challenge,
		Timeout:          ceremonyTimeout,
		UserVerification: "preferred",
	}, nil
}

// AuthenticateFinish completes an authentication ceremony and issues a
// token pair. The order of checks matters: the credential is located
// first, the challenge is consumed before verification, and the account
// status gate runs before any counter state is written, so a disabled
// account leaves no trace on the credential.
func (s *PasskeyService) AuthenticateFinish(ctx context.Context, sessionID string, response passkey.AssertionResponse) (*AuthenticationResult, error) {
	credentialID, err := base64.RawURLEncoding.DecodeString(response.CredentialID)
	if err != nil {
		return nil, passkey.ErrAssertionFailed().WithDetail("error", "malformed credential id")
	}

	credential, err := s.credentials.FindByCredentialID(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	challenge, err := s.challenges.Consume(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	u, err := s.users.FindByID(ctx, credential.UserID)
	if err != nil {
		return nil, err
	}

	result, err := s.verifier.VerifyAssertion(u, credential, challenge, response)
	if err != nil {
		return nil, err
	}

	if !u.IsActive() {
		return nil, user.ErrDisabled()
	}

	if result.CloneWarning {
		return nil, passkey.ErrCounterReplay().
			WithDetail("stored_counter", credential.SignCounter).
			WithDetail("reported_counter", result.SignCounter)
	}
	if err := credential.VerifyAndAdvanceCounter(result.SignCounter); err != nil {
		return nil, err
	}

	credential.RecordUse()
	if err := s.credentials.Save(ctx, credential); err != nil {
		return nil, err
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
		WithMethod("passkey").
		WithMetadata("credential_id", credential.ID.String()))

	return &AuthenticationResult{User: u, TokenPair: pair}, nil
}

// List returns the credentials owned by the user.
func (s *PasskeyService) List(ctx context.Context, userID kernel.UserID) ([]*passkey.Credential, error) {
	return s.credentials.ListByUser(ctx, userID)
}

// Delete removes a credential owned by the caller. Removing another
// user's credential answers not-found rather than forbidden, so the
// endpoint does not leak credential existence.
func (s *PasskeyService) Delete(ctx context.Context, userID kernel.UserID, id kernel.CredentialID) error {
	credential, err := s.credentials.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if credential.UserID != userID {
		return passkey.ErrNotFound()
	}

	if err := s.credentials.Delete(ctx, id); err != nil {
		return err
	}

	s.audit.Publish(ctx, audit.
		NewEvent(audit.EventPasskeyDeleted, userID).
		WithMetadata("credential_id", id.String()))
	return nil
}
