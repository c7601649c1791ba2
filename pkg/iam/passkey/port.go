package passkey

import (
	"context"
	"time"

	"github.com/aibles/iam/pkg/iam/user"
	"github.com/aibles/iam/pkg/kernel"
)

// ChallengeStore holds single-use ceremony challenges keyed by session id.
// Consume must be atomic: a challenge can be redeemed exactly once, and a
// missing or expired entry is indistinguishable from a used one.
type ChallengeStore interface {
	Issue(ctx context.Context, sessionID string, challenge []byte, ttl time.Duration) error
	Consume(ctx context.Context, sessionID string) ([]byte, error)
}

// CredentialRepository persists registered credentials.
type CredentialRepository interface {
	Create(ctx context.Context, credential *Credential) error
	Save(ctx context.Context, credential *Credential) error
	FindByID(ctx context.Context, id kernel.CredentialID) (*Credential, error)
	FindByCredentialID(ctx context.Context, credentialID []byte) (*Credential, error)
	ListByUser(ctx context.Context, userID kernel.UserID) ([]*Credential, error)
	Delete(ctx context.Context, id kernel.CredentialID) error
}

// AttestationResponse is the client payload finishing a registration
// ceremony. All fields are base64url without padding, as produced by the
// browser credential API.
type AttestationResponse struct {
	CredentialID      string `json:"credentialId"`
	ClientDataJSON    string `json:"clientDataJSON"`
	AttestationObject string `json:"attestationObject"`
}

// AssertionResponse is the client payload finishing an authentication
// ceremony. Fields are base64url without padding.
type AssertionResponse struct {
	CredentialID      string `json:"credentialId"`
	ClientDataJSON    string `json:"clientDataJSON"`
	AuthenticatorData string `json:"authenticatorData"`
	Signature         string `json:"signature"`
	UserHandle        string `json:"userHandle,omitempty"`
}

// RegistrationResult is a verified attestation ready to be persisted.
type RegistrationResult struct {
	CredentialID []byte
	PublicKey    []byte
	AAGUID       []byte
	SignCounter  uint32
}

// AssertionResult reports the outcome of a verified assertion. CloneWarning
// is set when the authenticator reported a counter at or below the stored
// value, which indicates a cloned credential.
type AssertionResult struct {
	SignCounter  uint32
	CloneWarning bool
}

// Verifier performs the cryptographic WebAuthn ceremony checks. It never
// mutates stored state; counter advancement stays with the caller.
type Verifier interface {
	VerifyRegistration(u *user.User, challenge []byte, response AttestationResponse) (*RegistrationResult, error)
	VerifyAssertion(u *user.User, credential *Credential, challenge []byte, response AssertionResponse) (*AssertionResult, error)
}
