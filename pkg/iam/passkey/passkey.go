package passkey

import (
	"net/http"
	"time"

	"github.com/aibles/iam/pkg/errx"
	"github.com/aibles/iam/pkg/kernel"
)

// Credential is a registered WebAuthn credential bound to a user. The
// CredentialID is the authenticator-assigned identifier and is globally
// unique across all users.
type Credential struct {
	ID           kernel.CredentialID `db:"id" json:"id"`
	UserID       kernel.UserID       `db:"user_id" json:"user_id"`
	CredentialID []byte              `db:"credential_id" json:"credential_id"`
	PublicKey    []byte              `db:"public_key" json:"-"`
	SignCounter  uint32              `db:"sign_counter" json:"sign_counter"`
	AAGUID       []byte              `db:"aaguid" json:"-"`
	DisplayName  *string             `db:"display_name" json:"display_name,omitempty"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
	LastUsedAt   *time.Time          `db:"last_used_at" json:"last_used_at,omitempty"`
}

// NewCredential creates a credential record after a verified registration.
func NewCredential(userID kernel.UserID, credentialID, publicKey, aaguid []byte, signCounter uint32, displayName *string) *Credential {
	return &Credential{
		ID:           kernel.NewCredentialID(),
		UserID:       userID,
		CredentialID: credentialID,
		PublicKey:    publicKey,
		SignCounter:  signCounter,
		AAGUID:       aaguid,
		DisplayName:  displayName,
		CreatedAt:    time.Now(),
	}
}

// VerifyAndAdvanceCounter enforces the monotonic signature counter. The
// reported value must be strictly greater than the stored one, except when
// both are exactly zero: authenticators without a counter always report
// zero and are accepted as-is.
func (c *Credential) VerifyAndAdvanceCounter(reported uint32) error {
	if c.SignCounter == 0 && reported == 0 {
		return nil
	}
	if reported <= c.SignCounter {
		return ErrCounterReplay().
			WithDetail("stored_counter", c.SignCounter).
			WithDetail("reported_counter", reported)
	}
	c.SignCounter = reported
	return nil
}

// RecordUse stamps a successful assertion.
func (c *Credential) RecordUse() {
	now := time.Now()
	c.LastUsedAt = &now
}

var ErrRegistry = errx.NewRegistry("PASSKEY")

var (
	CodeChallengeExpired  = ErrRegistry.Register("CHALLENGE_EXPIRED", errx.TypeValidation, http.StatusBadRequest, "Challenge expired or already used")
	CodeAttestationFailed = ErrRegistry.Register("ATTESTATION_FAILED", errx.TypeValidation, http.StatusBadRequest, "Attestation verification failed")
	CodeAssertionFailed   = ErrRegistry.Register("ASSERTION_FAILED", errx.TypeAuthorization, http.StatusUnauthorized, "Assertion verification failed")
	CodeCounterReplay     = ErrRegistry.Register("COUNTER_REPLAY", errx.TypeAuthorization, http.StatusUnauthorized, "Signature counter did not advance")
	CodeNotFound          = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Credential not found")
	CodeCredentialExists  = ErrRegistry.Register("CREDENTIAL_EXISTS", errx.TypeConflict, http.StatusConflict, "Credential already registered")
)

func ErrChallengeExpired() *errx.Error  { return ErrRegistry.New(CodeChallengeExpired) }
func ErrAttestationFailed() *errx.Error { return ErrRegistry.New(CodeAttestationFailed) }
func ErrAssertionFailed() *errx.Error   { return ErrRegistry.New(CodeAssertionFailed) }
func ErrCounterReplay() *errx.Error     { return ErrRegistry.New(CodeCounterReplay) }
func ErrNotFound() *errx.Error          { return ErrRegistry.New(CodeNotFound) }
func ErrCredentialExists() *errx.Error  { return ErrRegistry.New(CodeCredentialExists) }
