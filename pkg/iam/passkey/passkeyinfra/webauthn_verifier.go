package passkeyinfra

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aibles/iam/pkg/config"
	"github.com/aibles/iam/pkg/iam/passkey"
	"github.com/aibles/iam/pkg/iam/user"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// WebAuthnVerifier implements passkey.Verifier with go-webauthn. The
// ceremony payloads arrive as discrete base64url fields, so the adapter
// reassembles the standard credential JSON before handing it to the
// library parser.
type WebAuthnVerifier struct {
	webAuthn *webauthn.WebAuthn
}

func NewWebAuthnVerifier(cfg *config.WebAuthnConfig) (*WebAuthnVerifier, error) {
	webAuthn, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.RPName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("configure webauthn: %w", err)
	}
	return &WebAuthnVerifier{webAuthn: webAuthn}, nil
}

// webauthnUser adapts a directory user and its credentials to the library
// interface.
type webauthnUser struct {
	user        *user.User
	credentials []webauthn.Credential
}

func (u *webauthnUser) WebAuthnID() []byte {
	return []byte(u.user.ID.String())
}

func (u *webauthnUser) WebAuthnName() string {
	return u.user.Email
}

func (u *webauthnUser) WebAuthnDisplayName() string {
	if u.user.DisplayName != nil && *u.user.DisplayName != "" {
		return *u.user.DisplayName
	}
	return u.user.Email
}

func (u *webauthnUser) WebAuthnIcon() string {
	return ""
}

func (u *webauthnUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}

// sessionData rebuilds the ceremony session from the stored raw challenge.
// TTL enforcement already happened when the challenge was consumed, so the
// session carries no expiry of its own.
func sessionData(u *user.User, challenge []byte) webauthn.SessionData {
	return webauthn.SessionData{
		Challenge: base64.RawURLEncoding.EncodeToString(challenge),
		UserID:    []byte(u.ID.String()),
	}
}

// credentialJSON is the standard WebAuthn PublicKeyCredential envelope the
// library parsers expect.
type credentialJSON struct {
	ID       string          `json:"id"`
	RawID    string          `json:"rawId"`
	Type     string          `json:"type"`
	Response json.RawMessage `json:"response"`
}

type attestationResponseJSON struct {
	ClientDataJSON    string `json:"clientDataJSON"`
	AttestationObject string `json:"attestationObject"`
}

type assertionResponseJSON struct {
	ClientDataJSON    string `json:"clientDataJSON"`
	AuthenticatorData string `json:"authenticatorData"`
	Signature         string `json:"signature"`
	UserHandle        string `json:"userHandle,omitempty"`
}

func encodeCredentialJSON(credentialID string, response any) ([]byte, error) {
	inner, err := json.Marshal(response)
	if err != nil {
		return nil, err
	}
	return json.Marshal(credentialJSON{
		ID:       credentialID,
		RawID:    credentialID,
		Type:     "public-key",
		Response: inner,
	})
}

// VerifyRegistration checks the attestation against the issued challenge
// and returns the new credential material.
func (v *WebAuthnVerifier) VerifyRegistration(u *user.User, challenge []byte, response passkey.AttestationResponse) (*passkey.RegistrationResult, error) {
	body, err := encodeCredentialJSON(response.CredentialID, attestationResponseJSON{
		ClientDataJSON:    response.ClientDataJSON,
		AttestationObject: response.AttestationObject,
	})
	if err != nil {
		return nil, passkey.ErrAttestationFailed().WithDetail("error", err.Error())
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(body))
	if err != nil {
		return nil, passkey.ErrAttestationFailed().WithDetail("error", err.Error())
	}

	webUser := &webauthnUser{user: u}
	credential, err := v.webAuthn.CreateCredential(webUser, sessionData(u, challenge), parsed)
	if err != nil {
		return nil, passkey.ErrAttestationFailed().WithDetail("error", err.Error())
	}

	return &passkey.RegistrationResult{
		CredentialID: credential.ID,
		PublicKey:    credential.PublicKey,
		AAGUID:       credential.Authenticator.AAGUID,
		SignCounter:  credential.Authenticator.SignCount,
	}, nil
}

// VerifyAssertion checks the assertion signature against the stored
// credential. The returned counter is reported, not persisted; the caller
// decides whether it may advance.
func (v *WebAuthnVerifier) VerifyAssertion(u *user.User, credential *passkey.Credential, challenge []byte, response passkey.AssertionResponse) (*passkey.AssertionResult, error) {
	body, err := encodeCredentialJSON(response.CredentialID, assertionResponseJSON{
		ClientDataJSON:    response.ClientDataJSON,
		AuthenticatorData: response.AuthenticatorData,
		Signature:         response.Signature,
		UserHandle:        response.UserHandle,
	})
	if err != nil {
		return nil, passkey.ErrAssertionFailed().WithDetail("error", err.Error())
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(body))
	if err != nil {
		return nil, passkey.ErrAssertionFailed().WithDetail("error", err.Error())
	}

	webUser := &webauthnUser{
		user: u,
		credentials: []webauthn.Credential{{
			ID:        credential.CredentialID,
			PublicKey: credential.PublicKey,
			Authenticator: webauthn.Authenticator{
				AAGUID:    credential.AAGUID,
				SignCount: credential.SignCounter,
			},
		}},
	}

	validated, err := v.webAuthn.ValidateLogin(webUser, sessionData(u, challenge), parsed)
	if err != nil {
		return nil, passkey.ErrAssertionFailed().WithDetail("error", err.Error())
	}

	return &passkey.AssertionResult{
		SignCounter:  validated.Authenticator.SignCount,
		CloneWarning: validated.Authenticator.CloneWarning,
	}, nil
}
