package passkeyapi

import (
	"encoding/json"
	"testing"
)

// The finish payloads are flat: ceremony fields sit alongside sessionId,
// not under a nested credential object.

func TestRegisterFinishRequest_DecodesFlatPayload(t *testing.T) {
	body := `{
		"sessionId": "sess-1",
		"displayName": "YubiKey",
		"credentialId": "Y3JlZA",
		"clientDataJSON": "Y2xpZW50LWRhdGE",
		"attestationObject": "YXR0LW9iag"
	}`

	var req registerFinishRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if req.SessionID != "sess-1" {
		t.Fatalf("unexpected sessionId %q", req.SessionID)
	}
	if req.DisplayName == nil || *req.DisplayName != "YubiKey" {
		t.Fatalf("unexpected displayName %v", req.DisplayName)
	}
	if req.CredentialID != "Y3JlZA" {
		t.Fatalf("unexpected credentialId %q", req.CredentialID)
	}
	if req.ClientDataJSON != "Y2xpZW50LWRhdGE" {
		t.Fatalf("unexpected clientDataJSON %q", req.ClientDataJSON)
	}
	if req.AttestationObject != "YXR0LW9iag" {
		t.Fatalf("unexpected attestationObject %q", req.AttestationObject)
	}
}

func TestAuthenticateFinishRequest_DecodesFlatPayload(t *testing.T) {
	body := `{
		"sessionId": "sess-2",
		"credentialId": "Y3JlZA",
		"clientDataJSON": "Y2xpZW50LWRhdGE",
		"authenticatorData": "YXV0aC1kYXRh",
		"signature": "c2lnbmF0dXJl",
		"userHandle": "dXNlci0x"
	}`

	var req authenticateFinishRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if req.SessionID != "sess-2" {
		t.Fatalf("unexpected sessionId %q", req.SessionID)
	}
	if req.CredentialID != "Y3JlZA" {
		t.Fatalf("unexpected credentialId %q", req.CredentialID)
	}
	if req.AuthenticatorData != "YXV0aC1kYXRh" {
		t.Fatalf("unexpected authenticatorData %q", req.AuthenticatorData)
	}
	if req.Signature != "c2lnbmF0dXJl" {
		t.Fatalf("unexpected signature %q", req.Signature)
	}
	if req.UserHandle != "dXNlci0x" {
		t.Fatalf("unexpected userHandle %q", req.UserHandle)
	}
}
