package passkey_test

import (
	"testing"

	"github.com/aibles/iam/pkg/errx"
	"github.com/aibles/iam/pkg/iam/passkey"
	"github.com/aibles/iam/pkg/kernel"
)

func credentialWithCounter(counter uint32) *passkey.Credential {
	return passkey.NewCredential(kernel.NewUserID(), []byte("cred"), []byte("key"), nil, counter, nil)
}

func TestVerifyAndAdvanceCounter_StrictlyGreaterAdvances(t *testing.T) {
	c := credentialWithCounter(3)

	if err := c.VerifyAndAdvanceCounter(7); err != nil {
		t.Fatalf("expected advance, got %v", err)
	}
	if c.SignCounter != 7 {
		t.Fatalf("expected counter 7, got %d", c.SignCounter)
	}
}

func TestVerifyAndAdvanceCounter_EqualIsReplay(t *testing.T) {
	c := credentialWithCounter(7)

	if err := c.VerifyAndAdvanceCounter(7); !errx.IsCode(err, passkey.CodeCounterReplay) {
		t.Fatalf("expected COUNTER_REPLAY, got %v", err)
	}
	if c.SignCounter != 7 {
		t.Fatalf("counter must not move on replay, got %d", c.SignCounter)
	}
}

func TestVerifyAndAdvanceCounter_RegressionIsReplay(t *testing.T) {
	c := credentialWithCounter(7)

	if err := c.VerifyAndAdvanceCounter(5); !errx.IsCode(err, passkey.CodeCounterReplay) {
		t.Fatalf("expected COUNTER_REPLAY, got %v", err)
	}
}

func TestVerifyAndAdvanceCounter_BothZeroAccepted(t *testing.T) {
	c := credentialWithCounter(0)

	if err := c.VerifyAndAdvanceCounter(0); err != nil {
		t.Fatalf("counterless authenticator must be accepted, got %v", err)
	}
	if c.SignCounter != 0 {
		t.Fatalf("expected counter to stay 0, got %d", c.SignCounter)
	}
}

func TestVerifyAndAdvanceCounter_ZeroReportedAfterNonZeroIsReplay(t *testing.T) {
	c := credentialWithCounter(4)

	if err := c.VerifyAndAdvanceCounter(0); !errx.IsCode(err, passkey.CodeCounterReplay) {
		t.Fatalf("expected COUNTER_REPLAY, got %v", err)
	}
}
