package user_test

import (
	"testing"

	"github.com/aibles/iam/pkg/errx"
	"github.com/aibles/iam/pkg/iam/user"
)

func TestNew_NormalizesEmail(t *testing.T) {
	u, err := user.New("  Alice@Example.COM ", nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", u.Email)
	}
	if u.Status != user.StatusActive {
		t.Fatalf("expected ACTIVE status, got %s", u.Status)
	}
	if len(u.Roles) != 1 || u.Roles[0] != user.RoleUser {
		t.Fatalf("expected default USER role, got %v", u.Roles)
	}
	if u.ID.IsEmpty() {
		t.Fatal("expected a generated id")
	}
}

func TestNew_RejectsInvalidEmail(t *testing.T) {
	for _, email := range []string{"", "   ", "not-an-email"} {
		if _, err := user.New(email, nil, nil); !errx.IsCode(err, user.CodeInvalidEmail) {
			t.Fatalf("expected INVALID_EMAIL for %q, got %v", email, err)
		}
	}
}

func TestDisableEnable(t *testing.T) {
	u, err := user.New("alice@example.com", nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	u.Disable()
	if u.IsActive() {
		t.Fatal("expected disabled account")
	}

	u.Enable()
	if !u.IsActive() {
		t.Fatal("expected re-enabled account")
	}
}

func TestLinkExternalAccount(t *testing.T) {
	u, err := user.New("alice@example.com", nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if u.ExternalSubject != nil {
		t.Fatal("expected no subject initially")
	}

	u.LinkExternalAccount("google:42")
	if u.ExternalSubject == nil || *u.ExternalSubject != "google:42" {
		t.Fatalf("expected linked subject, got %v", u.ExternalSubject)
	}
}

func TestRecordLogin(t *testing.T) {
	u, err := user.New("alice@example.com", nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if u.LastLoginAt != nil {
		t.Fatal("expected no login timestamp initially")
	}

	u.RecordLogin()
	if u.LastLoginAt == nil {
		t.Fatal("expected a login timestamp")
	}
}
