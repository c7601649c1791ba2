package user

import (
	"net/http"
	"strings"
	"time"

	"github.com/aibles/iam/pkg/errx"
	"github.com/aibles/iam/pkg/kernel"
)

// Status is the lifecycle state of a user account.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusDisabled Status = "DISABLED"
)

// RoleUser is granted to every account on creation.
const RoleUser = "USER"

// User is a directory entry. Accounts are created explicitly or on first
// federated login and own their passkey credentials.
type User struct {
	ID              kernel.UserID `db:"id" json:"id"`
	Email           string        `db:"email" json:"email"`
	DisplayName     *string       `db:"display_name" json:"display_name,omitempty"`
	ExternalSubject *string       `db:"external_subject" json:"-"`
	Status          Status        `db:"status" json:"status"`
	Roles           []string      `db:"-" json:"roles"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
	LastLoginAt     *time.Time    `db:"last_login_at" json:"last_login_at,omitempty"`
}

// New creates a user with a normalized email and the default role.
func New(email string, displayName, externalSubject *string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail().WithDetail("email", email)
	}

	if displayName != nil {
		trimmed := strings.TrimSpace(*displayName)
		displayName = &trimmed
	}

	now := time.Now()
	return &User{
		ID:              kernel.NewUserID(),
		Email:           email,
		DisplayName:     displayName,
		ExternalSubject: externalSubject,
		Status:          StatusActive,
		Roles:           []string{RoleUser},
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// IsActive reports whether the account may authenticate.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// UpdateProfile changes the display name.
func (u *User) UpdateProfile(displayName string) {
	trimmed := strings.TrimSpace(displayName)
	u.DisplayName = &trimmed
	u.UpdatedAt = time.Now()
}

// Disable blocks the account from authenticating.
func (u *User) Disable() {
	u.Status = StatusDisabled
	u.UpdatedAt = time.Now()
}

// Enable reactivates the account.
func (u *User) Enable() {
	u.Status = StatusActive
	u.UpdatedAt = time.Now()
}

// RecordLogin stamps a successful authentication.
func (u *User) RecordLogin() {
	now := time.Now()
	u.LastLoginAt = &now
	u.UpdatedAt = now
}

// LinkExternalAccount binds a federated identity subject to the account.
func (u *User) LinkExternalAccount(subject string) {
	u.ExternalSubject = &subject
	u.UpdatedAt = time.Now()
}

var ErrRegistry = errx.NewRegistry("USER")

var (
	CodeNotFound     = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "User not found")
	CodeEmailExists  = ErrRegistry.Register("EMAIL_EXISTS", errx.TypeConflict, http.StatusConflict, "Email already registered")
	CodeDisabled     = ErrRegistry.Register("DISABLED", errx.TypeForbidden, http.StatusForbidden, "Account is disabled")
	CodeInvalidEmail = ErrRegistry.Register("INVALID_EMAIL", errx.TypeValidation, http.StatusBadRequest, "Invalid email address")
)

func ErrNotFound() *errx.Error     { return ErrRegistry.New(CodeNotFound) }
func ErrEmailExists() *errx.Error  { return ErrRegistry.New(CodeEmailExists) }
func ErrDisabled() *errx.Error     { return ErrRegistry.New(CodeDisabled) }
func ErrInvalidEmail() *errx.Error { return ErrRegistry.New(CodeInvalidEmail) }
