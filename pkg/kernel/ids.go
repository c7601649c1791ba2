package kernel

import "github.com/google/uuid"

type UserID string

func NewUserID() UserID               { return UserID(uuid.NewString()) }
func ParseUserID(id string) (UserID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", err
	}
	return UserID(parsed.String()), nil
}
func (u UserID) String() string { return string(u) }
func (u UserID) IsEmpty() bool  { return string(u) == "" }

type CredentialID string

func NewCredentialID() CredentialID { return CredentialID(uuid.NewString()) }
func ParseCredentialID(id string) (CredentialID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", err
	}
	return CredentialID(parsed.String()), nil
}
func (c CredentialID) String() string { return string(c) }
