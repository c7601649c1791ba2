package usersrv

import (
	"context"

	"github.com/aibles/iam/pkg/iam/audit"
	"github.com/aibles/iam/pkg/iam/user"
	"github.com/aibles/iam/pkg/kernel"
)

// UserService implements directory operations on top of the repository.
type UserService struct {
	repo  user.Repository
	audit audit.Publisher
}

func NewUserService(repo user.Repository, auditPublisher audit.Publisher) *UserService {
	return &UserService{
		repo:  repo,
		audit: auditPublisher,
	}
}

// Create registers a new directory entry with a unique email.
func (s *UserService) Create(ctx context.Context, email string, displayName *string) (*user.User, error) {
	u, err := user.New(email, displayName, nil)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	s.audit.Publish(ctx, audit.NewEvent(audit.EventUserCreated, u.ID))
	return u, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id kernel.UserID) (*user.User, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns a page of directory entries.
func (s *UserService) List(ctx context.Context, opts kernel.PaginationOptions) (kernel.Paginated[*user.User], error) {
	return s.repo.List(ctx, opts)
}

// UpdateProfile changes the display name.
func (s *UserService) UpdateProfile(ctx context.Context, id kernel.UserID, displayName string) (*user.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	u.UpdateProfile(displayName)
	if err := s.repo.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ChangeStatus enables or disables an account.
func (s *UserService) ChangeStatus(ctx context.Context, id kernel.UserID, status user.Status) (*user.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch status {
	case user.StatusActive:
		u.Enable()
	case user.StatusDisabled:
		u.Disable()
	}

	if err := s.repo.Save(ctx, u); err != nil {
		return nil, err
	}

	s.audit.Publish(ctx, audit.
		NewEvent(audit.EventUserStatusChanged, u.ID).
		WithMetadata("status", string(u.Status)))
	return u, nil
}

// Delete removes an account; owned passkey credentials cascade.
func (s *UserService) Delete(ctx context.Context, id kernel.UserID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.audit.Publish(ctx, audit.NewEvent(audit.EventUserDeleted, id))
	return nil
}
