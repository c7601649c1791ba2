package user

import (
	"context"

	"github.com/aibles/iam/pkg/kernel"
)

// Repository defines the contract for user persistence
type Repository interface {
	Create(ctx context.Context, u *User) error
	Save(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id kernel.UserID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByExternalSubject(ctx context.Context, subject string) (*User, error)
	List(ctx context.Context, opts kernel.PaginationOptions) (kernel.Paginated[*User], error)
	Delete(ctx context.Context, id kernel.UserID) error
}
