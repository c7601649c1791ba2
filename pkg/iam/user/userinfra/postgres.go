package userinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/aibles/iam/pkg/errx"
	"github.com/aibles/iam/pkg/iam/user"
	"github.com/aibles/iam/pkg/kernel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresUserRepository is the PostgreSQL implementation of user.Repository.
type PostgresUserRepository struct {
	db *sqlx.DB
}

// NewPostgresUserRepository creates a new instance of the repository.
func NewPostgresUserRepository(db *sqlx.DB) user.Repository {
	return &PostgresUserRepository{db: db}
}

// userPersistence mirrors the users table; roles are stored as a text array.
type userPersistence struct {
	ID              string         `db:"id"`
	Email           string         `db:"email"`
	DisplayName     *string        `db:"display_name"`
	ExternalSubject *string        `db:"external_subject"`
	Status          string         `db:"status"`
	Roles           pq.StringArray `db:"roles"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
	LastLoginAt     *time.Time     `db:"last_login_at"`
}

func toPersistence(u *user.User) userPersistence {
	return userPersistence{
		ID:              u.ID.String(),
		Email:           u.Email,
		DisplayName:     u.DisplayName,
		ExternalSubject: u.ExternalSubject,
		Status:          string(u.Status),
		Roles:           pq.StringArray(u.Roles),
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
		LastLoginAt:     u.LastLoginAt,
	}
}

func toDomain(p userPersistence) *user.User {
	return &user.User{
		ID:              kernel.UserID(p.ID),
		Email:           p.Email,
		DisplayName:     p.DisplayName,
		ExternalSubject: p.ExternalSubject,
		Status:          user.Status(p.Status),
		Roles:           []string(p.Roles),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		LastLoginAt:     p.LastLoginAt,
	}
}

// Create inserts a new user.
func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (
			id, email, display_name, external_subject, status, roles,
			created_at, updated_at, last_login_at
		) VALUES (
			:id, :email, :display_name, :external_subject, :status, :roles,
			:created_at, :updated_at, :last_login_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, toPersistence(u))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return user.ErrEmailExists().WithDetail("email", u.Email)
		}
		return errx.Wrap(err, "failed to create user", errx.TypeInternal).
			WithDetail("user_id", u.ID.String())
	}
	return nil
}

// Save updates an existing user.
func (r *PostgresUserRepository) Save(ctx context.Context, u *user.User) error {
	query := `
		UPDATE users SET
			email = :email,
			display_name = :display_name,
			external_subject = :external_subject,
			status = :status,
			roles = :roles,
			updated_at = :updated_at,
			last_login_at = :last_login_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, toPersistence(u))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return user.ErrEmailExists().WithDetail("email", u.Email)
		}
		return errx.Wrap(err, "failed to update user", errx.TypeInternal).
			WithDetail("user_id", u.ID.String())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected on update", errx.TypeInternal)
	}
	if rowsAffected == 0 {
		return user.ErrNotFound()
	}
	return nil
}

// FindByID looks up a user by id.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id kernel.UserID) (*user.User, error) {
	var p userPersistence
	query := `SELECT * FROM users WHERE id = $1`
	err := r.db.GetContext(ctx, &p, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find user by id", errx.TypeInternal)
	}
	return toDomain(p), nil
}

// FindByEmail looks up a user by normalized email.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	var p userPersistence
	query := `SELECT * FROM users WHERE email = $1`
	err := r.db.GetContext(ctx, &p, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find user by email", errx.TypeInternal)
	}
	return toDomain(p), nil
}

// FindByExternalSubject looks up a user by its federated identity subject.
func (r *PostgresUserRepository) FindByExternalSubject(ctx context.Context, subject string) (*user.User, error) {
	var p userPersistence
	query := `SELECT * FROM users WHERE external_subject = $1`
	err := r.db.GetContext(ctx, &p, query, subject)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find user by external subject", errx.TypeInternal)
	}
	return toDomain(p), nil
}

// List returns a page of users ordered by creation time.
func (r *PostgresUserRepository) List(ctx context.Context, opts kernel.PaginationOptions) (kernel.Paginated[*user.User], error) {
	opts = opts.Normalize()

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`); err != nil {
		return kernel.Paginated[*user.User]{}, errx.Wrap(err, "failed to count users", errx.TypeInternal)
	}

	var rows []userPersistence
	query := `SELECT * FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &rows, query, opts.PageSize, opts.Offset()); err != nil {
		return kernel.Paginated[*user.User]{}, errx.Wrap(err, "failed to list users", errx.TypeInternal)
	}

	items := make([]*user.User, 0, len(rows))
	for _, p := range rows {
		items = append(items, toDomain(p))
	}
	return kernel.NewPaginated(items, opts.Page, opts.PageSize, total), nil
}

// Delete removes a user; passkey credentials cascade via the FK.
func (r *PostgresUserRepository) Delete(ctx context.Context, id kernel.UserID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete user", errx.TypeInternal).
			WithDetail("user_id", id.String())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected on delete", errx.TypeInternal)
	}
	if rowsAffected == 0 {
		return user.ErrNotFound()
	}
	return nil
}
