package passkeyinfra

import (
	"context"
	"database/sql"

	"github.com/aibles/iam/pkg/errx"
	"github.com/aibles/iam/pkg/iam/passkey"
	"github.com/aibles/iam/pkg/kernel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresCredentialRepository is the PostgreSQL implementation of
// passkey.CredentialRepository.
type PostgresCredentialRepository struct {
	db *sqlx.DB
}

// NewPostgresCredentialRepository creates a new instance of the repository.
func NewPostgresCredentialRepository(db *sqlx.DB) passkey.CredentialRepository {
	return &PostgresCredentialRepository{db: db}
}

// Create inserts a new credential. The credential_id column carries a
// unique constraint enforcing global uniqueness across users.
func (r *PostgresCredentialRepository) Create(ctx context.Context, c *passkey.Credential) error {
	query := `
		INSERT INTO passkey_credentials (
			id, user_id, credential_id, public_key, sign_counter, aaguid,
			display_name, created_at, last_used_at
		) VALUES (
			:id, :user_id, :credential_id, :public_key, :sign_counter, :aaguid,
			:display_name, :created_at, :last_used_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, c)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return passkey.ErrCredentialExists()
		}
		return errx.Wrap(err, "failed to create credential", errx.TypeInternal).
			WithDetail("credential_id", c.ID.String())
	}
	return nil
}

// Save updates the mutable fields of a credential.
func (r *PostgresCredentialRepository) Save(ctx context.Context, c *passkey.Credential) error {
	query := `
		UPDATE passkey_credentials SET
			sign_counter = :sign_counter,
			display_name = :display_name,
			last_used_at = :last_used_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, c)
	if err != nil {
		return errx.Wrap(err, "failed to update credential", errx.TypeInternal).
			WithDetail("credential_id", c.ID.String())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected on update", errx.TypeInternal)
	}
	if rowsAffected == 0 {
		return passkey.ErrNotFound()
	}
	return nil
}

// FindByID looks up a credential by its record id.
func (r *PostgresCredentialRepository) FindByID(ctx context.Context, id kernel.CredentialID) (*passkey.Credential, error) {
	var c passkey.Credential
	query := `SELECT * FROM passkey_credentials WHERE id = $1`
	err := r.db.GetContext(ctx, &c, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, passkey.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find credential by id", errx.TypeInternal)
	}
	return &c, nil
}

// FindByCredentialID looks up a credential by the authenticator-assigned id.
func (r *PostgresCredentialRepository) FindByCredentialID(ctx context.Context, credentialID []byte) (*passkey.Credential, error) {
	var c passkey.Credential
	query := `SELECT * FROM passkey_credentials WHERE credential_id = $1`
	err := r.db.GetContext(ctx, &c, query, credentialID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, passkey.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find credential", errx.TypeInternal)
	}
	return &c, nil
}

// ListByUser returns every credential owned by the user, newest first.
func (r *PostgresCredentialRepository) ListByUser(ctx context.Context, userID kernel.UserID) ([]*passkey.Credential, error) {
	var rows []passkey.Credential
	query := `SELECT * FROM passkey_credentials WHERE user_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, userID.String()); err != nil {
		return nil, errx.Wrap(err, "failed to list credentials", errx.TypeInternal).
			WithDetail("user_id", userID.String())
	}

	credentials := make([]*passkey.Credential, 0, len(rows))
	for i := range rows {
		credentials = append(credentials, &rows[i])
	}
	return credentials, nil
}

// Delete removes a credential.
func (r *PostgresCredentialRepository) Delete(ctx context.Context, id kernel.CredentialID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM passkey_credentials WHERE id = $1`, id.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete credential", errx.TypeInternal).
			WithDetail("credential_id", id.String())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected on delete", errx.TypeInternal)
	}
	if rowsAffected == 0 {
		return passkey.ErrNotFound()
	}
	return nil
}
