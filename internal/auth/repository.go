package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-iam/meridian-iam/internal/shared"
)

// Repository reads credentials from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CredentialByUsername fetches the login view of a live account.
func (r *Repository) CredentialByUsername(ctx context.Context, username string) (Credential, error) {
	var cred Credential
	err := r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, is_active, last_login_at
		FROM users WHERE username = $1 AND deleted_at IS NULL`, username).
		Scan(&cred.UserID, &cred.Username, &cred.PasswordHash, &cred.IsActive, &cred.LastLoginAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credential{}, shared.ErrNotFound
	}
	if err != nil {
		return Credential{}, err
	}
	return cred, nil
}

// TouchLastLogin records a successful login.
func (r *Repository) TouchLastLogin(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET last_login_at = now() WHERE id = $1`, userID)
	return err
}
