package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-iam/meridian-iam/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence for users and role
// assignments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, username, email, COALESCE(full_name, ''), is_active,
	created_at, updated_at, deleted_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	return u, err
}

// CountUsers returns the number of live users.
func (r *Repository) CountUsers(ctx context.Context) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`).Scan(&total)
	return total, err
}

// ListUsers returns a page of live users ordered by username.
func (r *Repository) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE deleted_at IS NULL
		ORDER BY username LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUser fetches a live user by ID.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, fmt.Errorf("%w: user %d", httpx.ErrNotFound, id)
	}
	return u, err
}

// CreateUser inserts a user with a bcrypt password hash.
func (r *Repository) CreateUser(ctx context.Context, username, email, fullName string, passwordHash []byte) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, full_name, password_hash, is_active)
		VALUES ($1, $2, NULLIF($3, ''), $4, TRUE)
		RETURNING `+userColumns, username, email, fullName, passwordHash))
	if isUniqueViolation(err) {
		return User{}, fmt.Errorf("%w: username or email already taken", httpx.ErrDuplicate)
	}
	return u, err
}

// UpdateUser updates profile attributes of a live user.
func (r *Repository) UpdateUser(ctx context.Context, id int64, email, fullName string, isActive bool) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `
		UPDATE users
		SET email = $2, full_name = NULLIF($3, ''), is_active = $4, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+userColumns, id, email, fullName, isActive))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, fmt.Errorf("%w: user %d", httpx.ErrNotFound, id)
	}
	if isUniqueViolation(err) {
		return User{}, fmt.Errorf("%w: email already taken", httpx.ErrDuplicate)
	}
	return u, err
}

// SoftDeleteUser marks a user deleted.
func (r *Repository) SoftDeleteUser(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %d", httpx.ErrNotFound, id)
	}
	return nil
}

// ListAssignments returns all role assignments for a user, active or not.
func (r *Repository) ListAssignments(ctx context.Context, userID int64) ([]RoleAssignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, role_id, COALESCE(assigned_by, 0), is_active, created_at, updated_at
		FROM user_role_mappings WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assignments []RoleAssignment
	for rows.Next() {
		var a RoleAssignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.RoleID, &a.AssignedBy,
			&a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// AssignRole creates an active role assignment recording who granted it.
func (r *Repository) AssignRole(ctx context.Context, userID, roleID, assignedBy int64) (RoleAssignment, error) {
	var a RoleAssignment
	err := r.pool.QueryRow(ctx, `
		INSERT INTO user_role_mappings (user_id, role_id, assigned_by, is_active)
		VALUES ($1, $2, NULLIF($3, 0), TRUE)
		RETURNING id, user_id, role_id, COALESCE(assigned_by, 0), is_active, created_at, updated_at`,
		userID, roleID, assignedBy).
		Scan(&a.ID, &a.UserID, &a.RoleID, &a.AssignedBy, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if isUniqueViolation(err) {
		return RoleAssignment{}, fmt.Errorf("%w: user %d already assigned role %d", httpx.ErrDuplicate, userID, roleID)
	}
	return a, err
}

// SetAssignmentActive toggles an assignment without losing its audit trail.
func (r *Repository) SetAssignmentActive(ctx context.Context, assignmentID int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE user_role_mappings SET is_active = $2, updated_at = now()
		WHERE id = $1`, assignmentID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: role assignment %d", httpx.ErrNotFound, assignmentID)
	}
	return nil
}

// RevokeRole deletes an assignment row for good.
func (r *Repository) RevokeRole(ctx context.Context, assignmentID int64) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM user_role_mappings WHERE id = $1`, assignmentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: role assignment %d", httpx.ErrNotFound, assignmentID)
	}
	return nil
}

// LiveRoleExists reports whether a live role with the given ID exists.
func (r *Repository) LiveRoleExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1 AND deleted_at IS NULL)`, id).
		Scan(&exists)
	return exists, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
