package permissions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-iam/meridian-iam/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence for permissions and
// role grants.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const permissionColumns = `id, name, COALESCE(description, ''), created_at, updated_at, deleted_at`

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	return p, err
}

// ListPermissions returns all live permissions ordered by name.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+permissionColumns+`
		FROM permissions WHERE deleted_at IS NULL ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// GetPermission fetches a live permission by ID.
func (r *Repository) GetPermission(ctx context.Context, id int64) (Permission, error) {
	p, err := scanPermission(r.pool.QueryRow(ctx, `
		SELECT `+permissionColumns+`
		FROM permissions WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, fmt.Errorf("%w: permission %d", httpx.ErrNotFound, id)
	}
	if err != nil {
		return Permission{}, err
	}
	return p, nil
}

// CreatePermission inserts a permission.
func (r *Repository) CreatePermission(ctx context.Context, name, description string) (Permission, error) {
	p, err := scanPermission(r.pool.QueryRow(ctx, `
		INSERT INTO permissions (name, description)
		VALUES ($1, NULLIF($2, ''))
		RETURNING `+permissionColumns, name, description))
	if isUniqueViolation(err) {
		return Permission{}, fmt.Errorf("%w: permission name %q", httpx.ErrDuplicate, name)
	}
	if err != nil {
		return Permission{}, err
	}
	return p, nil
}

// UpdatePermission updates a live permission.
func (r *Repository) UpdatePermission(ctx context.Context, id int64, name, description string) (Permission, error) {
	p, err := scanPermission(r.pool.QueryRow(ctx, `
		UPDATE permissions
		SET name = $2, description = NULLIF($3, ''), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+permissionColumns, id, name, description))
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, fmt.Errorf("%w: permission %d", httpx.ErrNotFound, id)
	}
	if isUniqueViolation(err) {
		return Permission{}, fmt.Errorf("%w: permission name %q", httpx.ErrDuplicate, name)
	}
	if err != nil {
		return Permission{}, err
	}
	return p, nil
}

// SoftDeletePermission marks a permission deleted. Grants pointing at it are
// ignored by access resolution until cleaned up.
func (r *Repository) SoftDeletePermission(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE permissions SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: permission %d", httpx.ErrNotFound, id)
	}
	return nil
}

// ListGrants returns role grants, optionally filtered to one role.
func (r *Repository) ListGrants(ctx context.Context, roleID int64) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, role_id, permission_id, created_at
		FROM role_permission_mappings
		WHERE $1 = 0 OR role_id = $1
		ORDER BY id`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.ID, &g.RoleID, &g.PermissionID, &g.CreatedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// AttachRole grants a permission to a role.
func (r *Repository) AttachRole(ctx context.Context, roleID, permissionID int64) (Grant, error) {
	var g Grant
	err := r.pool.QueryRow(ctx, `
		INSERT INTO role_permission_mappings (role_id, permission_id)
		VALUES ($1, $2)
		RETURNING id, role_id, permission_id, created_at`, roleID, permissionID).
		Scan(&g.ID, &g.RoleID, &g.PermissionID, &g.CreatedAt)
	if isUniqueViolation(err) {
		return Grant{}, fmt.Errorf("%w: role %d already has permission %d",
			httpx.ErrDuplicate, roleID, permissionID)
	}
	if err != nil {
		return Grant{}, err
	}
	return g, nil
}

// DetachRole removes a grant row for good.
func (r *Repository) DetachRole(ctx context.Context, grantID int64) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM role_permission_mappings WHERE id = $1`, grantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: permission grant %d", httpx.ErrNotFound, grantID)
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
