package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-iam/meridian-iam/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns all live roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, COALESCE(department, ''), created_at, updated_at
		FROM roles WHERE deleted_at IS NULL ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.Department,
			&role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a live role by ID.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, description, COALESCE(department, ''), created_at, updated_at
		FROM roles WHERE id = $1 AND deleted_at IS NULL`, id).
		Scan(&role.ID, &role.Name, &role.Description, &role.Department,
			&role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, fmt.Errorf("%w: role %d", httpx.ErrNotFound, id)
	}
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, name, description, department string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, description, department)
		VALUES ($1, $2, NULLIF($3, ''))
		RETURNING id, name, description, COALESCE(department, ''), created_at, updated_at`,
		name, description, department).
		Scan(&role.ID, &role.Name, &role.Description, &role.Department,
			&role.CreatedAt, &role.UpdatedAt)
	if isUniqueViolation(err) {
		return Role{}, fmt.Errorf("%w: role name %q", httpx.ErrDuplicate, name)
	}
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// UpdateRole updates a live role.
func (r *Repository) UpdateRole(ctx context.Context, id int64, name, description, department string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `
		UPDATE roles SET name = $2, description = $3, department = NULLIF($4, ''), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING id, name, description, COALESCE(department, ''), created_at, updated_at`,
		id, name, description, department).
		Scan(&role.ID, &role.Name, &role.Description, &role.Department,
			&role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, fmt.Errorf("%w: role %d", httpx.ErrNotFound, id)
	}
	if isUniqueViolation(err) {
		return Role{}, fmt.Errorf("%w: role name %q", httpx.ErrDuplicate, name)
	}
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// SoftDeleteRole flags a role as deleted. The record is retained for audit.
func (r *Repository) SoftDeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE roles SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: role %d", httpx.ErrNotFound, id)
	}
	return nil
}

// LiveRolesExist reports whether every given role exists and is not deleted.
func (r *Repository) LiveRolesExist(ctx context.Context, ids []int64) (bool, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM roles WHERE id = ANY($1) AND deleted_at IS NULL`, ids).Scan(&count)
	if err != nil {
		return false, err
	}
	return count == len(ids), nil
}

// ListEdges returns the full hierarchy edge set ordered by ID.
func (r *Repository) ListEdges(ctx context.Context) ([]Edge, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, parent_role_id, child_role_id, created_at FROM role_hierarchy ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var edges []Edge
	for rows.Next() {
		var edge Edge
		if err := rows.Scan(&edge.ID, &edge.ParentRoleID, &edge.ChildRoleID, &edge.CreatedAt); err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

// CreateEdge inserts a hierarchy edge.
func (r *Repository) CreateEdge(ctx context.Context, parentID, childID int64) (Edge, error) {
	var edge Edge
	err := r.pool.QueryRow(ctx, `
		INSERT INTO role_hierarchy (parent_role_id, child_role_id)
		VALUES ($1, $2)
		RETURNING id, parent_role_id, child_role_id, created_at`,
		parentID, childID).
		Scan(&edge.ID, &edge.ParentRoleID, &edge.ChildRoleID, &edge.CreatedAt)
	if isUniqueViolation(err) {
		return Edge{}, fmt.Errorf("%w: edge %d -> %d", httpx.ErrDuplicate, parentID, childID)
	}
	if err != nil {
		return Edge{}, err
	}
	return edge, nil
}

// DeleteEdge physically removes a hierarchy edge.
func (r *Repository) DeleteEdge(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM role_hierarchy WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: hierarchy edge %d", httpx.ErrNotFound, id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
