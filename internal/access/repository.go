package access

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the PostgreSQL implementation of Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ActiveRoleMappings returns the user's role assignments. The join table
// carries no soft delete; revoked assignments are physically removed.
func (r *Repository) ActiveRoleMappings(ctx context.Context, userID int64) ([]RoleMapping, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT role_id, is_active FROM user_role_mappings WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var mappings []RoleMapping
	for rows.Next() {
		var m RoleMapping
		if err := rows.Scan(&m.RoleID, &m.IsActive); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// LiveRoleIDs returns the identifiers of all non-deleted roles.
func (r *Repository) LiveRoleIDs(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM roles WHERE deleted_at IS NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := map[int64]struct{}{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// HierarchyEdges returns the full role hierarchy edge set.
func (r *Repository) HierarchyEdges(ctx context.Context) ([]HierarchyEdge, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT parent_role_id, child_role_id FROM role_hierarchy`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var edges []HierarchyEdge
	for rows.Next() {
		var e HierarchyEdge
		if err := rows.Scan(&e.ParentRoleID, &e.ChildRoleID); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// FeatureCatalog returns every feature with its deletion state surfaced,
// since the engine applies the combined reachability and validity filter
// itself.
func (r *Repository) FeatureCatalog(ctx context.Context) ([]FeatureRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, COALESCE(parent_feature_id, 0), name, route, COALESCE(icon, ''),
		       display_order, level, is_main_menu, is_active, deleted_at IS NOT NULL
		FROM features`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var features []FeatureRecord
	for rows.Next() {
		var (
			f       FeatureRecord
			deleted bool
		)
		if err := rows.Scan(&f.ID, &f.ParentID, &f.Name, &f.Route, &f.Icon,
			&f.DisplayOrder, &f.Level, &f.IsMainMenu, &f.IsActive, &deleted); err != nil {
			return nil, err
		}
		if deleted {
			f.Lifecycle = LifecycleSoftDeleted
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

// PageCatalog returns every page with its deletion state surfaced.
func (r *Repository) PageCatalog(ctx context.Context) ([]PageRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, route, deleted_at IS NOT NULL FROM pages`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pages []PageRecord
	for rows.Next() {
		var (
			p       PageRecord
			deleted bool
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Route, &deleted); err != nil {
			return nil, err
		}
		if deleted {
			p.Lifecycle = LifecycleSoftDeleted
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// PageFeatureMappings returns all page-to-feature joins.
func (r *Repository) PageFeatureMappings(ctx context.Context) ([]PageFeatureMapping, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT page_id, feature_id FROM page_feature_mappings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var mappings []PageFeatureMapping
	for rows.Next() {
		var m PageFeatureMapping
		if err := rows.Scan(&m.PageID, &m.FeatureID); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// RoleFeatureMappings returns the feature grants for the given roles.
func (r *Repository) RoleFeatureMappings(ctx context.Context, roleIDs []int64) ([]RoleFeatureMapping, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT role_id, feature_id, is_active FROM role_feature_mappings WHERE role_id = ANY($1)`,
		roleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var mappings []RoleFeatureMapping
	for rows.Next() {
		var m RoleFeatureMapping
		if err := rows.Scan(&m.RoleID, &m.FeatureID, &m.IsActive); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// PermissionAssociations returns the live permissions reachable from the
// given roles, de-duplicated at the store layer.
func (r *Repository) PermissionAssociations(ctx context.Context, roleIDs []int64) ([]PermissionRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT p.id, p.name
		FROM permissions p
		JOIN role_permission_mappings rp ON rp.permission_id = p.id
		WHERE rp.role_id = ANY($1) AND p.deleted_at IS NULL`,
		roleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var permissions []PermissionRecord
	for rows.Next() {
		var p PermissionRecord
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		permissions = append(permissions, p)
	}
	return permissions, rows.Err()
}
