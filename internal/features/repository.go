package features

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-iam/meridian-iam/internal/platform/db"
	"github.com/meridian-iam/meridian-iam/internal/platform/httpx"
)

const featureColumns = `id, COALESCE(parent_feature_id, 0), name, COALESCE(route, ''),
	COALESCE(icon, ''), display_order, level, is_main_menu, is_active,
	created_at, updated_at, deleted_at`

// Repository provides PostgreSQL backed persistence for the feature tree.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanFeature(row pgx.Row) (Feature, error) {
	var f Feature
	err := row.Scan(&f.ID, &f.ParentID, &f.Name, &f.Route, &f.Icon,
		&f.DisplayOrder, &f.Level, &f.IsMainMenu, &f.IsActive,
		&f.CreatedAt, &f.UpdatedAt, &f.DeletedAt)
	return f, err
}

// ListFeatures returns all live features ordered for tree assembly.
func (r *Repository) ListFeatures(ctx context.Context) ([]Feature, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+featureColumns+`
		FROM features WHERE deleted_at IS NULL
		ORDER BY level, display_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var features []Feature
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

// GetFeature fetches a live feature by ID.
func (r *Repository) GetFeature(ctx context.Context, id int64) (Feature, error) {
	f, err := scanFeature(r.pool.QueryRow(ctx, `
		SELECT `+featureColumns+`
		FROM features WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Feature{}, fmt.Errorf("%w: feature %d", httpx.ErrNotFound, id)
	}
	if err != nil {
		return Feature{}, err
	}
	return f, nil
}

// CreateFeature inserts a feature at the given level.
func (r *Repository) CreateFeature(ctx context.Context, f Feature) (Feature, error) {
	created, err := scanFeature(r.pool.QueryRow(ctx, `
		INSERT INTO features (parent_feature_id, name, route, icon, display_order,
			level, is_main_menu, is_active)
		VALUES (NULLIF($1, 0), $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8)
		RETURNING `+featureColumns,
		f.ParentID, f.Name, f.Route, f.Icon, f.DisplayOrder,
		f.Level, f.IsMainMenu, f.IsActive))
	if isUniqueViolation(err) {
		return Feature{}, fmt.Errorf("%w: feature name %q", httpx.ErrDuplicate, f.Name)
	}
	if err != nil {
		return Feature{}, err
	}
	return created, nil
}

// UpdateFeature updates the mutable attributes of a feature, leaving its
// position in the tree untouched.
func (r *Repository) UpdateFeature(ctx context.Context, f Feature) (Feature, error) {
	updated, err := scanFeature(r.pool.QueryRow(ctx, `
		UPDATE features
		SET name = $2, route = NULLIF($3, ''), icon = NULLIF($4, ''),
			display_order = $5, is_main_menu = $6, is_active = $7, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+featureColumns,
		f.ID, f.Name, f.Route, f.Icon, f.DisplayOrder, f.IsMainMenu, f.IsActive))
	if errors.Is(err, pgx.ErrNoRows) {
		return Feature{}, fmt.Errorf("%w: feature %d", httpx.ErrNotFound, f.ID)
	}
	if isUniqueViolation(err) {
		return Feature{}, fmt.Errorf("%w: feature name %q", httpx.ErrDuplicate, f.Name)
	}
	if err != nil {
		return Feature{}, err
	}
	return updated, nil
}

// SoftDeleteFeature marks a feature deleted. Descendants stay live and are
// re-homed by navigation readers; grants referencing the feature are ignored
// until the rows are cleaned up.
func (r *Repository) SoftDeleteFeature(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE features SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: feature %d", httpx.ErrNotFound, id)
	}
	return nil
}

// FeatureExists reports whether a live feature with the given ID exists.
func (r *Repository) FeatureExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM features WHERE id = $1 AND deleted_at IS NULL)`, id).
		Scan(&exists)
	return exists, err
}

// ReparentFeature moves a feature under a new parent (0 for root) and
// rewrites stored levels for the whole moved subtree in one transaction.
func (r *Repository) ReparentFeature(ctx context.Context, id, newParentID int64, newLevel int) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE features SET parent_feature_id = NULLIF($2, 0), updated_at = now()
			WHERE id = $1 AND deleted_at IS NULL`, id, newParentID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: feature %d", httpx.ErrNotFound, id)
		}
		_, err = tx.Exec(ctx, `
			WITH RECURSIVE subtree AS (
				SELECT id, $2::int AS new_level FROM features WHERE id = $1
				UNION ALL
				SELECT f.id, s.new_level + 1
				FROM features f
				JOIN subtree s ON f.parent_feature_id = s.id
				WHERE f.deleted_at IS NULL
			)
			UPDATE features f SET level = s.new_level, updated_at = now()
			FROM subtree s WHERE f.id = s.id`, id, newLevel)
		return err
	})
}

// ListGrants returns feature grants, optionally filtered to one role.
func (r *Repository) ListGrants(ctx context.Context, roleID int64) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, role_id, feature_id, is_active, created_at, updated_at
		FROM role_feature_mappings
		WHERE $1 = 0 OR role_id = $1
		ORDER BY id`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.ID, &g.RoleID, &g.FeatureID, &g.IsActive,
			&g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// AttachRole grants a feature to a role. New grants start active.
func (r *Repository) AttachRole(ctx context.Context, roleID, featureID int64) (Grant, error) {
	var g Grant
	err := r.pool.QueryRow(ctx, `
		INSERT INTO role_feature_mappings (role_id, feature_id, is_active)
		VALUES ($1, $2, TRUE)
		RETURNING id, role_id, feature_id, is_active, created_at, updated_at`,
		roleID, featureID).
		Scan(&g.ID, &g.RoleID, &g.FeatureID, &g.IsActive, &g.CreatedAt, &g.UpdatedAt)
	if isUniqueViolation(err) {
		return Grant{}, fmt.Errorf("%w: role %d already granted feature %d",
			httpx.ErrDuplicate, roleID, featureID)
	}
	if err != nil {
		return Grant{}, err
	}
	return g, nil
}

// SetGrantActive suspends or resumes a grant without dropping the row.
func (r *Repository) SetGrantActive(ctx context.Context, grantID int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE role_feature_mappings SET is_active = $2, updated_at = now()
		WHERE id = $1`, grantID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: feature grant %d", httpx.ErrNotFound, grantID)
	}
	return nil
}

// DetachRole removes a grant row for good.
func (r *Repository) DetachRole(ctx context.Context, grantID int64) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM role_feature_mappings WHERE id = $1`, grantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: feature grant %d", httpx.ErrNotFound, grantID)
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
