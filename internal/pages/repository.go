package pages

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-iam/meridian-iam/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence for pages and their
// feature mappings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const pageColumns = `id, name, COALESCE(route, ''), is_active, created_at, updated_at, deleted_at`

func scanPage(row pgx.Row) (Page, error) {
	var p Page
	err := row.Scan(&p.ID, &p.Name, &p.Route, &p.IsActive,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	return p, err
}

// ListPages returns all live pages ordered by name.
func (r *Repository) ListPages(ctx context.Context) ([]Page, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+pageColumns+`
		FROM pages WHERE deleted_at IS NULL ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pages []Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// GetPage fetches a live page by ID.
func (r *Repository) GetPage(ctx context.Context, id int64) (Page, error) {
	p, err := scanPage(r.pool.QueryRow(ctx, `
		SELECT `+pageColumns+`
		FROM pages WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Page{}, fmt.Errorf("%w: page %d", httpx.ErrNotFound, id)
	}
	if err != nil {
		return Page{}, err
	}
	return p, nil
}

// CreatePage inserts a page.
func (r *Repository) CreatePage(ctx context.Context, name, route string, isActive bool) (Page, error) {
	p, err := scanPage(r.pool.QueryRow(ctx, `
		INSERT INTO pages (name, route, is_active)
		VALUES ($1, NULLIF($2, ''), $3)
		RETURNING `+pageColumns, name, route, isActive))
	if isUniqueViolation(err) {
		return Page{}, fmt.Errorf("%w: page name %q", httpx.ErrDuplicate, name)
	}
	if err != nil {
		return Page{}, err
	}
	return p, nil
}

// UpdatePage updates a live page.
func (r *Repository) UpdatePage(ctx context.Context, id int64, name, route string, isActive bool) (Page, error) {
	p, err := scanPage(r.pool.QueryRow(ctx, `
		UPDATE pages
		SET name = $2, route = NULLIF($3, ''), is_active = $4, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+pageColumns, id, name, route, isActive))
	if errors.Is(err, pgx.ErrNoRows) {
		return Page{}, fmt.Errorf("%w: page %d", httpx.ErrNotFound, id)
	}
	if isUniqueViolation(err) {
		return Page{}, fmt.Errorf("%w: page name %q", httpx.ErrDuplicate, name)
	}
	if err != nil {
		return Page{}, err
	}
	return p, nil
}

// SoftDeletePage marks a page deleted. Its feature mappings stay behind and
// are ignored by readers until detached.
func (r *Repository) SoftDeletePage(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pages SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: page %d", httpx.ErrNotFound, id)
	}
	return nil
}

// ListMappings returns every page to feature mapping.
func (r *Repository) ListMappings(ctx context.Context) ([]Mapping, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, page_id, feature_id, created_at
		FROM page_feature_mappings ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var mappings []Mapping
	for rows.Next() {
		var m Mapping
		if err := rows.Scan(&m.ID, &m.PageID, &m.FeatureID, &m.CreatedAt); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// AttachFeature links a page to a feature.
func (r *Repository) AttachFeature(ctx context.Context, pageID, featureID int64) (Mapping, error) {
	var m Mapping
	err := r.pool.QueryRow(ctx, `
		INSERT INTO page_feature_mappings (page_id, feature_id)
		VALUES ($1, $2)
		RETURNING id, page_id, feature_id, created_at`, pageID, featureID).
		Scan(&m.ID, &m.PageID, &m.FeatureID, &m.CreatedAt)
	if isUniqueViolation(err) {
		return Mapping{}, fmt.Errorf("%w: page %d already mapped to feature %d",
			httpx.ErrDuplicate, pageID, featureID)
	}
	if err != nil {
		return Mapping{}, err
	}
	return m, nil
}

// DetachFeature removes a mapping row for good. Absence of the row is the
// definitive signal that the association never held or was revoked.
func (r *Repository) DetachFeature(ctx context.Context, mappingID int64) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM page_feature_mappings WHERE id = $1`, mappingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: page feature mapping %d", httpx.ErrNotFound, mappingID)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
