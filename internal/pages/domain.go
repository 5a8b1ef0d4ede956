package pages

import "time"

// Page is a concrete screen surfaced under a feature in the navigation
// tree. A page belongs to features through explicit mappings; mapping rows
// are removed physically, the page itself is soft deleted.
type Page struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Route     string     `json:"route,omitempty"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Mapping ties a page to a feature.
type Mapping struct {
	ID        int64     `json:"id"`
	PageID    int64     `json:"page_id"`
	FeatureID int64     `json:"feature_id"`
	CreatedAt time.Time `json:"created_at"`
}
