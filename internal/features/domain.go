package features

import "time"

// Feature is a navigable unit of the product. Features form a tree via
// ParentID; Level is stored as parent level + 1 (roots at 0) but readers
// of the navigation tree recompute depth from visible structure.
type Feature struct {
	ID           int64      `json:"id"`
	ParentID     int64      `json:"parent_id,omitempty"`
	Name         string     `json:"name"`
	Route        string     `json:"route,omitempty"`
	Icon         string     `json:"icon,omitempty"`
	DisplayOrder int        `json:"display_order"`
	Level        int        `json:"level"`
	IsMainMenu   bool       `json:"is_main_menu"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Grant makes a feature reachable through a role. Grant rows are removed
// physically; IsActive suspends a grant while keeping when it was issued.
type Grant struct {
	ID        int64     `json:"id"`
	RoleID    int64     `json:"role_id"`
	FeatureID int64     `json:"feature_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
