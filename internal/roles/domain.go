package roles

import "time"

// Role represents a high-level permission grouping. Roles are soft
// deleted: flagged rather than removed, and excluded from normal reads.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Department  string    `json:"department,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Edge is one parent-to-child link in the role hierarchy. Edges are
// physically removed on deletion.
type Edge struct {
	ID           int64     `json:"id"`
	ParentRoleID int64     `json:"parent_role_id"`
	ChildRoleID  int64     `json:"child_role_id"`
	CreatedAt    time.Time `json:"created_at"`
}
