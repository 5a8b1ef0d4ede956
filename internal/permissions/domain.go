package permissions

import "time"

// Permission is a named capability such as "roles.edit". Permissions reach
// users through role mappings; the mapping rows are deleted physically while
// the permission itself is soft deleted.
type Permission struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Grant ties a permission to a role.
type Grant struct {
	ID           int64     `json:"id"`
	RoleID       int64     `json:"role_id"`
	PermissionID int64     `json:"permission_id"`
	CreatedAt    time.Time `json:"created_at"`
}
