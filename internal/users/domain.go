package users

import "time"

// User is an account that can sign in and collect access through role
// assignments.
type User struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name,omitempty"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// RoleAssignment ties a user to a role. Inactive assignments contribute
// nothing to access resolution but keep their audit trail.
type RoleAssignment struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	RoleID     int64     `json:"role_id"`
	AssignedBy int64     `json:"assigned_by,omitempty"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
