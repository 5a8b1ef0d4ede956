package auth

import "time"

// Credential is the login view of a user account.
type Credential struct {
	UserID       int64
	Username     string
	PasswordHash []byte
	IsActive     bool
	LastLoginAt  *time.Time
}

// Identity is what a successful login reveals to the client.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}
