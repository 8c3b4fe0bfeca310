package users

import (
	"errors"
	"time"
)

// Role scopes what a user may do. Authorization checks live in the handlers
// that need them; the registry only records the role.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleClerk   Role = "clerk"
	RoleDriver  Role = "driver"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleClerk, RoleDriver:
		return true
	}
	return false
}

// User is an account in the registry. PasswordHash never crosses the API.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateInput carries a new account.
type CreateInput struct {
	Name     string
	Email    string
	Role     Role
	Password string
}

// UpdateInput carries account changes; empty Password keeps the old hash.
type UpdateInput struct {
	Name     string
	Role     Role
	Active   bool
	Password string
}

// ListFilter narrows user listings.
type ListFilter struct {
	Search string
	Role   Role
	Page   int
	Limit  int
}

var (
	ErrNotFound         = errors.New("user not found")
	ErrDuplicateEmail   = errors.New("email already registered")
	ErrNameRequired     = errors.New("name is required")
	ErrEmailRequired    = errors.New("email is required")
	ErrInvalidRole      = errors.New("unknown role")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrBadCredentials   = errors.New("invalid email or password")
)
