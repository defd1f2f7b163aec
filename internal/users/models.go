package users

import (
	"time"

	"crm-backend/internal/rbac"
)

// User is an authenticated principal. Email is unique and stored lower-cased.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type CreateInput struct {
	Email    string
	Name     string
	Password string
	// Role defaults to EMPLOYEE.
	Role string
}

// UpdateInput changes only the non-nil fields.
type UpdateInput struct {
	Email    *string
	Name     *string
	Role     *string
	Password *string
}

// DefaultAdmin is the development administrator created by cmd/seed-admin
// and by the local-only dev login.
var DefaultAdmin = CreateInput{
	Email:    "admin@crm.com",
	Name:     "Admin User",
	Password: "admin123456",
	Role:     rbac.RoleAdmin,
}
