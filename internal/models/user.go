package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Audit holds creation and last-modification bookkeeping shared by all entities.
// CreatedBy and UpdatedBy are display names, never used for authorization.
type Audit struct {
	CreatedAt time.Time  `json:"created_at"`
	CreatedBy string     `json:"created_by"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	UpdatedBy string     `json:"updated_by,omitempty"`
}

// Touch records a modification by the named actor
func (a *Audit) Touch(by string, at time.Time) {
	a.UpdatedAt = &at
	a.UpdatedBy = by
}

// Role represents the role of a user
type Role string

const (
	RoleEndUser Role = "EndUser"
	RoleManager Role = "Manager"
	RoleAdmin   Role = "Admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleEndUser, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// ParseRole parses a role name case-insensitively
func ParseRole(s string) (Role, error) {
	for _, r := range []Role{RoleEndUser, RoleManager, RoleAdmin} {
		if strings.EqualFold(s, string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// User represents a person who can take part in group orders
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Email        *string   `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Audit
}

// Caller is the authenticated identity on whose behalf an operation runs
type Caller struct {
	ID          uuid.UUID `json:"id"`
	Role        Role      `json:"role"`
	DisplayName string    `json:"display_name"`
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// CanManageOrders reports whether the caller's role may start orders
func (c Caller) CanManageOrders() bool {
	return c.Role == RoleManager || c.Role == RoleAdmin
}

// Actor returns the name recorded in audit fields
func (c Caller) Actor() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.ID.String()
}
