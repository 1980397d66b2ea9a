package models

import (
	"time"

	"gorm.io/gorm"
)

// Role is the operator role of a user. Roles drive group membership.
type Role int

const (
	RoleAdmin  Role = 1
	RoleEditor Role = 2
)

// String returns the display name of the role.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleEditor:
		return "Editor"
	}
	return "Unknown"
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEditor
}

// User represents the user model in the database
type User struct {
	Base
	Username            string     `gorm:"uniqueIndex;not null" json:"username"`
	Email               string     `gorm:"index" json:"email"`
	Password            string     `gorm:"not null" json:"-"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	Role                Role       `gorm:"not null;default:2" json:"role"`
	IsSuperuser         bool       `gorm:"default:false" json:"is_superuser"`
	IsActive            bool       `gorm:"default:true" json:"is_active"`
	RefreshTokenHash    string     `gorm:"size:64" json:"-"`
	FailedLoginAttempts int        `gorm:"default:0" json:"-"`
	LockedUntil         *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
	Groups              []Group    `gorm:"many2many:user_groups" json:"groups,omitempty"`
}

// BeforeSave forces superusers into the admin role.
func (u *User) BeforeSave(tx *gorm.DB) error {
	if u.IsSuperuser {
		u.Role = RoleAdmin
	}
	return nil
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.IsSuperuser || u.Role == RoleAdmin
}
