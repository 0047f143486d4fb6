package models

import "time"

// Roles recognised across the platform.
const (
	RoleSuperAdmin  = "super_admin"
	RoleCourseAdmin = "course_admin"
	RoleStudent     = "student"
)

// User represents an account that can sign in to the platform.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         string    `gorm:"size:32;not null;default:student" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user holds an administrative role.
func (u User) IsAdmin() bool {
	return u.Role == RoleSuperAdmin || u.Role == RoleCourseAdmin
}

// ValidRole reports whether the given string is a known role.
func ValidRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleCourseAdmin, RoleStudent:
		return true
	default:
		return false
	}
}
