// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"
)

// AccessStatus is the content-creation approval state of a user.
type AccessStatus string

const (
	// AccessStatusNone marks legacy rows that never requested access.
	AccessStatusNone AccessStatus = "none"
	// AccessStatusPending indicates the request is awaiting review.
	AccessStatusPending AccessStatus = "pending"
	// AccessStatusApproved allows the user to publish posts.
	AccessStatusApproved AccessStatus = "approved"
	// AccessStatusRejected indicates the request was denied.
	AccessStatusRejected AccessStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s AccessStatus) Valid() bool {
	switch s {
	case AccessStatusNone, AccessStatusPending, AccessStatusApproved, AccessStatusRejected:
		return true
	}
	return false
}

// Role is a staff level. Members have no staff rights.
type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// ParseRole normalizes a role name.
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch r {
	case RoleMember, RoleModerator, RoleAdmin:
		return r, true
	}
	return "", false
}

// IsStaff reports whether the role may use the admin surface.
func (r Role) IsStaff() bool {
	return r == RoleModerator || r == RoleAdmin
}

// User is a registered account.
type User struct {
	ID                  uint         `gorm:"primaryKey" json:"id"`
	Name                string       `gorm:"size:100;not null" json:"name"`
	Email               string       `gorm:"size:254;not null;uniqueIndex" json:"email"`
	Password            string       `gorm:"not null" json:"-"`
	ProfileImagePath    string       `json:"profile_image_path,omitempty"`
	AccessStatus        AccessStatus `gorm:"type:varchar(20);not null;default:'none';index" json:"access_status"`
	Role                Role         `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	ResetToken          *string      `gorm:"size:64;index" json:"-"`
	ResetTokenExpiresAt *time.Time   `json:"-"`
	Posts               []BlogPost   `gorm:"foreignKey:UserID" json:"posts,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// CanCreateContent is true iff the user has been approved.
func (u *User) CanCreateContent() bool {
	return u != nil && u.AccessStatus == AccessStatusApproved
}

// IsStaff reports whether the user holds a staff role.
func (u *User) IsStaff() bool {
	return u != nil && u.Role.IsStaff()
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
