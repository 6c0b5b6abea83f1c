package models

import (
	"time"

	"github.com/lib/pq"
)

// UserRole represents the available staff roles.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleStaff      UserRole = "STAFF"
)

// Capability is a per-tab permission flag of the admin panel.
type Capability string

const (
	CapStudents             Capability = "students"
	CapTeachers             Capability = "teachers"
	CapModalities           Capability = "modalities"
	CapSchedule             Capability = "schedule"
	CapChangeRequests       Capability = "change_requests"
	CapChangeRequestsReview Capability = "change_requests.review"
	CapCredits              Capability = "credits"
	CapNotices              Capability = "notices"
	CapCalendar             Capability = "calendar"
)

// User represents a panel account stored in the users table.
type User struct {
	ID           string         `db:"id" json:"id"`
	Email        string         `db:"email" json:"email"`
	PasswordHash string         `db:"password_hash" json:"-"`
	FullName     string         `db:"full_name" json:"fullName"`
	Role         UserRole       `db:"role" json:"role"`
	Capabilities pq.StringArray `db:"capabilities" json:"capabilities"`
	Active       bool           `db:"active" json:"active"`
	LastLogin    *time.Time     `db:"last_login" json:"lastLogin,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updatedAt"`
}

// Can reports whether the user holds the capability. Super admins hold all.
func (u *User) Can(capability Capability) bool {
	if u == nil {
		return false
	}
	if u.Role == RoleSuperAdmin {
		return true
	}
	for _, c := range u.Capabilities {
		if Capability(c) == capability {
			return true
		}
	}
	return false
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
