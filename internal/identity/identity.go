// Package identity contains pure domain models for the authenticated
// console user: entities that do not depend on transport or storage concerns.
package identity

import "time"

// Role is the coarse access level of a console user.
type Role string

const (
	RoleSuperadmin    Role = "superadmin"
	RoleInternalStaff Role = "internal_staff"
)

// StaffTitle refines the internal_staff role. Meaningless for superadmins.
type StaffTitle string

const (
	StaffTitleSupport    StaffTitle = "support"
	StaffTitleOperations StaffTitle = "operations"
	StaffTitleFinance    StaffTitle = "finance"
	StaffTitleEngineer   StaffTitle = "engineer"
)

// Permission names a single console capability.
type Permission string

const (
	PermissionUsersRead     Permission = "users:read"
	PermissionUsersWrite    Permission = "users:write"
	PermissionReportsRead   Permission = "reports:read"
	PermissionSettingsWrite Permission = "settings:write"
	PermissionAuditRead     Permission = "audit:read"
)

// Identity represents the authenticated console user.
type Identity struct {
	ID            string       `json:"id"`
	Email         string       `json:"email"`
	FirstName     string       `json:"firstName"`
	LastName      string       `json:"lastName"`
	Role          Role         `json:"role"`
	StaffTitle    StaffTitle   `json:"internalStaffTitle,omitempty"`
	Permissions   []Permission `json:"permissions"`
	Active        bool         `json:"isActive"`
	EmailVerified bool         `json:"emailVerified"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// FullName returns the display name for the console chrome.
func (i *Identity) FullName() string {
	if i.FirstName == "" {
		return i.LastName
	}
	if i.LastName == "" {
		return i.FirstName
	}
	return i.FirstName + " " + i.LastName
}

// HasPermission reports whether the user holds the given permission.
// Superadmins hold every permission regardless of the permission list.
func (i *Identity) HasPermission(p Permission) bool {
	if i.Role == RoleSuperadmin {
		return true
	}
	for _, held := range i.Permissions {
		if held == p {
			return true
		}
	}
	return false
}
