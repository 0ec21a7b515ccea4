package enums

import "fmt"

// Role represents a user's system role.
type Role string

const (
	RoleTeacher      Role = "teacher"
	RoleStockManager Role = "stock_manager"
	RoleAdmin        Role = "admin"
)

var validRoles = []Role{
	RoleTeacher,
	RoleStockManager,
	RoleAdmin,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// CanDecideRequests reports whether the role may approve or reject requests
// and perform privileged stock adjustments.
func (r Role) CanDecideRequests() bool {
	return r == RoleStockManager || r == RoleAdmin
}

// ApproverRoles returns the roles that receive operational alerts and may
// decide pending requests.
func ApproverRoles() []Role {
	return []Role{RoleStockManager, RoleAdmin}
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
